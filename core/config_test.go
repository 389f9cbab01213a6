package core

import (
	"os"
	"testing"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seederEnvVars = []string{
	"KAFKA_BROKERS", "TEST_TOPIC", "MESSAGE_COUNT", "BATCH_SIZE", "DELAY_MS",
	"MESSAGE_BYTES", "LARGE_EVERY", "LARGE_KB", "SEED", "MANIFEST_DB",
}

// clearSeederEnv unsets every seeder variable for the duration of the test.
// t.Setenv registers the restore, then the variable is removed so defaults
// apply.
func clearSeederEnv(t *testing.T) {
	t.Helper()
	for _, v := range seederEnvVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestSeederConfigDefaults(t *testing.T) {
	clearSeederEnv(t)

	var cfg SeederConfig
	require.NoError(t, envconfig.Process("", &cfg))

	assert.Equal(t, "localhost:9092", cfg.Brokers)
	assert.Equal(t, "backup-test-topic", cfg.Topic)
	assert.Equal(t, 1000, cfg.MessageCount)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10, cfg.DelayMillis)
	assert.Equal(t, 1024, cfg.MessageBytes)
	assert.Equal(t, 1000, cfg.LargeEvery)
	assert.Equal(t, 64, cfg.LargeKB)
	assert.Equal(t, int64(0), cfg.Seed)
	assert.Equal(t, "kafka-seed-manifest.db", cfg.ManifestDB)
	assert.NoError(t, cfg.Validate())
}

func TestSeederConfigOverrides(t *testing.T) {
	clearSeederEnv(t)
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("TEST_TOPIC", "restore-check")
	t.Setenv("MESSAGE_COUNT", "250")
	t.Setenv("DELAY_MS", "0")
	t.Setenv("SEED", "42")

	var cfg SeederConfig
	require.NoError(t, envconfig.Process("", &cfg))

	assert.Equal(t, "broker-1:9092,broker-2:9092", cfg.Brokers)
	assert.Equal(t, "restore-check", cfg.Topic)
	assert.Equal(t, 250, cfg.MessageCount)
	assert.Equal(t, 0, cfg.DelayMillis)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.NoError(t, cfg.Validate())
}

func TestSeederConfigValidate(t *testing.T) {
	valid := func() SeederConfig {
		return SeederConfig{
			Brokers:      "localhost:9092",
			Topic:        "backup-test-topic",
			MessageCount: 1000,
			BatchSize:    100,
			DelayMillis:  10,
			MessageBytes: 1024,
			LargeEvery:   1000,
			LargeKB:      64,
			ManifestDB:   "kafka-seed-manifest.db",
		}
	}

	tests := map[string]struct {
		mutate  func(*SeederConfig)
		wantErr bool
	}{
		"valid":                  {func(c *SeederConfig) {}, false},
		"zero delay ok":          {func(c *SeederConfig) { c.DelayMillis = 0 }, false},
		"large messages off":     {func(c *SeederConfig) { c.LargeEvery = 0 }, false},
		"zero message count":     {func(c *SeederConfig) { c.MessageCount = 0 }, true},
		"negative message count": {func(c *SeederConfig) { c.MessageCount = -5 }, true},
		"zero batch":             {func(c *SeederConfig) { c.BatchSize = 0 }, true},
		"negative delay":         {func(c *SeederConfig) { c.DelayMillis = -1 }, true},
		"empty topic":            {func(c *SeederConfig) { c.Topic = "" }, true},
		"empty brokers":          {func(c *SeederConfig) { c.Brokers = "" }, true},
		"empty manifest path":    {func(c *SeederConfig) { c.ManifestDB = "" }, true},
		"oversized payload":      {func(c *SeederConfig) { c.MessageBytes = 10 * 1024 * 1024 }, true},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			test.mutate(&cfg)
			err := cfg.Validate()
			if test.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSeederConfigSizing(t *testing.T) {
	cfg := SeederConfig{MessageBytes: 1024, LargeKB: 64, LargeEvery: 1000}

	s := cfg.Sizing()
	assert.Equal(t, 1024, s.RegularBytes)
	assert.Equal(t, 64*1024, s.LargeBytes)
	assert.Equal(t, 1000, s.LargeEvery)
}

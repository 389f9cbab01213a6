package core

import (
	"github.com/asaskevich/govalidator"
	"github.com/pkg/errors"
)

// SeederConfig is kafka-seed's environment-driven configuration. The
// variable names are the operator interface for the backup test fixtures,
// so they stay stable even as fields move around.
type SeederConfig struct {
	Brokers      string `envconfig:"KAFKA_BROKERS" default:"localhost:9092" valid:"required"`
	Topic        string `envconfig:"TEST_TOPIC" default:"backup-test-topic" valid:"required"`
	MessageCount int    `envconfig:"MESSAGE_COUNT" default:"1000" valid:"required,range(1|10000000)"`
	BatchSize    int    `envconfig:"BATCH_SIZE" default:"100" valid:"required,range(1|100000)"`
	DelayMillis  int    `envconfig:"DELAY_MS" default:"10" valid:"range(0|3600000)"`
	MessageBytes int    `envconfig:"MESSAGE_BYTES" default:"1024" valid:"required,range(1|1048576)"`
	LargeEvery   int    `envconfig:"LARGE_EVERY" default:"1000" valid:"range(0|10000000)"`
	LargeKB      int    `envconfig:"LARGE_KB" default:"64" valid:"required,range(1|10240)"`
	Seed         int64  `envconfig:"SEED" default:"0"`
	ManifestDB   string `envconfig:"MANIFEST_DB" default:"kafka-seed-manifest.db" valid:"required"`
}

// Validate applies the struct tags. A zero LargeEvery disables large
// messages; a zero Seed means seed from the clock.
func (c SeederConfig) Validate() error {
	_, err := govalidator.ValidateStruct(c)
	return errors.Wrap(err, "seeder config")
}

// Sizing derives the per-message size selection from the config.
func (c SeederConfig) Sizing() MessageSizing {
	return MessageSizing{
		RegularBytes: c.MessageBytes,
		LargeBytes:   c.LargeKB * 1024,
		LargeEvery:   c.LargeEvery,
	}
}

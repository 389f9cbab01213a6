package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunID = "4d6f7cd8-8aa1-4f64-9cf0-6d77e2b1a001"

func stagedForTest(t *testing.T, n int, delayMillis int64) []StagedMessage {
	t.Helper()
	msgs := make([]StagedMessage, 0, n)
	for seq := 0; seq < n; seq++ {
		payload := []byte(fmt.Sprintf(`{"id":"%010d"}`, seq))
		msgs = append(msgs, NewStagedMessage(seq, testRunID, payload, int64(seq)*delayMillis))
	}
	return msgs
}

func TestNewStagedMessage(t *testing.T) {
	payload := []byte(`{"id":"0000000042"}`)

	m := NewStagedMessage(42, testRunID, payload, 420)

	assert.Equal(t, 42, m.Seq)
	assert.Equal(t, "key-000042", m.Key)
	assert.Equal(t, testRunID, m.RunID)
	assert.Equal(t, len(payload), m.ByteSize)
	assert.Equal(t, int64(420), m.ScheduleMillis)
	assert.False(t, m.PublishedAt.Valid)

	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), m.Checksum)
}

func TestMigrateManifest(t *testing.T) {
	db := OpenTestManifest(t)
	defer db.Close()
	// Migration is idempotent
	assert.NoError(t, MigrateManifest(context.Background(), db))
}

func TestStageAndCount(t *testing.T) {
	db := OpenTestManifest(t)
	defer db.Close()
	ctx := context.Background()

	// 1200 rows crosses the insert batch boundary
	require.NoError(t, StageMessages(ctx, db, stagedForTest(t, 1200, 10)))

	count, err := CountUnpublished(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1200, count)
}

func TestStageRejectsDuplicates(t *testing.T) {
	db := OpenTestManifest(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, StageMessages(ctx, db, stagedForTest(t, 5, 10)))
	assert.Error(t, StageMessages(ctx, db, stagedForTest(t, 5, 10)))
}

func TestFetchDueRespectsSchedule(t *testing.T) {
	db := OpenTestManifest(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, StageMessages(ctx, db, stagedForTest(t, 10, 100)))

	due, err := FetchDue(ctx, db, 250, 100)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, 0, due[0].Seq)
	assert.Equal(t, 1, due[1].Seq)
	assert.Equal(t, 2, due[2].Seq)

	// Payloads survive the round trip intact
	assert.Equal(t, []byte(`{"id":"0000000000"}`), due[0].Payload)
	assert.Equal(t, testRunID, due[0].RunID)

	// The limit caps the batch
	due, err = FetchDue(ctx, db, 10000, 4)
	require.NoError(t, err)
	assert.Len(t, due, 4)
}

func TestMarkPublished(t *testing.T) {
	db := OpenTestManifest(t)
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, StageMessages(ctx, db, stagedForTest(t, 6, 0)))

	due, err := FetchDue(ctx, db, 0, 100)
	require.NoError(t, err)
	require.Len(t, due, 6)

	require.NoError(t, MarkPublished(ctx, db, due[:4], time.Now()))

	remaining, err := CountUnpublished(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	due, err = FetchDue(ctx, db, 0, 100)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, 4, due[0].Seq)
	assert.Equal(t, 5, due[1].Seq)

	// Marking nothing is a no-op
	assert.NoError(t, MarkPublished(ctx, db, nil, time.Now()))
}

func TestMarkPublishedBatches(t *testing.T) {
	db := OpenTestManifest(t)
	defer db.Close()
	ctx := context.Background()

	// More rows than a single statement's bind variables can carry
	require.NoError(t, StageMessages(ctx, db, stagedForTest(t, 40000, 0)))

	due, err := FetchDue(ctx, db, 0, 40000)
	require.NoError(t, err)
	require.Len(t, due, 40000)

	require.NoError(t, MarkPublished(ctx, db, due, time.Now()))

	remaining, err := CountUnpublished(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestStageRun(t *testing.T) {
	db := OpenTestManifest(t)
	defer db.Close()
	ctx := context.Background()

	cfg := SeederConfig{
		MessageCount: 25,
		DelayMillis:  7,
		MessageBytes: 300,
		LargeEvery:   10,
		LargeKB:      1,
	}
	rng := rand.New(rand.NewSource(11))

	staged, err := StageRun(ctx, db, cfg, rng, testRunID)
	require.NoError(t, err)
	assert.Equal(t, 25, staged)

	rows, err := FetchDue(ctx, db, int64(24*7), 100)
	require.NoError(t, err)
	require.Len(t, rows, 25)

	for i, m := range rows {
		assert.Equal(t, i, m.Seq)
		assert.Equal(t, int64(i)*7, m.ScheduleMillis)
		assert.Equal(t, MessageKey(i), m.Key)
		assert.Equal(t, testRunID, m.RunID)
		assert.Equal(t, len(m.Payload), m.ByteSize)

		sum := sha256.Sum256(m.Payload)
		assert.Equal(t, hex.EncodeToString(sum[:]), m.Checksum)

		// Every 10th message is the large size
		want := 300
		if i%10 == 0 {
			want = 1024
		}
		assert.InDelta(t, want, m.ByteSize, 16)
	}
}

func TestSummarizeManifest(t *testing.T) {
	db := OpenTestManifest(t)
	defer db.Close()
	ctx := context.Background()

	msgs := stagedForTest(t, 4, 10)
	require.NoError(t, StageMessages(ctx, db, msgs))

	var wantBytes int64
	for _, m := range msgs {
		wantBytes += int64(m.ByteSize)
	}

	totals, err := SummarizeManifest(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 4, totals.Messages)
	assert.Equal(t, wantBytes, totals.Bytes)
}

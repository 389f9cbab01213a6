package core

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// StagedMessage is one manifest row: a generated message waiting to be
// published, or the record of one already sent. The manifest is what lets a
// restored topic be checked against what the seeder actually produced.
type StagedMessage struct {
	Seq            int
	Key            string
	RunID          string
	Payload        []byte
	ByteSize       int
	Checksum       string
	ScheduleMillis int64
	PublishedAt    sql.NullTime
}

// NewStagedMessage wraps an encoded payload with its manifest bookkeeping.
// The checksum is the hex SHA-256 of the payload bytes.
func NewStagedMessage(seq int, runID string, payload []byte, scheduleMillis int64) StagedMessage {
	sum := sha256.Sum256(payload)
	return StagedMessage{
		Seq:            seq,
		Key:            MessageKey(seq),
		RunID:          runID,
		Payload:        payload,
		ByteSize:       len(payload),
		Checksum:       hex.EncodeToString(sum[:]),
		ScheduleMillis: scheduleMillis,
	}
}

// MigrateManifest creates the messages table if not exists.
func MigrateManifest(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY,
			key TEXT NOT NULL,
			run_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			byte_size INTEGER NOT NULL,
			checksum TEXT NOT NULL,
			schedule_millis INTEGER NOT NULL,
			published_at DATETIME
		)
	`)
	if err != nil {
		return errors.Wrap(err, "migrate manifest")
	}

	// Ensure uniqueness of the 'key' column
	_, err = db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_key ON messages (key)
	`)
	return errors.Wrap(err, "index manifest")
}

// TruncateManifest clears any previous run's rows.
func TruncateManifest(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DELETE FROM messages`)
	return errors.Wrap(err, "truncate manifest")
}

const stageBatchSize = 500

// StageMessages inserts msgs using multi-row batches.
func StageMessages(ctx context.Context, db *sql.DB, msgs []StagedMessage) error {
	var values []string
	var args []interface{}

	for i, m := range msgs {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, NULL)")
		args = append(args, m.Seq, m.Key, m.RunID, m.Payload, m.ByteSize, m.Checksum, m.ScheduleMillis)

		// If we have hit the batch size or the end of msgs, insert the batch
		if (i+1)%stageBatchSize == 0 || i+1 == len(msgs) {
			query := fmt.Sprintf(`
				INSERT INTO messages (seq, key, run_id, payload, byte_size, checksum, schedule_millis, published_at)
				VALUES %s
			`, strings.Join(values, ","))

			if _, err := db.ExecContext(ctx, query, args...); err != nil {
				return errors.Wrap(err, "stage messages")
			}

			values = values[:0]
			args = args[:0]
		}
	}
	return nil
}

// StageRun generates a full run of messages and stages them in chunks,
// returning how many rows were written. Each message's schedule offset is its
// sequence number times the configured delay.
func StageRun(ctx context.Context, db *sql.DB, cfg SeederConfig, rng *rand.Rand, runID string) (int, error) {
	sizing := cfg.Sizing()
	staged := 0
	chunk := make([]StagedMessage, 0, stageBatchSize)

	for seq := 0; seq < cfg.MessageCount; seq++ {
		payload, err := NewTestMessage(rng, time.Now(), sizing.TargetBytes(seq)).Encode()
		if err != nil {
			return staged, err
		}
		chunk = append(chunk, NewStagedMessage(seq, runID, payload, int64(seq)*int64(cfg.DelayMillis)))

		if len(chunk) == stageBatchSize || seq+1 == cfg.MessageCount {
			if err := StageMessages(ctx, db, chunk); err != nil {
				return staged, err
			}
			staged += len(chunk)
			chunk = chunk[:0]
		}
	}
	return staged, nil
}

// FetchDue returns up to limit unpublished messages whose schedule offset has
// elapsed, in sequence order.
func FetchDue(ctx context.Context, db *sql.DB, elapsedMillis int64, limit int) ([]StagedMessage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT seq, key, run_id, payload, byte_size, checksum, schedule_millis, published_at FROM messages
		WHERE published_at IS NULL AND schedule_millis <= ?
		ORDER BY seq
		LIMIT ?
	`, elapsedMillis, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetch due messages")
	}
	defer rows.Close()

	var due []StagedMessage
	for rows.Next() {
		var m StagedMessage
		if err := rows.Scan(
			&m.Seq,
			&m.Key,
			&m.RunID,
			&m.Payload,
			&m.ByteSize,
			&m.Checksum,
			&m.ScheduleMillis,
			&m.PublishedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan due message")
		}
		due = append(due, m)
	}
	return due, errors.Wrap(rows.Err(), "fetch due messages")
}

// MarkPublished stamps published_at on the given rows. Updates run in
// batches because SQLite caps the bind variables one statement may carry.
func MarkPublished(ctx context.Context, db *sql.DB, msgs []StagedMessage, at time.Time) error {
	for start := 0; start < len(msgs); start += stageBatchSize {
		batch := msgs[start:min(start+stageBatchSize, len(msgs))]

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")
		args := make([]interface{}, 0, len(batch)+1)
		args = append(args, at)
		for _, m := range batch {
			args = append(args, m.Seq)
		}

		_, err := db.ExecContext(ctx, fmt.Sprintf(`
			UPDATE messages SET published_at = ? WHERE seq IN (%s)
		`, placeholders), args...)
		if err != nil {
			return errors.Wrap(err, "mark published")
		}
	}
	return nil
}

// CountUnpublished returns how many staged rows still lack published_at.
func CountUnpublished(ctx context.Context, db *sql.DB) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE published_at IS NULL`).Scan(&count)
	return count, errors.Wrap(err, "count unpublished")
}

// ManifestTotals summarizes a completed run for the final report.
type ManifestTotals struct {
	Messages int
	Bytes    int64
}

// SummarizeManifest totals the staged messages and their payload bytes.
func SummarizeManifest(ctx context.Context, db *sql.DB) (ManifestTotals, error) {
	var totals ManifestTotals
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(byte_size), 0) FROM messages
	`).Scan(&totals.Messages, &totals.Bytes)
	return totals, errors.Wrap(err, "summarize manifest")
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/relistan/rubberneck"

	"github.com/poriyiyal/testgen/core"
)

const (
	brokerWaitTimeout = 60 * time.Second
	probeInterval     = 5 * time.Second
	progressInterval  = 10 * time.Second

	// idleWait bounds how far publishes can lag their schedule when no
	// rows are due yet.
	idleWait = 200 * time.Millisecond

	queueFullRetries = 1
)

// kafka-seed publishes synthetic JSON messages to a Kafka topic so that
// backup and restore tooling has known traffic to work against. Messages are
// generated up front and staged into a SQLite manifest with a per-message
// schedule, then drained by a timed publish loop. After a run the manifest
// records exactly what was sent (keys, sizes, checksums, publish times), so
// a restored topic can be verified against it. Configuration comes from the
// environment; see core.SeederConfig.
func main() {
	var cfg core.SeederConfig
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("error reading environment", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	rubberneck.Print(cfg)

	if err := run(context.Background(), cfg); err != nil {
		slog.Error("kafka-seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg core.SeederConfig) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rngSeed := cfg.Seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))
	runID := uuid.New().String()
	slog.Info("kafka-seed started", slog.String("run_id", runID), slog.Int64("seed", rngSeed))

	// Open the SQLite manifest
	db, err := sql.Open("sqlite3", cfg.ManifestDB)
	if err != nil {
		return errors.Wrap(err, "open manifest db")
	}
	defer db.Close()
	slog.Info("db open ok", slog.String("path", cfg.ManifestDB))

	if err := core.MigrateManifest(ctx, db); err != nil {
		return err
	}
	if err := core.TruncateManifest(ctx, db); err != nil {
		return err
	}

	staged, err := core.StageRun(ctx, db, cfg, rng, runID)
	if err != nil {
		return err
	}
	slog.Info("messages staged", slog.Int("count", staged), slog.String("topic", cfg.Topic))

	// Wait for Kafka to be available
	if err := core.WaitForBrokers(cfg.Brokers, brokerWaitTimeout, core.FixedRetrier{Duration: probeInterval}); err != nil {
		return err
	}

	slog.Info("Connecting to Kafka", slog.String("servers", cfg.Brokers))
	producer, err := core.NewSeedProducer(cfg.Brokers, "kafka-seed")
	if err != nil {
		return err
	}

	// Watch delivery reports and client logs while the loop runs
	var counts core.DeliveryCounts
	watchDone := make(chan struct{})
	go func() {
		core.WatchDeliveries(ctx, producer.Events(), &counts)
		close(watchDone)
	}()
	go core.WatchLogs(ctx, producer.Logs())

	startTime := time.Now()
	pubErr := publishLoop(ctx, db, producer, cfg, startTime)

	// Wait for message deliveries before shutting down the producer
	slog.Info("Flushing producer")
	unflushed := producer.Flush(15 * 1000) // 15 seconds
	slog.Info("Closing producer", slog.Int("unflushed_messages", unflushed))
	producer.Close()

	// Closing the producer closes its events channel; join the watcher so
	// every delivery report is counted before the outcome is judged
	<-watchDone
	if pubErr != nil {
		return pubErr
	}

	totals, err := core.SummarizeManifest(ctx, db)
	if err != nil {
		return err
	}
	elapsed := time.Since(startTime)
	delivered := counts.Delivered.Load()
	failed := counts.Failed.Load()
	slog.Info("seeding finished",
		slog.Int("messages", totals.Messages),
		slog.Int64("bytes", totals.Bytes),
		slog.Int64("delivered", delivered),
		slog.Int64("failed", failed),
		slog.String("elapsed", elapsed.Round(time.Millisecond).String()),
		slog.String("rate", fmt.Sprintf("%.1f msg/s", float64(totals.Messages)/max(elapsed.Seconds(), 0.001))))

	if failed > 0 || unflushed > 0 {
		return errors.Wrapf(core.ErrDeliveryIncomplete, "failed %d, unflushed %d", failed, unflushed)
	}
	return nil
}

// publishLoop drains the manifest in schedule order, marking rows published
// as they are handed to the producer, until nothing remains.
func publishLoop(ctx context.Context, db *sql.DB, producer *kafka.Producer, cfg core.SeederConfig, startTime time.Time) error {
	retry := core.FixedRetrier{Duration: time.Second}
	nextLogTime := startTime.Add(progressInterval)

	for {
		elapsedMillis := time.Since(startTime).Milliseconds()
		due, err := core.FetchDue(ctx, db, elapsedMillis, cfg.BatchSize)
		if err != nil {
			return err
		}

		for _, msg := range due {
			if err := core.Publish(producer, cfg.Topic, msg, retry, queueFullRetries); err != nil {
				return err
			}
		}

		if err := core.MarkPublished(ctx, db, due, time.Now()); err != nil {
			return err
		}

		remaining, err := core.CountUnpublished(ctx, db)
		if err != nil {
			return err
		}
		if remaining == 0 {
			return nil
		}

		if time.Now().After(nextLogTime) {
			published := cfg.MessageCount - remaining
			slog.Info("progress",
				slog.Int("published", published),
				slog.Int("total", cfg.MessageCount),
				slog.String("rate", fmt.Sprintf("%.1f msg/s", float64(published)*1000.0/float64(max(elapsedMillis, 1)))))
			nextLogTime = time.Now().Add(progressInterval)
		}
		if len(due) == 0 {
			time.Sleep(idleWait)
		}
	}
}

package core

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/pkg/errors"
)

// ErrBrokersUnavailable is returned when the cluster never answers a
// metadata probe within the wait deadline.
var ErrBrokersUnavailable = errors.New("kafka brokers unavailable")

// ErrDeliveryIncomplete is returned when a run ends with failed or
// unflushed messages, so the manifest cannot be trusted as a record of
// what reached the brokers.
var ErrDeliveryIncomplete = errors.New("not all messages were delivered")

// RunIDHeader carries the seed run's UUID on every message, letting
// consumers separate runs that share a topic.
const RunIDHeader = "run-id"

const (
	metadataTimeoutMillis = 5 * 1000

	// maxProbeBackoff caps the probe backoff ladder; the timeout is the
	// real bound on how long we wait.
	maxProbeBackoff = 4
)

// WaitForBrokers probes the cluster metadata until the brokers answer or the
// timeout passes, backing off between probes per retry.
func WaitForBrokers(servers string, timeout time.Duration, retry Retrier) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": servers})
	if err != nil {
		return errors.Wrap(err, "create admin client")
	}
	defer admin.Close()

	deadline := time.Now().Add(timeout)
	for attempt := 0; ; attempt++ {
		_, err := admin.GetMetadata(nil, true, metadataTimeoutMillis)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBrokersUnavailable
		}
		slog.Info("waiting for kafka", slog.String("servers", servers), slog.String("error", err.Error()))
		time.Sleep(retry.RetryIn(attempt, maxProbeBackoff))
	}
}

// NewSeedProducer builds the producer tuned for the seeding workload:
// batched sends, full acks, and the client log channel enabled.
func NewSeedProducer(servers, clientID string) (*kafka.Producer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"client.id":              clientID,
		"bootstrap.servers":      servers,
		"linger.ms":              1000,
		"compression.type":       "none",
		"retries":                2,
		"go.batch.producer":      true,
		"acks":                   "all",
		"go.logs.channel.enable": true,
		//"debug":                  "broker,topic,msg", // To see all debug messages, uncomment this line
	})
	return producer, errors.Wrap(err, "create kafka producer")
}

// DeliveryCounts accumulates delivery report outcomes across goroutines.
type DeliveryCounts struct {
	Delivered atomic.Int64
	Failed    atomic.Int64
}

// WatchDeliveries consumes delivery reports until the events channel closes
// (the producer closed it) or ctx is cancelled, counting outcomes and logging
// failures. Losing every broker aborts the process.
func WatchDeliveries(ctx context.Context, events <-chan kafka.Event, counts *DeliveryCounts) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					counts.Failed.Add(1)
					slog.Info("message delivery failed",
						slog.String("key", string(ev.Key)),
						slog.String("topic", *ev.TopicPartition.Topic),
						slog.String("error", ev.TopicPartition.Error.Error()))
				} else {
					counts.Delivered.Add(1)
				}
			default:
				if e != nil {
					if kerr, ok := e.(kafka.Error); ok && kerr.Code() == kafka.ErrAllBrokersDown {
						slog.Error("All brokers down", slog.String("error", kerr.Error()))
						os.Exit(1)
					}
					slog.Info("Event ignored", slog.String("event", e.String()))
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// WatchLogs drains the client log channel until it closes or ctx is
// cancelled.
func WatchLogs(ctx context.Context, logs <-chan kafka.LogEvent) {
	for {
		select {
		case le, ok := <-logs:
			if !ok {
				return
			}
			slog.Info("producer log", slog.String("event", le.String()))
		case <-ctx.Done():
			return
		}
	}
}

// Publish hands one staged message to the producer. A full local queue backs
// off per retry before giving up; any other produce error fails immediately.
func Publish(producer *kafka.Producer, topic string, msg StagedMessage, retry Retrier, maxRetries int) error {
	kafkaMessage := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(msg.Key),
		Value:          msg.Payload,
		Headers:        []kafka.Header{{Key: RunIDHeader, Value: []byte(msg.RunID)}},
	}

	for attempt := 0; ; attempt++ {
		err := producer.Produce(kafkaMessage, nil)
		if err == nil {
			return nil
		}
		kerr, ok := err.(kafka.Error)
		if !ok || kerr.Code() != kafka.ErrQueueFull || attempt >= maxRetries {
			return errors.Wrapf(err, "produce %s", msg.Key)
		}
		delay := retry.RetryIn(attempt, maxRetries)
		slog.Info("Queue full, pausing and retrying...",
			slog.String("key", msg.Key),
			slog.String("delay", delay.String()))
		time.Sleep(delay)
	}
}

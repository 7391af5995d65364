package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/converso-labs/chatbridge/internal/metrics"
	"github.com/converso-labs/chatbridge/internal/models"
)

const (
	jobStreamName  = "WEBHOOK_JOBS"
	jobSubjectBase = "webhooks.jobs."
)

// jobStreamConfig keeps jobs durable for a day; WorkQueuePolicy delivers
// each message to exactly one worker.
var jobStreamConfig = jetstream.StreamConfig{
	Name:      jobStreamName,
	Subjects:  []string{jobSubjectBase + ">"},
	MaxAge:    24 * time.Hour,
	MaxBytes:  1024 * 1024 * 1024,
	MaxMsgs:   1000000,
	Retention: jetstream.WorkQueuePolicy,
	Storage:   jetstream.FileStorage,
}

type jetStreamQueue struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewJetStreamQueue connects to NATS and ensures the job stream exists.
// Safe for use across multiple service instances.
func NewJetStreamQueue(ctx context.Context, url string) (Queue, error) {
	conn, err := nats.Connect(url,
		nats.Name("chatbridge"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jobStreamConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create job stream: %w", err)
	}

	return &jetStreamQueue{conn: conn, js: js, stream: stream}, nil
}

func subjectFor(queue models.QueueName) string {
	return jobSubjectBase + string(queue)
}

func (q *jetStreamQueue) Enqueue(ctx context.Context, job *models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if _, err := q.js.Publish(ctx, subjectFor(job.Queue), data); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	metrics.JobsEnqueued.WithLabelValues(string(job.Queue)).Inc()
	return nil
}

func (q *jetStreamQueue) Consume(ctx context.Context, queue models.QueueName, handler Handler) (func(), error) {
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          "workers-" + string(queue),
		Durable:       "workers-" + string(queue),
		FilterSubject: subjectFor(queue),
		AckWait:       2 * time.Minute,
		MaxAckPending: 64,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for %s: %w", queue, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var job models.Job
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			// Poison message; never parseable, never retryable.
			slog.Error("unparseable job message, terminating", slog.String("error", err.Error()))
			_ = msg.Term()
			return
		}

		// NotBefore is a batching hint; park the message until due.
		if wait := time.Until(job.NotBefore); wait > 0 {
			_ = msg.NakWithDelay(wait)
			return
		}

		if err := handler(consumeCtx, &job); err != nil {
			_ = msg.NakWithDelay(5 * time.Second)
			return
		}

		_ = msg.Ack()
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start consuming %s: %w", queue, err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}

func (q *jetStreamQueue) Close() error {
	q.conn.Close()
	return nil
}

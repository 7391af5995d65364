// Package executor drains the job queues and drives each webhook job
// through the bridge transformation, retrying transient failures with a
// growing delay and parking the rest in the dead-letter store.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/converso-labs/chatbridge/internal/bridge"
	"github.com/converso-labs/chatbridge/internal/clients"
	"github.com/converso-labs/chatbridge/internal/deadletter"
	"github.com/converso-labs/chatbridge/internal/logging"
	"github.com/converso-labs/chatbridge/internal/metrics"
	"github.com/converso-labs/chatbridge/internal/models"
	"github.com/converso-labs/chatbridge/internal/queue"
)

const (
	ReasonMaxAttempts = "max_attempts_exhausted"
	ReasonPermanent   = "permanent_failure"
)

// Processor is the unit of work applied to each job. bridge.Transformer
// is the production implementation.
type Processor interface {
	Process(ctx context.Context, job *models.Job) error
}

type Options struct {
	// AttemptTimeout bounds a single processing attempt. A timed-out
	// attempt counts as transient.
	AttemptTimeout time.Duration

	// HighWorkers and NormalWorkers size the per-tier consumer pools.
	// The high tier gets more workers so conversation lifecycle events
	// keep moving when message traffic backs up.
	HighWorkers   int
	NormalWorkers int

	// MaxAttempts caps requeued dead letters, matching the dispatcher's
	// setting for fresh jobs.
	MaxAttempts int
}

func (o *Options) defaults() {
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 30 * time.Second
	}
	if o.HighWorkers <= 0 {
		o.HighWorkers = 4
	}
	if o.NormalWorkers <= 0 {
		o.NormalWorkers = 2
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
}

type Executor struct {
	queue     queue.Queue
	processor Processor
	letters   deadletter.Repository
	logger    *logging.Logger
	opts      Options

	now   func() time.Time
	stops []func()
}

func New(q queue.Queue, p Processor, letters deadletter.Repository, logger *logging.Logger, opts Options) *Executor {
	opts.defaults()
	return &Executor{
		queue:     q,
		processor: p,
		letters:   letters,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// WithClock overrides the executor's clock. Test hook.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Start attaches consumer pools to both priority tiers. It returns once
// the consumers are registered; processing continues until Stop or ctx
// cancellation.
func (e *Executor) Start(ctx context.Context) error {
	tiers := []struct {
		queue   models.QueueName
		workers int
	}{
		{models.QueueHigh, e.opts.HighWorkers},
		{models.QueueNormal, e.opts.NormalWorkers},
	}
	for _, t := range tiers {
		for i := 0; i < t.workers; i++ {
			stop, err := e.queue.Consume(ctx, t.queue, e.Handle)
			if err != nil {
				e.Stop()
				return fmt.Errorf("start %s consumer: %w", t.queue, err)
			}
			e.stops = append(e.stops, stop)
		}
	}
	e.logger.Info("executor started",
		slog.Int("high_workers", e.opts.HighWorkers),
		slog.Int("normal_workers", e.opts.NormalWorkers))
	return nil
}

// Stop detaches all consumers. In-flight attempts finish on their own
// attempt timeout.
func (e *Executor) Stop() {
	for _, stop := range e.stops {
		stop()
	}
	e.stops = nil
}

// Handle runs one delivery attempt for a job. A nil return always
// acknowledges the delivery; retries are expressed by enqueueing a fresh
// job with a later NotBefore, never by redelivering this one.
func (e *Executor) Handle(ctx context.Context, job *models.Job) error {
	attempt := job.Attempt + 1
	log := e.logger.With(
		logging.JobID(job.JobID),
		logging.WebhookID(job.WebhookID),
		logging.EventType(string(job.EventType)),
		logging.Queue(string(job.Queue)),
		logging.Attempt(attempt),
	)

	log.Debug("job attempt started", logging.JobState(models.JobRunning))

	start := e.now()
	attemptCtx, cancel := context.WithTimeout(ctx, e.opts.AttemptTimeout)
	err := e.processor.Process(attemptCtx, job)
	cancel()
	metrics.JobDuration.Observe(e.now().Sub(start).Seconds())

	switch {
	case err == nil:
		metrics.JobAttempts.WithLabelValues(string(job.Queue), "completed").Inc()
		log.Info("job completed", logging.JobState(models.JobCompleted))
		return nil

	case isPermanent(err):
		metrics.JobAttempts.WithLabelValues(string(job.Queue), "permanent").Inc()
		log.Error("job failed permanently", logging.Err(err))
		return e.park(ctx, job, attempt, err, ReasonPermanent)

	case attempt >= job.MaxAttempts:
		metrics.JobAttempts.WithLabelValues(string(job.Queue), "exhausted").Inc()
		log.Error("job exhausted retries", logging.Err(err))
		return e.park(ctx, job, attempt, err, ReasonMaxAttempts)

	default:
		metrics.JobAttempts.WithLabelValues(string(job.Queue), "retrying").Inc()
		delay := Backoff(attempt)
		log.Warn("job attempt failed, scheduling retry",
			logging.Err(err),
			logging.JobState(models.JobRetrying),
			slog.Duration("retry_in", delay))
		return e.reschedule(ctx, job, attempt, delay)
	}
}

// reschedule enqueues a successor job carrying the incremented attempt
// count. If the enqueue itself fails we return the error so the queue
// redelivers the original message and no attempt is lost.
func (e *Executor) reschedule(ctx context.Context, job *models.Job, attempt int, delay time.Duration) error {
	next := *job
	next.Attempt = attempt
	next.NotBefore = e.now().Add(delay)
	if err := e.queue.Enqueue(ctx, &next); err != nil {
		return fmt.Errorf("reschedule job %s: %w", job.JobID, err)
	}
	return nil
}

// park writes the job to the dead-letter store. Persistence failures are
// returned so the queue redelivers rather than silently dropping the job.
func (e *Executor) park(ctx context.Context, job *models.Job, attempts int, cause error, reason string) error {
	dl := &models.DeadLetter{
		ID:        uuid.New().String(),
		JobID:     job.JobID,
		WebhookID: job.WebhookID,
		EventType: job.EventType,
		Queue:     job.Queue,
		Payload:   job.Payload,
		Attempts:  attempts,
		LastError: cause.Error(),
		Reason:    reason,
		CreatedAt: e.now(),
	}
	if err := e.letters.Create(ctx, dl); err != nil {
		return fmt.Errorf("dead-letter job %s: %w", job.JobID, err)
	}
	metrics.DeadLettersTotal.WithLabelValues(reason).Inc()
	e.logger.Info("job dead-lettered",
		logging.JobID(job.JobID),
		logging.JobState(models.JobDeadLettered),
		slog.String("dead_letter_id", dl.ID),
		slog.String("reason", reason))
	return nil
}

// RequeueDeadLetter pushes a parked job back onto its original queue
// with a reset attempt counter and marks the row as requeued.
func (e *Executor) RequeueDeadLetter(ctx context.Context, id string) error {
	dl, err := e.letters.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if dl.RequeuedAt != nil {
		return fmt.Errorf("dead letter %s already requeued at %s", id, dl.RequeuedAt.Format(time.RFC3339))
	}

	job := &models.Job{
		JobID:       uuid.New().String(),
		WebhookID:   dl.WebhookID,
		EventType:   dl.EventType,
		Queue:       dl.Queue,
		Payload:     dl.Payload,
		Attempt:     0,
		MaxAttempts: e.opts.MaxAttempts,
		NotBefore:   e.now(),
		EnqueuedAt:  e.now(),
	}
	if err := e.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("requeue dead letter %s: %w", id, err)
	}
	if err := e.letters.MarkRequeued(ctx, id); err != nil {
		return fmt.Errorf("mark dead letter %s requeued: %w", id, err)
	}
	e.logger.Info("dead letter requeued",
		slog.String("dead_letter_id", id),
		logging.JobID(job.JobID))
	return nil
}

// isPermanent reports whether retrying err can never succeed.
func isPermanent(err error) bool {
	return errors.Is(err, bridge.ErrMalformedJob) || clients.IsPermanent(err)
}

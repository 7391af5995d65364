// Package dispatch implements the webhook intake pipeline: payload size
// gate, signature verification, timestamp tolerance, duplicate detection,
// and the enqueue that hands accepted deliveries to the executor. The
// pipeline is a pure function of (headers, body, source IP); it knows
// nothing about any web framework.
//
// Duplicate detection marks the idempotency key before enqueueing and
// compensates with Forget if the enqueue fails. A crash between the mark
// and the enqueue leaves the key set with no job behind it, so that
// delivery stays unanswered until the key's TTL expires; retries inside
// that window are reported as duplicates.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/converso-labs/chatbridge/internal/anomaly"
	"github.com/converso-labs/chatbridge/internal/guard"
	"github.com/converso-labs/chatbridge/internal/idempotency"
	"github.com/converso-labs/chatbridge/internal/logging"
	"github.com/converso-labs/chatbridge/internal/metrics"
	"github.com/converso-labs/chatbridge/internal/models"
	"github.com/converso-labs/chatbridge/internal/queue"
	"github.com/converso-labs/chatbridge/internal/signature"
)

// State tracks a delivery through the intake pipeline, for logging and
// rejection diagnostics.
type State string

const (
	StateReceived         State = "received"
	StateSizeChecked      State = "size_checked"
	StateSignatureChecked State = "signature_checked"
	StateTimestampChecked State = "timestamp_checked"
	StateDedupChecked     State = "dedup_checked"
	StateEnqueued         State = "enqueued"
	StateAcknowledged     State = "acknowledged"
	StateRejected         State = "rejected"
)

// Decision is the tri-state outcome of the intake pipeline. Duplicates are
// a normal outcome, not an error.
type Decision int

const (
	DecisionRejected Decision = iota
	DecisionAccepted
	DecisionDuplicate
)

// Request is the framework-independent intake input. ContentLength < 0
// means the transport did not declare one.
type Request struct {
	SignatureHeader string
	TimestampHeader string
	ContentLength   int64
	Body            []byte
	SourceIP        string
	UserAgent       string
}

// Result is what the HTTP layer renders. Job is set only for accepted
// deliveries.
type Result struct {
	Decision   Decision
	State      State
	HTTPStatus int
	ErrorCode  string
	Message    string
	RetryAfter int
	Envelope   *models.Envelope
	Job        *models.Job
}

// Dispatcher orchestrates the intake guards in order and enqueues accepted
// deliveries. It never blocks on the business transformation.
type Dispatcher struct {
	verifier    *signature.Verifier
	sizes       *guard.SizeGuard
	store       idempotency.Store
	jobs        queue.Queue
	detector    *anomaly.Detector
	ttl         time.Duration
	delay       time.Duration
	maxAttempts int
	logger      *logging.Logger
	now         func() time.Time
}

type Config struct {
	IdempotencyTTL time.Duration
	DispatchDelay  time.Duration
	MaxAttempts    int
}

func New(verifier *signature.Verifier, sizes *guard.SizeGuard, store idempotency.Store, jobs queue.Queue, detector *anomaly.Detector, cfg Config, logger *logging.Logger) *Dispatcher {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Dispatcher{
		verifier:    verifier,
		sizes:       sizes,
		store:       store,
		jobs:        jobs,
		detector:    detector,
		ttl:         cfg.IdempotencyTTL,
		delay:       cfg.DispatchDelay,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// Dispatch runs the guard pipeline for one delivery. Guard order matters:
// the size gate runs before any cryptographic work, and duplicate detection
// runs only on fully authenticated envelopes.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	state := StateReceived

	// Fast-path block lookup, before any other guard.
	if d.detector.IsBlocked(ctx, req.SourceIP) {
		d.logger.WarnContext(ctx, "delivery from blocked ip rejected", logging.IP(req.SourceIP))
		return rejected(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "source temporarily blocked", 3600)
	}

	d.detector.RecordRequest(ctx, req.SourceIP, http.MethodPost, "/webhooks")

	// Size gate first: no signature work on oversized bodies.
	if req.ContentLength >= 0 {
		if err := d.sizes.CheckDeclared(req.ContentLength); err != nil {
			return d.reject(ctx, req, state, err)
		}
	}
	if err := d.sizes.CheckActual(int64(len(req.Body))); err != nil {
		return d.reject(ctx, req, state, err)
	}
	state = StateSizeChecked
	metrics.WebhookBytesTotal.Add(float64(len(req.Body)))

	if req.SignatureHeader == "" {
		return d.reject(ctx, req, state, signature.ErrMissingSignature)
	}
	ts, err := signature.ParseTimestamp(req.TimestampHeader)
	if err != nil {
		return d.reject(ctx, req, state, err)
	}

	if err := d.verifier.Verify(req.Body, ts, req.SignatureHeader); err != nil {
		d.logger.WarnContext(ctx, "signature mismatch",
			logging.IP(req.SourceIP),
			slog.String("provided", logging.TruncateSignature(req.SignatureHeader)),
			slog.Int64("timestamp", ts))
		return d.reject(ctx, req, state, err)
	}
	state = StateSignatureChecked

	if err := d.verifier.ValidateTimestamp(ts, d.now().Unix()); err != nil {
		d.logger.WarnContext(ctx, "timestamp outside tolerance",
			logging.IP(req.SourceIP), slog.Int64("timestamp", ts))
		return d.reject(ctx, req, state, err)
	}
	state = StateTimestampChecked

	var body models.WebhookBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return rejected(http.StatusBadRequest, "VALIDATION_ERROR", "body is not valid JSON", 0)
	}
	if !body.Event.Valid() {
		return rejected(http.StatusBadRequest, "VALIDATION_ERROR", "unknown event type", 0)
	}

	env := &models.Envelope{
		ID:         body.ID,
		EventType:  body.Event,
		Timestamp:  ts,
		RawPayload: req.Body,
		Signature:  req.SignatureHeader,
		SourceIP:   req.SourceIP,
		UserAgent:  req.UserAgent,
	}

	// Duplicate detection. The atomic set-if-not-exists is the gate: the
	// winner proceeds to enqueue, everyone else is acknowledged as a
	// duplicate without enqueueing anything. Envelopes without an id
	// cannot be deduplicated and skip the store.
	if env.Deduplicable() {
		fresh, err := d.store.MarkIfNew(ctx, env.ID, d.ttl)
		if err != nil {
			d.logger.ErrorContext(ctx, "idempotency store unavailable",
				logging.WebhookID(env.ID), logging.Err(err))
			return rejected(http.StatusServiceUnavailable, "SERVER_BUSY", "try again shortly", 0)
		}
		if !fresh {
			metrics.DuplicatesTotal.Inc()
			metrics.WebhooksTotal.WithLabelValues(string(env.EventType), "duplicate").Inc()
			d.logger.InfoContext(ctx, "duplicate delivery acknowledged",
				logging.WebhookID(env.ID), logging.EventType(string(env.EventType)))
			return Result{
				Decision:   DecisionDuplicate,
				State:      StateAcknowledged,
				HTTPStatus: http.StatusOK,
				Envelope:   env,
			}
		}
	} else {
		d.logger.InfoContext(ctx, "envelope has no id, skipping deduplication",
			logging.EventType(string(env.EventType)), logging.IP(env.SourceIP))
	}
	state = StateDedupChecked

	job := &models.Job{
		JobID:       uuid.New().String(),
		WebhookID:   env.ID,
		EventType:   env.EventType,
		Queue:       models.QueueFor(env.EventType),
		Payload:     req.Body,
		Attempt:     0,
		MaxAttempts: d.maxAttempts,
		NotBefore:   d.now().Add(d.delay),
		EnqueuedAt:  d.now(),
		SourceIP:    env.SourceIP,
	}

	if err := d.jobs.Enqueue(ctx, job); err != nil {
		// Undo the mark so the source's redelivery is not treated as a
		// duplicate of work that never got queued.
		if env.Deduplicable() {
			if ferr := d.store.Forget(ctx, env.ID); ferr != nil {
				d.logger.ErrorContext(ctx, "failed to roll back idempotency mark",
					logging.WebhookID(env.ID), logging.Err(ferr))
			}
		}
		d.logger.ErrorContext(ctx, "enqueue failed",
			logging.WebhookID(env.ID), logging.Queue(string(job.Queue)), logging.Err(err))
		return rejected(http.StatusServiceUnavailable, "SERVER_BUSY", "try again shortly", 0)
	}
	state = StateEnqueued

	metrics.WebhooksTotal.WithLabelValues(string(env.EventType), "accepted").Inc()
	d.logger.InfoContext(ctx, "delivery accepted",
		logging.WebhookID(env.ID),
		logging.EventType(string(env.EventType)),
		logging.JobID(job.JobID),
		logging.Queue(string(job.Queue)),
		slog.String("state", string(state)))

	return Result{
		Decision:   DecisionAccepted,
		State:      StateAcknowledged,
		HTTPStatus: http.StatusOK,
		Envelope:   env,
		Job:        job,
	}
}

// reject maps a guard error onto its HTTP shape and records the violation
// with the anomaly detector.
func (d *Dispatcher) reject(ctx context.Context, req Request, state State, err error) Result {
	var (
		status    int
		code      string
		violation string
	)
	switch {
	case errors.Is(err, guard.ErrPayloadTooLarge):
		status, code, violation = http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload_too_large"
	case errors.Is(err, signature.ErrMissingSignature):
		status, code, violation = http.StatusUnauthorized, "TOKEN_MISSING", "missing_signature"
	case errors.Is(err, signature.ErrMissingTimestamp):
		status, code, violation = http.StatusUnauthorized, "TIMESTAMP_MISSING", "missing_timestamp"
	case errors.Is(err, signature.ErrInvalidSignature):
		status, code, violation = http.StatusForbidden, "INVALID_SIGNATURE", "invalid_signature"
	case errors.Is(err, signature.ErrTimestampExpired):
		status, code, violation = http.StatusUnauthorized, "TIMESTAMP_EXPIRED", "timestamp_expired"
	default:
		status, code, violation = http.StatusBadRequest, "VALIDATION_ERROR", "validation_error"
	}

	metrics.SignatureFailures.WithLabelValues(violation).Inc()
	d.detector.RecordViolation(ctx, req.SourceIP, violation)
	d.logger.DebugContext(ctx, "delivery rejected",
		logging.IP(req.SourceIP),
		slog.String("last_state", string(state)),
		slog.String("error_code", code))

	return rejected(status, code, err.Error(), 0)
}

func rejected(status int, code, message string, retryAfter int) Result {
	metrics.WebhooksTotal.WithLabelValues("unknown", "rejected").Inc()
	return Result{
		Decision:   DecisionRejected,
		State:      StateRejected,
		HTTPStatus: status,
		ErrorCode:  code,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// WithClock overrides the dispatcher's clock. Tests only.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

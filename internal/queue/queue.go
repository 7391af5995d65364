// Package queue provides priority-differentiated work queues for accepted
// webhook jobs. The delay carried in a job's NotBefore field is a scheduling
// hint for batching; an implementation that delivers immediately is still
// correct, just less batched.
package queue

import (
	"context"
	"errors"

	"github.com/converso-labs/chatbridge/internal/models"
)

var ErrQueueClosed = errors.New("queue is closed")

// Handler processes one dequeued job. Returning an error redelivers the
// job after a short delay; the executor handles business-level retries
// itself and only errors here on infrastructure problems.
type Handler func(ctx context.Context, job *models.Job) error

// Queue is the enqueue/consume contract shared by the dispatcher and the
// executor. The job's Queue field selects the priority tier and NotBefore
// the earliest delivery time.
type Queue interface {
	Enqueue(ctx context.Context, job *models.Job) error

	// Consume starts delivering jobs from the given tier to handler until
	// the returned stop function is called or ctx is cancelled.
	Consume(ctx context.Context, queue models.QueueName, handler Handler) (stop func(), err error)

	Close() error
}

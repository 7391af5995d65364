package queue

import (
	"context"
	"sync"
	"time"

	"github.com/converso-labs/chatbridge/internal/metrics"
	"github.com/converso-labs/chatbridge/internal/models"
)

type memoryQueue struct {
	mu     sync.Mutex
	chans  map[models.QueueName]chan *models.Job
	closed bool
	wg     sync.WaitGroup
}

// NewMemoryQueue creates an in-process Queue. Jobs are buffered per tier;
// delivery honors NotBefore by waiting before invoking the handler. Single
// instance only, no durability; the JetStream queue is the production path.
func NewMemoryQueue(buffer int) Queue {
	if buffer <= 0 {
		buffer = 1024
	}
	return &memoryQueue{
		chans: map[models.QueueName]chan *models.Job{
			models.QueueHigh:   make(chan *models.Job, buffer),
			models.QueueNormal: make(chan *models.Job, buffer),
		},
	}
}

func (q *memoryQueue) Enqueue(ctx context.Context, job *models.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch, ok := q.chans[job.Queue]
	q.mu.Unlock()

	if !ok {
		ch = q.chans[models.QueueNormal]
	}

	select {
	case ch <- job:
		metrics.JobsEnqueued.WithLabelValues(string(job.Queue)).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memoryQueue) Consume(ctx context.Context, queue models.QueueName, handler Handler) (func(), error) {
	q.mu.Lock()
	ch, ok := q.chans[queue]
	q.mu.Unlock()
	if !ok {
		return nil, ErrQueueClosed
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case job, open := <-ch:
				if !open {
					return
				}
				q.deliver(consumeCtx, job, handler)
			case <-consumeCtx.Done():
				return
			}
		}
	}()

	return cancel, nil
}

func (q *memoryQueue) deliver(ctx context.Context, job *models.Job, handler Handler) {
	if wait := time.Until(job.NotBefore); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
	// Redelivery on handler error is intentionally absent here; the
	// executor owns retries and never errors for business failures.
	_ = handler(ctx, job)
}

func (q *memoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	return nil
}

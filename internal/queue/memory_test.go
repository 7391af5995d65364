package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converso-labs/chatbridge/internal/models"
)

func TestMemoryQueue_EnqueueConsume(t *testing.T) {
	q := NewMemoryQueue(16)
	defer q.Close()
	ctx := context.Background()

	received := make(chan *models.Job, 1)
	stop, err := q.Consume(ctx, models.QueueHigh, func(ctx context.Context, job *models.Job) error {
		received <- job
		return nil
	})
	require.NoError(t, err)
	defer stop()

	job := &models.Job{
		JobID:     "job-1",
		WebhookID: "evt_1",
		EventType: models.EventConversationCreated,
		Queue:     models.QueueHigh,
	}
	require.NoError(t, q.Enqueue(ctx, job))

	select {
	case got := <-received:
		assert.Equal(t, "job-1", got.JobID)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}
}

func TestMemoryQueue_TiersAreIsolated(t *testing.T) {
	q := NewMemoryQueue(16)
	defer q.Close()
	ctx := context.Background()

	var mu sync.Mutex
	var normalSeen []string
	stop, err := q.Consume(ctx, models.QueueNormal, func(ctx context.Context, job *models.Job) error {
		mu.Lock()
		normalSeen = append(normalSeen, job.JobID)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, q.Enqueue(ctx, &models.Job{JobID: "high-1", Queue: models.QueueHigh}))
	require.NoError(t, q.Enqueue(ctx, &models.Job{JobID: "normal-1", Queue: models.QueueNormal}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(normalSeen) == 1 && normalSeen[0] == "normal-1"
	}, 2*time.Second, 10*time.Millisecond, "normal consumer should only see normal-tier jobs")
}

func TestMemoryQueue_HonorsNotBefore(t *testing.T) {
	q := NewMemoryQueue(16)
	defer q.Close()
	ctx := context.Background()

	delivered := make(chan time.Time, 1)
	stop, err := q.Consume(ctx, models.QueueNormal, func(ctx context.Context, job *models.Job) error {
		delivered <- time.Now()
		return nil
	})
	require.NoError(t, err)
	defer stop()

	delay := 100 * time.Millisecond
	enqueuedAt := time.Now()
	require.NoError(t, q.Enqueue(ctx, &models.Job{
		JobID:     "delayed-1",
		Queue:     models.QueueNormal,
		NotBefore: enqueuedAt.Add(delay),
	}))

	select {
	case at := <-delivered:
		assert.GreaterOrEqual(t, at.Sub(enqueuedAt), delay)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed job was not delivered")
	}
}

func TestMemoryQueue_ClosedRejectsEnqueue(t *testing.T) {
	q := NewMemoryQueue(16)
	require.NoError(t, q.Close())

	err := q.Enqueue(context.Background(), &models.Job{JobID: "late", Queue: models.QueueNormal})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueue_StopDetachesConsumer(t *testing.T) {
	q := NewMemoryQueue(16)
	defer q.Close()
	ctx := context.Background()

	received := make(chan *models.Job, 4)
	stop, err := q.Consume(ctx, models.QueueNormal, func(ctx context.Context, job *models.Job) error {
		received <- job
		return nil
	})
	require.NoError(t, err)
	stop()

	// Give the consumer goroutine a moment to exit, then enqueue.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, &models.Job{JobID: "after-stop", Queue: models.QueueNormal}))

	select {
	case <-received:
		t.Fatal("stopped consumer should not receive jobs")
	case <-time.After(100 * time.Millisecond):
	}
}

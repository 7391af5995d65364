// Package deadletter persists terminally failed jobs for manual triage.
// Dead letters are inert: nothing retries them automatically, and the
// webhook source never learns about them.
package deadletter

import (
	"context"
	"errors"

	"github.com/converso-labs/chatbridge/internal/models"
)

var ErrNotFound = errors.New("dead letter not found")

// Repository is the dead-letter store contract.
type Repository interface {
	Create(ctx context.Context, dl *models.DeadLetter) error
	GetByID(ctx context.Context, id string) (*models.DeadLetter, error)
	List(ctx context.Context, limit int) ([]*models.DeadLetter, error)

	// MarkRequeued records that an operator pushed the job back onto a
	// queue. The row is kept for audit; RequeuedAt distinguishes it.
	MarkRequeued(ctx context.Context, id string) error

	Purge(ctx context.Context) (int64, error)
	Close() error
}

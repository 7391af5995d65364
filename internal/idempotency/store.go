package idempotency

import (
	"context"
	"time"
)

// Store records webhook ids that have already been accepted so duplicate
// deliveries can be short-circuited.
//
// MarkIfNew is the only mutation and must be atomic: a check followed by a
// separate write would let two concurrent deliveries of the same id both
// pass. Implementations use a single set-if-not-exists-with-ttl operation.
type Store interface {
	// MarkIfNew records id with the given TTL. It returns true when the id
	// was unseen (this delivery wins), false when it was already recorded.
	MarkIfNew(ctx context.Context, id string, ttl time.Duration) (bool, error)

	// Seen reports whether id is currently recorded. Used by the
	// status-check endpoint; never used on the intake path.
	Seen(ctx context.Context, id string) (bool, error)

	// Forget removes a mark. The dispatcher compensates with this when the
	// enqueue that followed a successful MarkIfNew fails, so the source's
	// retry of the same delivery is not mistaken for a duplicate.
	Forget(ctx context.Context, id string) error

	Close() error
}

package anomaly

import (
	"context"
	"time"
)

// CounterStore is the shared mutable state behind the anomaly detector:
// rolling counters with TTL windows and a temporary IP block set. Increments
// must be atomic (no read-then-write races); single-instance deployments can
// back it with an in-process map, multi-instance with Redis.
type CounterStore interface {
	// Incr atomically increments key within the rolling window and returns
	// the new count. The first increment in a window starts its TTL.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)

	// Block temporarily blocks an IP for the given duration.
	Block(ctx context.Context, ip string, duration time.Duration) error

	// IsBlocked is the fast-path entry check, run before any other guard.
	IsBlocked(ctx context.Context, ip string) (bool, error)

	// Unblock removes a block before it expires. Operator use only.
	Unblock(ctx context.Context, ip string) error

	// ActiveBlocks lists currently blocked IPs for the admin surface.
	ActiveBlocks(ctx context.Context) ([]string, error)

	Close() error
}

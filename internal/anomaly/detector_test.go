package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converso-labs/chatbridge/internal/logging"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		violations int64
		attempts   int64
		expected   Severity
	}{
		{name: "first violation", violations: 1, attempts: 1, expected: SeverityLow},
		{name: "attempts reach medium", violations: 1, attempts: 20, expected: SeverityMedium},
		{name: "second violation escalates high", violations: 2, attempts: 5, expected: SeverityHigh},
		{name: "attempts reach high", violations: 1, attempts: 50, expected: SeverityHigh},
		{name: "third violation critical", violations: 3, attempts: 5, expected: SeverityCritical},
		{name: "attempt flood critical", violations: 1, attempts: 100, expected: SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classify(tt.violations, tt.attempts))
		})
	}
}

func setupTestDetector(t *testing.T) (*miniredis.Miniredis, *Detector) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewRedisCounterStoreFromClient(client)
	return mr, NewDetector(store, time.Hour, logging.Default())
}

func TestDetector_ViolationEscalation(t *testing.T) {
	_, d := setupTestDetector(t)
	ctx := context.Background()
	ip := "203.0.113.50"

	assert.Equal(t, SeverityLow, d.RecordViolation(ctx, ip, "invalid_signature"))
	assert.Equal(t, SeverityHigh, d.RecordViolation(ctx, ip, "invalid_signature"))
	assert.Equal(t, SeverityCritical, d.RecordViolation(ctx, ip, "invalid_signature"))

	assert.True(t, d.IsBlocked(ctx, ip), "third violation should auto-block")
}

func TestDetector_ViolationTypesCountedSeparately(t *testing.T) {
	_, d := setupTestDetector(t)
	ctx := context.Background()
	ip := "203.0.113.51"

	assert.Equal(t, SeverityLow, d.RecordViolation(ctx, ip, "invalid_signature"))
	assert.Equal(t, SeverityLow, d.RecordViolation(ctx, ip, "timestamp_expired"))

	// Per-type counters are both at 1, but the shared attempt counter is
	// at 3 now; still below the medium threshold.
	assert.Equal(t, SeverityLow, d.RecordViolation(ctx, ip, "payload_too_large"))
	assert.False(t, d.IsBlocked(ctx, ip))
}

func TestDetector_BlockExpires(t *testing.T) {
	mr, d := setupTestDetector(t)
	ctx := context.Background()
	ip := "203.0.113.52"

	for i := 0; i < 3; i++ {
		d.RecordViolation(ctx, ip, "invalid_signature")
	}
	require.True(t, d.IsBlocked(ctx, ip))

	mr.FastForward(time.Hour + time.Minute)
	assert.False(t, d.IsBlocked(ctx, ip))
}

func TestDetector_Unblock(t *testing.T) {
	_, d := setupTestDetector(t)
	ctx := context.Background()
	ip := "203.0.113.53"

	for i := 0; i < 3; i++ {
		d.RecordViolation(ctx, ip, "invalid_signature")
	}
	require.True(t, d.IsBlocked(ctx, ip))

	blocks, err := d.ActiveBlocks(ctx)
	require.NoError(t, err)
	assert.Contains(t, blocks, ip)

	require.NoError(t, d.Unblock(ctx, ip))
	assert.False(t, d.IsBlocked(ctx, ip))
}

func TestDetector_FailsOpenOnStoreErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisCounterStoreFromClient(client)
	d := NewDetector(store, time.Hour, logging.Default())
	ctx := context.Background()

	mr.Close()
	client.Close()

	assert.False(t, d.IsBlocked(ctx, "203.0.113.54"))
	assert.NotPanics(t, func() {
		d.RecordRequest(ctx, "203.0.113.54", "POST", "/webhooks")
		d.RecordViolation(ctx, "203.0.113.54", "invalid_signature")
	})
}

func TestMemoryCounterStore(t *testing.T) {
	store := NewMemoryCounterStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("incr counts within window", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := store.Incr(ctx, "k1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("block and unblock", func(t *testing.T) {
		require.NoError(t, store.Block(ctx, "198.51.100.7", time.Hour))

		blocked, err := store.IsBlocked(ctx, "198.51.100.7")
		require.NoError(t, err)
		assert.True(t, blocked)

		blocks, err := store.ActiveBlocks(ctx)
		require.NoError(t, err)
		assert.Contains(t, blocks, "198.51.100.7")

		require.NoError(t, store.Unblock(ctx, "198.51.100.7"))
		blocked, err = store.IsBlocked(ctx, "198.51.100.7")
		require.NoError(t, err)
		assert.False(t, blocked)
	})
}

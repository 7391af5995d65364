package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisStoreFromClient(client)
}

func TestRedisStore_MarkIfNew(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	t.Run("first mark wins", func(t *testing.T) {
		fresh, err := store.MarkIfNew(ctx, "evt_1", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("second mark loses", func(t *testing.T) {
		fresh, err := store.MarkIfNew(ctx, "evt_1", time.Hour)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("other ids unaffected", func(t *testing.T) {
		fresh, err := store.MarkIfNew(ctx, "evt_2", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	mr, store := setupTestRedis(t)
	ctx := context.Background()

	fresh, err := store.MarkIfNew(ctx, "evt_ttl", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, fresh)

	mr.FastForward(11 * time.Second)

	seen, err := store.Seen(ctx, "evt_ttl")
	require.NoError(t, err)
	assert.False(t, seen)

	fresh, err = store.MarkIfNew(ctx, "evt_ttl", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestRedisStore_Forget(t *testing.T) {
	_, store := setupTestRedis(t)
	ctx := context.Background()

	fresh, err := store.MarkIfNew(ctx, "evt_rollback", time.Hour)
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, store.Forget(ctx, "evt_rollback"))

	fresh, err = store.MarkIfNew(ctx, "evt_rollback", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh, "a forgotten id should be markable again")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	t.Run("mark and seen", func(t *testing.T) {
		fresh, err := store.MarkIfNew(ctx, "evt_mem", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)

		fresh, err = store.MarkIfNew(ctx, "evt_mem", time.Hour)
		require.NoError(t, err)
		assert.False(t, fresh)

		seen, err := store.Seen(ctx, "evt_mem")
		require.NoError(t, err)
		assert.True(t, seen)
	})

	t.Run("unseen id", func(t *testing.T) {
		seen, err := store.Seen(ctx, "evt_never")
		require.NoError(t, err)
		assert.False(t, seen)
	})

	t.Run("expired entry is markable again", func(t *testing.T) {
		fresh, err := store.MarkIfNew(ctx, "evt_short", time.Millisecond)
		require.NoError(t, err)
		require.True(t, fresh)

		time.Sleep(5 * time.Millisecond)

		fresh, err = store.MarkIfNew(ctx, "evt_short", time.Hour)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("forget", func(t *testing.T) {
		_, err := store.MarkIfNew(ctx, "evt_forget", time.Hour)
		require.NoError(t, err)
		require.NoError(t, store.Forget(ctx, "evt_forget"))

		seen, err := store.Seen(ctx, "evt_forget")
		require.NoError(t, err)
		assert.False(t, seen)
	})
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

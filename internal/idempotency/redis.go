package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "webhook:seen:"

type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Store backed by Redis. SET NX EX gives the
// atomic set-if-not-exists-with-ttl the intake path depends on, and the
// store is shared across instances.
func NewRedisStore(redisURL string) (Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests and when
// the service shares one connection across stores.
func NewRedisStoreFromClient(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) MarkIfNew(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+id, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency mark failed: %w", err)
	}
	return ok, nil
}

func (s *redisStore) Seen(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	return n > 0, nil
}

func (s *redisStore) Forget(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("idempotency forget failed: %w", err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

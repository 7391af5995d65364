package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	counterPrefix = "anomaly:count:"
	blockPrefix   = "anomaly:block:"
)

// incrScript increments a counter and sets its window TTL only on the first
// hit, so the window does not slide forward with every increment.
const incrScript = `
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return current
`

type redisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a CounterStore backed by Redis, shared
// across all service instances.
func NewRedisCounterStore(redisURL string) (CounterStore, error) {
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

	return &redisCounterStore{client: client}, nil
}

// NewRedisCounterStoreFromClient wraps an existing client.
func NewRedisCounterStoreFromClient(client *redis.Client) CounterStore {
	return &redisCounterStore{client: client}
}

func (s *redisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := s.client.Eval(ctx, incrScript, []string{counterPrefix + key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("counter increment failed: %w", err)
	}
	return count, nil
}

func (s *redisCounterStore) Block(ctx context.Context, ip string, duration time.Duration) error {
	if err := s.client.Set(ctx, blockPrefix+ip, time.Now().UTC().Format(time.RFC3339), duration).Err(); err != nil {
		return fmt.Errorf("ip block failed: %w", err)
	}
	return nil
}

func (s *redisCounterStore) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := s.client.Exists(ctx, blockPrefix+ip).Result()
	if err != nil {
		return false, fmt.Errorf("block lookup failed: %w", err)
	}
	return n > 0, nil
}

func (s *redisCounterStore) Unblock(ctx context.Context, ip string) error {
	if err := s.client.Del(ctx, blockPrefix+ip).Err(); err != nil {
		return fmt.Errorf("ip unblock failed: %w", err)
	}
	return nil
}

func (s *redisCounterStore) ActiveBlocks(ctx context.Context) ([]string, error) {
	var (
		ips    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, blockPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("block scan failed: %w", err)
		}
		for _, key := range keys {
			ips = append(ips, key[len(blockPrefix):])
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return ips, nil
}

func (s *redisCounterStore) Close() error {
	return s.client.Close()
}

package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-process Store. Only suitable for a single
// instance; multi-instance deployments need the Redis store.
func NewMemoryStore() Store {
	s := &memoryStore{
		entries: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *memoryStore) MarkIfNew(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.entries[id]; ok && exp.After(now) {
		return false, nil
	}
	s.entries[id] = now.Add(ttl)
	return true, nil
}

func (s *memoryStore) Seen(ctx context.Context, id string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[id]
	return ok && exp.After(now), nil
}

func (s *memoryStore) Forget(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *memoryStore) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *memoryStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, exp := range s.entries {
		if exp.Before(now) {
			delete(s.entries, id)
		}
	}
}

func (s *memoryStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}

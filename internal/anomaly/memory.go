package anomaly

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

type memoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
	blocks   map[string]time.Time
	stopCh   chan struct{}
	once     sync.Once
}

// NewMemoryCounterStore creates an in-process CounterStore. Single
// instance only.
func NewMemoryCounterStore() CounterStore {
	s := &memoryCounterStore{
		counters: make(map[string]*memoryEntry),
		blocks:   make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *memoryCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.counters[key]
	if !ok || e.expiresAt.Before(now) {
		e = &memoryEntry{expiresAt: now.Add(window)}
		s.counters[key] = e
	}
	e.count++
	return e.count, nil
}

func (s *memoryCounterStore) Block(ctx context.Context, ip string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[ip] = time.Now().Add(duration)
	return nil
}

func (s *memoryCounterStore) IsBlocked(ctx context.Context, ip string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[ip]
	return ok && until.After(now), nil
}

func (s *memoryCounterStore) Unblock(ctx context.Context, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks, ip)
	return nil
}

func (s *memoryCounterStore) ActiveBlocks(ctx context.Context) ([]string, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var ips []string
	for ip, until := range s.blocks {
		if until.After(now) {
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

func (s *memoryCounterStore) cleanupLoop() {
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

func (s *memoryCounterStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.counters {
		if e.expiresAt.Before(now) {
			delete(s.counters, key)
		}
	}
	for ip, until := range s.blocks {
		if until.Before(now) {
			delete(s.blocks, ip)
		}
	}
}

func (s *memoryCounterStore) Close() error {
	s.once.Do(func() { close(s.stopCh) })
	return nil
}

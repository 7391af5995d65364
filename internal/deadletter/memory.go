package deadletter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/converso-labs/chatbridge/internal/models"
)

// MemoryRepository is an in-process Repository for tests and development.
type MemoryRepository struct {
	mu      sync.RWMutex
	letters map[string]*models.DeadLetter
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{letters: make(map[string]*models.DeadLetter)}
}

func (r *MemoryRepository) Create(ctx context.Context, dl *models.DeadLetter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *dl
	r.letters[dl.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.DeadLetter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dl, ok := r.letters[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *dl
	return &cp, nil
}

func (r *MemoryRepository) List(ctx context.Context, limit int) ([]*models.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.DeadLetter, 0, len(r.letters))
	for _, dl := range r.letters {
		cp := *dl
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) MarkRequeued(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dl, ok := r.letters[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	dl.RequeuedAt = &now
	return nil
}

func (r *MemoryRepository) Purge(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.letters))
	r.letters = make(map[string]*models.DeadLetter)
	return n, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

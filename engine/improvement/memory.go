package improvement

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used when no database is configured
// and by tests. Usage counters are guarded by the store mutex so
// concurrent analyses never lose increments.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	items  []*Improvement
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Insert(_ context.Context, imp *Improvement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	imp.ID = s.nextID
	s.nextID++
	if imp.CreatedAt.IsZero() {
		imp.CreatedAt = time.Now().UTC()
	}
	stored := *imp
	s.items = append(s.items, &stored)
	return nil
}

func (s *MemoryStore) Select(_ context.Context) (*Improvement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Improvement
	for _, item := range s.items {
		if !item.IsActive {
			continue
		}
		if best == nil ||
			item.UsageCount < best.UsageCount ||
			(item.UsageCount == best.UsageCount && item.CreatedAt.After(best.CreatedAt)) {
			best = item
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}

func (s *MemoryStore) RecordUsage(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			item.UsageCount++
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			item.IsActive = active
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]Improvement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Improvement, 0, len(s.items))
	for _, item := range s.items {
		if item.IsActive {
			out = append(out, *item)
		}
	}
	return out, nil
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]Hits
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]Hits),
		now:     time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (Hits, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	hits, ok := s.windows[key]
	if !ok || !now.Before(hits.ResetAt) {
		hits = Hits{ResetAt: now.Add(window)}
	}
	hits.Count++
	s.windows[key] = hits
	return hits, nil
}

func (s *MemoryStore) Prune(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped int64
	for key, hits := range s.windows {
		if !now.Before(hits.ResetAt) {
			delete(s.windows, key)
			dropped++
		}
	}
	return dropped, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

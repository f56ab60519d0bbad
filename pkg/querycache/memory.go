package querycache

import (
	"context"
	"sync"
)

// MemoryStore keeps persisted entries in memory. It is used in tests and for
// one-off lookups that should not touch disk.
type MemoryStore struct {
	mu      sync.Mutex
	entries Entries
	saves   int
	loadErr error
}

// NewMemoryStore returns a store preloaded with entries.
func NewMemoryStore(entries Entries) *MemoryStore {
	copied := make(Entries, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	return &MemoryStore{entries: copied}
}

// FailLoad makes the next Load calls return err.
func (s *MemoryStore) FailLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

func (s *MemoryStore) Load(ctx context.Context) (Entries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(Entries, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, all Entries, changed []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(Entries, len(all))
	for k, v := range all {
		s.entries[k] = v
	}
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) Close() error { return nil }

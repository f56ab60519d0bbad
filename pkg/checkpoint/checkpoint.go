// Package checkpoint records which keys a long batch job has already
// processed, so an interrupted run can be restarted without repeating work.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
)

// Store is a durable set of processed keys.
type Store interface {
	// Load returns every key recorded so far.
	Load(ctx context.Context) ([]string, error)
	// Add records keys. Keys already present are ignored.
	Add(ctx context.Context, keys ...string) error
	Close() error
}

// Tracker keeps the processed set in memory and writes through to a Store.
type Tracker struct {
	mu    sync.Mutex
	store Store
	done  map[string]bool
}

// NewTracker loads the processed set from store.
func NewTracker(ctx context.Context, store Store) (*Tracker, error) {
	keys, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	t := &Tracker{store: store, done: make(map[string]bool, len(keys))}
	for _, k := range keys {
		t.done[k] = true
	}
	return t, nil
}

// Done reports whether key was processed.
func (t *Tracker) Done(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done[key]
}

// Pending returns the keys not yet processed, in input order.
func (t *Tracker) Pending(keys []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, k := range keys {
		if !t.done[k] {
			out = append(out, k)
		}
	}
	return out
}

// Mark records keys as processed.
func (t *Tracker) Mark(ctx context.Context, keys ...string) error {
	if err := t.store.Add(ctx, keys...); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	t.mu.Lock()
	for _, k := range keys {
		t.done[k] = true
	}
	t.mu.Unlock()
	return nil
}

// Len returns the number of processed keys.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.done)
}

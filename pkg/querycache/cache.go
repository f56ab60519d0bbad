// Package querycache persists query -> search result mappings so repeated
// runs do not repeat network calls.
//
// A Cache is an explicit object owned by one run. It holds entries in memory
// and delegates durability to a Store: a JSON file, Redis, or memory for tests.
// A corrupt persisted cache never stops a run; it is discarded with a warning.
package querycache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
	"github.com/otherjamesbrown/qidlink/pkg/logging"
)

// Entries is the persisted form of a cache.
type Entries map[string][]linking.SearchResult

// Store is the durable backend of a Cache.
type Store interface {
	// Load returns all persisted entries. A missing store yields no entries
	// and no error. Undecodable data is reported with an error wrapping
	// errors.ErrCacheCorrupt; any entries that could be salvaged are returned.
	Load(ctx context.Context) (Entries, error)

	// Save persists the cache. all is the complete entry set; changed lists
	// the keys written since the last save, for stores that write incrementally.
	Save(ctx context.Context, all Entries, changed []string) error

	// Close releases any resources (locks, connections) held by the store.
	Close() error
}

// Stats reports cache usage for a run.
type Stats struct {
	Entries int `json:"entries"`
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Pending int `json:"pending"`
}

// Cache is an in-memory query cache backed by a Store.
type Cache struct {
	mu      sync.Mutex
	store   Store
	logger  logging.Logger
	entries Entries
	dirty   map[string]bool
	hits    int
	misses  int
}

// New returns an empty cache over store. Call Load to read persisted entries.
func New(store Store, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Cache{
		store:   store,
		logger:  logger,
		entries: make(Entries),
		dirty:   make(map[string]bool),
	}
}

// Load replaces the in-memory entries with the store's contents. Corrupt
// data is discarded and logged; the cache then starts from whatever could be
// salvaged, usually nothing. Other store failures are returned and leave the
// cache empty.
func (c *Cache) Load(ctx context.Context) error {
	entries, err := c.store.Load(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(Entries)
	c.dirty = make(map[string]bool)

	if err != nil {
		if qerrors.IsCacheCorrupt(err) {
			c.logger.Warn("Discarding corrupt query cache", logging.Err(err), logging.F("salvaged", len(entries)))
			for k, v := range entries {
				c.entries[k] = v
			}
			return nil
		}
		return fmt.Errorf("load query cache: %w", err)
	}

	for k, v := range entries {
		c.entries[k] = v
	}
	c.logger.Debug("Query cache loaded", logging.F("entries", len(c.entries)))
	return nil
}

// Get returns the cached results for key. An empty result list is a valid
// cached answer and is reported with ok == true.
func (c *Cache) Get(key string) ([]linking.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return results, ok
}

// Put records results for key, replacing any previous entry.
func (c *Cache) Put(key string, results []linking.SearchResult) {
	if results == nil {
		results = []linking.SearchResult{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = results
	c.dirty[key] = true
}

// Delete removes key from the cache. It reports whether the key existed.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.dirty[key] = true
	return true
}

// Clear drops every entry. The next Save persists an empty cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		c.dirty[k] = true
	}
	c.entries = make(Entries)
}

// Save flushes the cache to its store if anything changed since the last save.
func (c *Cache) Save(ctx context.Context) error {
	c.mu.Lock()
	if len(c.dirty) == 0 {
		c.mu.Unlock()
		return nil
	}
	snapshot := make(Entries, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	changed := make([]string, 0, len(c.dirty))
	for k := range c.dirty {
		changed = append(changed, k)
	}
	c.mu.Unlock()

	sort.Strings(changed)
	if err := c.store.Save(ctx, snapshot, changed); err != nil {
		return fmt.Errorf("save query cache: %w", err)
	}

	c.mu.Lock()
	for _, k := range changed {
		delete(c.dirty, k)
	}
	c.mu.Unlock()

	c.logger.Debug("Query cache saved", logging.F("entries", len(snapshot)), logging.F("changed", len(changed)))
	return nil
}

// Stats returns usage counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		Pending: len(c.dirty),
	}
}

// EmptyCount returns how many cached queries have no results.
func (c *Cache) EmptyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.entries {
		if len(v) == 0 {
			n++
		}
	}
	return n
}

// Close saves pending entries and closes the store.
func (c *Cache) Close(ctx context.Context) error {
	saveErr := c.Save(ctx)
	closeErr := c.store.Close()
	if saveErr != nil {
		return saveErr
	}
	return closeErr
}

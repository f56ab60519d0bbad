package querycache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	qerrors "github.com/otherjamesbrown/qidlink/pkg/errors"
	"github.com/otherjamesbrown/qidlink/pkg/linking"
)

// DefaultRedisKey is the hash that holds the cache when no key is configured.
const DefaultRedisKey = "qidlink:querycache"

// RedisStore persists the cache as a single Redis hash: one field per query,
// each value a JSON-encoded result list. Saves only write changed fields.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore returns a store writing to the hash at key. A positive ttl
// refreshes the hash expiry on every save.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Key returns the Redis hash key.
func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Load(ctx context.Context) (Entries, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read cache hash %s: %w", s.key, err)
	}

	entries := make(Entries, len(fields))
	var bad []string
	for query, raw := range fields {
		var results []linking.SearchResult
		if err := json.Unmarshal([]byte(raw), &results); err != nil {
			bad = append(bad, query)
			continue
		}
		entries[query] = results
	}
	if len(bad) == 0 {
		return entries, nil
	}

	// Undecodable fields are dropped so the next load starts clean.
	if err := s.client.HDel(ctx, s.key, bad...).Err(); err != nil {
		return entries, fmt.Errorf("drop %d undecodable fields in %s: %w", len(bad), s.key, err)
	}
	return entries, fmt.Errorf("%d undecodable fields in %s: %w", len(bad), s.key, qerrors.ErrCacheCorrupt)
}

func (s *RedisStore) Save(ctx context.Context, all Entries, changed []string) error {
	if len(changed) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, query := range changed {
		results, ok := all[query]
		if !ok {
			pipe.HDel(ctx, s.key, query)
			continue
		}
		data, err := json.Marshal(results)
		if err != nil {
			return fmt.Errorf("encode results for %q: %w", query, err)
		}
		pipe.HSet(ctx, s.key, query, data)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write cache hash %s: %w", s.key, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error { return nil }

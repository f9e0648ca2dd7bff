// Package cache provides the Ingestor's content cache: a place to remember
// which article URLs have already been fetched recently, so a scheduled run
// doesn't re-download or re-summarize a story it just processed. Cache
// failures are never fatal to a run; every backend degrades to a cache miss
// on error rather than aborting the fetch.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or expired. It is not a
// failure signal — callers treat it identically to "not cached yet".
var ErrMiss = errors.New("cache: miss")

// Cache stores small JSON-serializable values behind a URL or article id,
// each with its own TTL.
type Cache interface {
	// Get looks up key and unmarshals the stored value into dst. It
	// returns ErrMiss if the key is absent or expired.
	Get(ctx context.Context, key string, dst any) error
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// SeenRecently reports whether key was marked via MarkSeen within the
	// caller-relevant window; it is a thin wrapper used by the Ingestor to
	// skip re-fetching a URL it already processed this run window.
	SeenRecently(ctx context.Context, key string) (bool, error)
	// MarkSeen records that key was processed, for SeenRecently to find
	// within ttl.
	MarkSeen(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCache is a Cache backed by Redis, adapted from the repository
// package's Redis conventions: JSON-encoded values, key prefixing, redis.Nil
// mapped to a domain-level miss rather than propagated as a raw driver error.
type RedisCache struct {
	client     *redis.Client
	keyPrefix  string
	seenPrefix string
}

// NewRedisCache wraps an existing Redis client. The client's lifecycle
// (Ping, Close) is the caller's responsibility.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:     client,
		keyPrefix:  "talkless:cache:",
		seenPrefix: "talkless:seen:",
	}
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) error {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrMiss
		}
		return err
	}
	return json.Unmarshal([]byte(val), dst)
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err()
}

func (c *RedisCache) SeenRecently(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.seenPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, c.seenPrefix+key, "1", ttl).Err()
}

// MemoryCache is an in-process Cache, used when no Redis address is
// configured and by tests. Entries are pruned lazily on access.
type MemoryCache struct {
	mu   sync.Mutex
	vals map[string]memEntry
	seen map[string]time.Time
}

type memEntry struct {
	data    []byte
	expires time.Time
}

// NewMemoryCache returns an empty in-process Cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		vals: make(map[string]memEntry),
		seen: make(map[string]time.Time),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.vals[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.vals, key)
		return ErrMiss
	}
	return json.Unmarshal(e.data, dst)
}

func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key] = memEntry{data: data, expires: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) SeenRecently(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exp, ok := c.seen[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(c.seen, key)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) MarkSeen(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[key] = time.Now().Add(ttl)
	return nil
}

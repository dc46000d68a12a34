package requestcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fingerprint derives a deterministic key from the request contents.
// Equal inputs always produce equal fingerprints.
func Fingerprint(inputs ...any) (string, error) {
	if len(inputs) == 0 {
		return "", errors.New("at least one input is required")
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("marshal fingerprint inputs: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Shared int64 `json:"shared"`
}

// Cache combines a Store with singleflight call suppression: a cached
// fingerprint is served without touching the backend, and concurrent
// misses on the same fingerprint share one underlying call.
type Cache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
	shared atomic.Int64
}

// New creates a request cache. ttl <= 0 selects 5 minutes.
func New(store Store, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "request_cache")),
	}
}

// Do returns the cached result for key, or invokes fn exactly once
// across all concurrent callers with the same key and caches its
// result. The bool reports whether the result came from cache (shared
// in-flight results count as cached for the losing callers).
func (c *Cache) Do(ctx context.Context, key string, fn func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, bool, error) {
	if data, ok, err := c.store.Get(ctx, key); err == nil && ok {
		c.hits.Add(1)
		return data, true, nil
	} else if err != nil {
		// A broken store must not take the backend path down with it.
		c.logger.Warn("request cache read failed", zap.Error(err))
	}

	c.misses.Add(1)
	v, err, sharedCall := c.group.Do(key, func() (any, error) {
		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("request cache write failed", zap.Error(err))
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	if sharedCall {
		c.shared.Add(1)
	}
	return v.(json.RawMessage), sharedCall, nil
}

// Forget drops the cached result and any in-flight suppression for key.
func (c *Cache) Forget(ctx context.Context, key string) error {
	c.group.Forget(key)
	return c.store.Delete(ctx, key)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Shared: c.shared.Load(),
	}
}

package requestcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store persists cached results by fingerprint with a TTL.
type Store interface {
	// Get returns the cached result for key, if present and unexpired.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores a result under key for the given TTL.
	Set(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error

	// Delete removes a cached result.
	Delete(ctx context.Context, key string) error
}

// redisStore is a Redis-backed Store for deployments where several
// runtime processes share one cache.
type redisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) Store {
	if prefix == "" {
		prefix = "reqcache:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisStore{client: client, prefix: prefix, logger: logger}
}

func (s *redisStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	s.logger.Debug("request cache hit", zap.String("key", key), zap.Int("size", len(data)))
	return data, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if err := s.client.Set(ctx, s.prefix+key, []byte(data), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// memoryStore is an in-process Store for single-node deployments and
// tests. Expired entries are swept by a background loop.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	stopCh  chan struct{}
	logger  *zap.Logger
}

type memoryEntry struct {
	data      json.RawMessage
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory store. cleanupInterval bounds how
// long expired entries linger; <=0 selects a 5 minute sweep.
func NewMemoryStore(cleanupInterval time.Duration, logger *zap.Logger) Store {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &memoryStore{
		entries: make(map[string]memoryEntry),
		stopCh:  make(chan struct{}),
		logger:  logger,
	}
	go s.cleanupLoop(cleanupInterval)
	return s
}

func (s *memoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
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

func (s *memoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			expired++
		}
	}
	if expired > 0 {
		s.logger.Debug("swept expired request cache entries",
			zap.Int("expired", expired),
			zap.Int("remaining", len(s.entries)))
	}
}

// Close stops the cleanup goroutine.
func (s *memoryStore) Close() {
	close(s.stopCh)
}

func (s *memoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.data, true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s.mu.Lock()
	s.entries[key] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

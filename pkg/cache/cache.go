// Package cache provides an optional Redis-backed cache for raw posting
// detail payloads, keyed by posting number. A pipeline run consults it
// before each detail fetch so repeated report requests for overlapping
// periods skip upstream calls that are still fresh.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the posting was not found in cache.
	ErrCacheMiss = errors.New("cache miss")
)

// DefaultPrefix namespaces cache keys when none is configured.
const DefaultPrefix = "ozon_fbo"

// Manager handles detail payload caching with a Redis backend.
type Manager struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewManager creates a cache manager. The TTL applies to every stored
// payload; the upstream offers no freshness signal, so staleness is bounded
// only by this value.
func NewManager(redisClient *redis.Client, prefix string, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Manager{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key returns the deterministic cache key for a posting number.
// Format: <prefix>:detail:<posting_number>
func (m *Manager) Key(postingNumber string) string {
	return fmt.Sprintf("%s:detail:%s", m.prefix, postingNumber)
}

// GetDetail retrieves a cached raw detail payload.
// Returns ErrCacheMiss if the posting is not cached.
func (m *Manager) GetDetail(ctx context.Context, postingNumber string) (json.RawMessage, error) {
	data, err := m.redis.Get(ctx, m.Key(postingNumber)).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	CacheHits.WithLabelValues("redis").Inc()
	return json.RawMessage(data), nil
}

// SetDetail stores a raw detail payload with the configured TTL.
func (m *Manager) SetDetail(ctx context.Context, postingNumber string, payload json.RawMessage) error {
	if m.ttl <= 0 {
		return nil
	}

	if err := m.redis.Set(ctx, m.Key(postingNumber), []byte(payload), m.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cached detail payload.
func (m *Manager) Delete(ctx context.Context, postingNumber string) error {
	if err := m.redis.Del(ctx, m.Key(postingNumber)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

package cache

import (
	"bytes"
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// MemoryCache is the single-instance fallback used when Redis is disabled
// or unreachable.
type MemoryCache struct {
	cache  *gocache.Cache
	logger *zap.Logger
}

// NewMemoryCache creates a new in-memory cache with specified TTL and cleanup intervals.
//
// Parameters:
//   - defaultTTL: Used when Set is called with a zero TTL
//   - cleanupInterval: How often to clean up expired items
//   - logger: Zap logger for cache operations
//
// Returns:
//   - *MemoryCache: In-memory cache implementation
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration, logger *zap.Logger) *MemoryCache {
	return &MemoryCache{
		cache:  gocache.New(defaultTTL, cleanupInterval),
		logger: logger,
	}
}

// Get returns a copy of the cached value or ErrCacheMiss.
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer("cache").Start(ctx, "MemoryCache.Get")
	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))

	value, found := m.cache.Get(key)
	if !found {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))

	return bytes.Clone(value.([]byte)), nil
}

// Set stores a copy of value. A zero ttl uses the default TTL.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := otel.Tracer("cache").Start(ctx, "MemoryCache.Set")
	defer span.End()

	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.Int("cache.value_size", len(value)),
	)

	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}

	m.cache.Set(key, bytes.Clone(value), ttl)

	return nil
}

// Delete removes a value from the cache by key.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Clear removes all values from the cache.
func (m *MemoryCache) Clear(_ context.Context) error {
	m.cache.Flush()
	m.logger.Info("memory cache cleared")

	return nil
}

// Len reports the number of entries, including expired ones not yet
// cleaned up.
func (m *MemoryCache) Len() int {
	return m.cache.ItemCount()
}

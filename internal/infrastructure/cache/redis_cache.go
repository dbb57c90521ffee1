// Package cache provides caching implementations for weather reports.
// It includes both Redis-based distributed caching and in-memory caching
// with OpenTelemetry instrumentation for observability.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrCacheMiss indicates a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// DefaultPrefix namespaces every key written by the service.
const DefaultPrefix = "city-weather:"

// Config holds Redis connection and performance settings.
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient builds a client from cfg without connecting. The client is
// shared by the cache, the rate limiter and the health check.
func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// RedisCache implements distributed caching using Redis.
// All keys carry a prefix so Clear removes only this service's entries.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisCache creates a Redis-backed cache on an existing client.
//
// Parameters:
//   - client: Connected Redis client
//   - prefix: Key namespace, DefaultPrefix when empty
//   - logger: Zap logger for cache operations
//
// Returns:
//   - *RedisCache: Redis cache implementation
func NewRedisCache(client *redis.Client, prefix string, logger *zap.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &RedisCache{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Get retrieves a value from Redis cache.
//
// Returns:
//   - []byte: Cached value if found
//   - error: ErrCacheMiss if not found, or Redis error
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "RedisCache.Get")

	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))
	start := time.Now()
	result, err := r.client.Get(ctx, r.prefix+key).Bytes()
	duration := time.Since(start)

	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))

		r.logger.Debug("cache miss",
			zap.String("key", key),
			zap.Duration("duration", duration))

		return nil, ErrCacheMiss
	}

	if err != nil {
		span.RecordError(err)

		r.logger.Error("cache get error",
			zap.String("key", key),
			zap.Error(err))

		return nil, err
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))

	r.logger.Debug("cache hit",
		zap.String("key", key),
		zap.Duration("duration", duration))

	return result, nil
}

// Set stores a value in Redis cache with TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "RedisCache.Set")

	defer span.End()

	span.SetAttributes(
		attribute.String("cache.key", key),
		attribute.Int("cache.value_size", len(value)),
		attribute.String("cache.ttl", ttl.String()),
	)

	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		span.RecordError(err)

		r.logger.Error("cache set error",
			zap.String("key", key),
			zap.Error(err))

		return err
	}

	return nil
}

// Delete removes a value from Redis cache.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "RedisCache.Delete")

	defer span.End()

	span.SetAttributes(attribute.String("cache.key", key))

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		span.RecordError(err)

		r.logger.Error("cache delete error",
			zap.String("key", key),
			zap.Error(err))

		return err
	}

	return nil
}

// Clear deletes every key under the cache prefix. Other data in the same
// Redis database is left alone.
func (r *RedisCache) Clear(ctx context.Context) error {
	tracer := otel.Tracer("cache")
	ctx, span := tracer.Start(ctx, "RedisCache.Clear")

	defer span.End()

	start := time.Now()
	deleted := 0

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			span.RecordError(err)
			return err
		}

		deleted++
	}

	if err := iter.Err(); err != nil {
		span.RecordError(err)
		r.logger.Error("cache clear error", zap.Error(err))

		return err
	}

	r.logger.Info("cache cleared",
		zap.Int("deleted", deleted),
		zap.Duration("duration", time.Since(start)))

	return nil
}

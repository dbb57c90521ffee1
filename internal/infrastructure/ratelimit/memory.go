package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryRateLimiter provides an in-memory rate-limiting implementation.
// Limits are per instance.
type MemoryRateLimiter struct {
	mu      sync.RWMutex
	clients map[string]*clientInfo
	logger  *zap.Logger
	now     func() time.Time
}

// clientInfo tracks request timestamps for a single client.
type clientInfo struct {
	mu       sync.Mutex
	requests []time.Time

	// evicted is set once the entry is removed from the map.
	evicted bool
}

// NewMemoryRateLimiter creates a new in-memory rate limiter.
// Call Run to start evicting idle clients.
func NewMemoryRateLimiter(logger *zap.Logger) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		clients: make(map[string]*clientInfo),
		logger:  logger,
		now:     time.Now,
	}
}

// Allow checks if a request from the given identifier is allowed under the rate limit.
func (rl *MemoryRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	client := rl.lockClient(identifier)
	defer client.mu.Unlock()

	now := rl.now()

	client.prune(now.Add(-window))

	if len(client.requests) >= limit {
		return false, nil
	}

	client.requests = append(client.requests, now)

	return true, nil
}

// Reset clears the rate limit history for a given identifier.
func (rl *MemoryRateLimiter) Reset(ctx context.Context, identifier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if client, ok := rl.clients[identifier]; ok {
		client.mu.Lock()
		client.evicted = true
		client.mu.Unlock()

		delete(rl.clients, identifier)
	}

	return nil
}

// Run evicts clients with no request inside window every interval until
// ctx is done.
func (rl *MemoryRateLimiter) Run(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := rl.evictIdle(window); evicted > 0 {
				rl.logger.Debug("evicted idle rate limit clients", zap.Int("count", evicted))
			}
		}
	}
}

func (rl *MemoryRateLimiter) evictIdle(window time.Duration) int {
	cutoff := rl.now().Add(-window)
	evicted := 0

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for identifier, client := range rl.clients {
		client.mu.Lock()
		client.prune(cutoff)
		idle := len(client.requests) == 0
		client.evicted = idle
		client.mu.Unlock()

		if idle {
			delete(rl.clients, identifier)
			evicted++
		}
	}

	return evicted
}

// lockClient returns the identifier's entry with its mutex held. An entry
// evicted between lookup and locking is skipped and looked up again.
func (rl *MemoryRateLimiter) lockClient(identifier string) *clientInfo {
	for {
		client := rl.client(identifier)
		client.mu.Lock()

		if !client.evicted {
			return client
		}

		client.mu.Unlock()
	}
}

func (rl *MemoryRateLimiter) client(identifier string) *clientInfo {
	rl.mu.RLock()
	client, exists := rl.clients[identifier]
	rl.mu.RUnlock()

	if exists {
		return client
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if client, exists = rl.clients[identifier]; !exists {
		client = &clientInfo{}
		rl.clients[identifier] = client
	}

	return client
}

// prune drops requests at or before cutoff. Callers hold c.mu.
func (c *clientInfo) prune(cutoff time.Time) {
	valid := c.requests[:0]

	for _, req := range c.requests {
		if req.After(cutoff) {
			valid = append(valid, req)
		}
	}

	c.requests = valid
}

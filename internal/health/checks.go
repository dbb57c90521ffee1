package health

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"
)

// Pinger is satisfied by the database store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes anything with a Ping method.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// RedisCheck sends PING to Redis.
func RedisCheck(client *redis.Client) CheckFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// StateReporter is satisfied by the circuit breaker.
type StateReporter interface {
	State() gobreaker.State
}

// BreakerCheck fails while the breaker is open. Half-open counts as
// healthy since trial requests are being let through.
func BreakerCheck(b StateReporter) CheckFunc {
	return func(context.Context) error {
		if state := b.State(); state == gobreaker.StateOpen {
			return fmt.Errorf("circuit breaker is %s", state)
		}

		return nil
	}
}

// Package circuitbreaker provides circuit breaker functionality for fault tolerance.
// It wraps Sony's GoBreaker library with observability instrumentation and
// management capabilities for protecting against cascading failures.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sean-rowe/city-weather-service/internal/resilience"
)

// Breaker wraps Sony's GoBreaker with tracing, logging and error
// classification. Only transient failures count toward tripping the
// breaker; a permanent failure such as a 404 says nothing about the health
// of the upstream.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	name    string
}

// Config defines circuit breaker behavior and thresholds.
// It configures when the breaker opens, how long it stays open,
// and callback functions for state changes.
type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	ReadyToTrip   func(counts gobreaker.Counts) bool
	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultConfig trips after five requests with at least half failing and
// probes again after thirty seconds.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)

			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	}
}

// NewBreaker creates a new circuit breaker with the specified configuration.
//
// Parameters:
//   - cfg: Circuit breaker configuration including thresholds and callbacks
//   - logger: Zap logger for state changes and operations
//
// Returns:
//   - *Breaker: Configured circuit breaker instance
func NewBreaker(cfg Config, logger *zap.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: cfg.ReadyToTrip,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))

			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = DefaultConfig().ReadyToTrip
	}

	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		name:    cfg.Name,
	}
}

// Execute runs fn within the circuit breaker.
//
// An open breaker returns an error wrapping gobreaker.ErrOpenState that is
// also marked permanent, so an enclosing retry loop stops instead of
// hammering a breaker that will keep rejecting. gobreaker.ErrTooManyRequests
// (half-open probe slots taken) is left transient.
//
// Only transient failures count against the breaker. A permanent failure,
// such as a 404 or a cancellation during fn, is recorded as a success
// because gobreaker has no neutral outcome; in the half-open state it
// closes the breaker. A context that is already done returns its error
// without touching the breaker.
//
// Parameters:
//   - ctx: Context for tracing
//   - operation: Name of the operation for logging
//   - fn: Function to execute with circuit breaker protection
//
// Returns:
//   - error: fn's error or a breaker rejection
func (cb *Breaker) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	tracer := otel.Tracer("circuit-breaker")
	ctx, span := tracer.Start(ctx, "CircuitBreaker.Execute")

	defer span.End()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.String("circuit_breaker.name", cb.name),
		attribute.String("circuit_breaker.operation", operation),
		attribute.String("circuit_breaker.state", cb.breaker.State().String()),
	)

	// Permanent failures are carried out of the breaker rather than
	// returned to it, so they are not counted.
	var permanent error

	_, err := cb.breaker.Execute(func() (interface{}, error) {
		err := fn(ctx)
		if err != nil && resilience.Classify(err) != resilience.KindTransient {
			permanent = err
			return nil, nil
		}

		return nil, err
	})

	if errors.Is(err, gobreaker.ErrOpenState) {
		err = backoff.Permanent(fmt.Errorf("circuit breaker %s: %w", cb.name, err))
	}

	if err == nil {
		err = permanent
	}

	if err != nil {
		span.RecordError(err)

		cb.logger.Warn("circuit breaker execution failed",
			zap.String("name", cb.name),
			zap.String("operation", operation),
			zap.String("state", cb.breaker.State().String()),
			zap.Error(err))
	}

	span.SetAttributes(
		attribute.String("circuit_breaker.final_state", cb.breaker.State().String()),
		attribute.Bool("circuit_breaker.success", err == nil),
	)

	return err
}

// Name returns the breaker's name.
func (cb *Breaker) Name() string {
	return cb.name
}

// State returns the current circuit breaker state.
//
// Returns:
//   - gobreaker.State: Current state (Closed, Open, or HalfOpen)
func (cb *Breaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts return the current circuit breaker statistics.
//
// Returns:
//   - gobreaker.Counts: Request counts and failure statistics
func (cb *Breaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}

// Manager manages multiple circuit breakers for different services.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	logger   *zap.Logger
}

// NewManager creates a new circuit breaker manager.
//
// Parameters:
//   - logger: Zap logger for circuit breaker operations
//
// Returns:
//   - *Manager: Circuit breaker manager instance
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// GetBreaker retrieves or creates a circuit breaker by name.
//
// Parameters:
//   - name: Unique identifier for the circuit breaker
//   - cfg: Configuration for a new circuit breaker (ignored if already exists)
//
// Returns:
//   - *Breaker: Circuit breaker instance
func (m *Manager) GetBreaker(name string, cfg Config) *Breaker {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if exists {
		return breaker
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	cfg.Name = name
	breaker = NewBreaker(cfg, m.logger)
	m.breakers[name] = breaker

	return breaker
}

// Names returns the managed breaker names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// GetStats returns statistics for all managed circuit breakers.
//
// Returns:
//   - map[string]interface{}: Statistics keyed by breaker name
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]interface{}, len(m.breakers))

	for name, breaker := range m.breakers {
		counts := breaker.Counts()
		stats[name] = map[string]interface{}{
			"state":                 breaker.State().String(),
			"requests":              counts.Requests,
			"total_successes":       counts.TotalSuccesses,
			"total_failures":        counts.TotalFailures,
			"consecutive_successes": counts.ConsecutiveSuccesses,
			"consecutive_failures":  counts.ConsecutiveFailures,
		}
	}

	return stats
}

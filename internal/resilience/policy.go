// Package resilience wraps outbound calls with a bounded retry policy.
// Failures are classified as transient or permanent; transient failures are
// retried with decorrelated-jitter exponential backoff until the attempt
// budget runs out, permanent failures return immediately.
package resilience

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxDelay caps a single backoff delay when the policy does not set one.
const DefaultMaxDelay = 30 * time.Second

// Policy configures retries for a single outbound dependency.
// A Policy is read-only once handed to an Invoker and may be shared
// between goroutines.
type Policy struct {
	// MaxAttempts is the number of retries after the first call.
	// Zero disables retries.
	MaxAttempts int

	// BaseDelay is the lower bound of every backoff delay.
	BaseDelay time.Duration

	// MaxDelay clamps each computed delay. Zero means DefaultMaxDelay.
	MaxDelay time.Duration

	// JitterSeed makes the delay sequence deterministic when set.
	JitterSeed *uint64
}

// NewPolicy builds a policy from the RetryCount and MedianFirstRetryDelay
// settings used to configure outbound API clients.
func NewPolicy(retryCount int, medianFirstRetryDelay time.Duration) Policy {
	return Policy{
		MaxAttempts: retryCount,
		BaseDelay:   medianFirstRetryDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// WithSeed returns a copy of the policy using a deterministic jitter source.
func (p Policy) WithSeed(seed uint64) Policy {
	p.JitterSeed = &seed
	return p
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	var errs []error

	if p.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max attempts must be >= 0, got %d", p.MaxAttempts))
	}

	if p.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("base delay must be > 0, got %s", p.BaseDelay))
	}

	if p.MaxDelay < 0 {
		errs = append(errs, fmt.Errorf("max delay must be >= 0, got %s", p.MaxDelay))
	} else if p.MaxDelay > 0 && p.MaxDelay < p.BaseDelay {
		errs = append(errs, fmt.Errorf("max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid retry policy: %w", errors.Join(errs...))
	}

	return nil
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay == 0 {
		return DefaultMaxDelay
	}

	return p.MaxDelay
}

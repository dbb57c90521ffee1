package resilience

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DecorrelatedJitter produces delays drawn uniformly from
// [base, previous*3] and clamped to max, where previous starts at base.
// It implements backoff.BackOff and is not safe for concurrent use;
// the invoker creates one per call.
type DecorrelatedJitter struct {
	base time.Duration
	max  time.Duration
	prev time.Duration
	rnd  *rand.Rand
}

var _ backoff.BackOff = (*DecorrelatedJitter)(nil)

// NewDecorrelatedJitter creates a jitter source. A nil seed draws from the
// process-wide random source.
func NewDecorrelatedJitter(base, max time.Duration, seed *uint64) *DecorrelatedJitter {
	b := &DecorrelatedJitter{
		base: base,
		max:  max,
		prev: base,
	}

	if seed != nil {
		b.rnd = rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	}

	return b
}

// NextBackOff returns the next delay. It never returns backoff.Stop;
// bounding the number of retries is left to backoff.WithMaxRetries.
func (b *DecorrelatedJitter) NextBackOff() time.Duration {
	upper := time.Duration(math.MaxInt64)
	if b.prev <= time.Duration(math.MaxInt64/3) {
		upper = b.prev * 3
	}

	delay := b.base
	if span := upper - b.base; span > 0 {
		delay = b.base + time.Duration(b.int64N(int64(span)+1))
	}

	if b.max > 0 && delay > b.max {
		delay = b.max
	}

	b.prev = delay

	return delay
}

// Reset restarts the sequence at the base delay.
func (b *DecorrelatedJitter) Reset() {
	b.prev = b.base
}

func (b *DecorrelatedJitter) int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}

	if b.rnd != nil {
		return b.rnd.Int64N(n)
	}

	return rand.Int64N(n)
}

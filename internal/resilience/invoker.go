package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/sean-rowe/city-weather-service/internal/resilience"

// SleepFunc pauses for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Invoker executes calls under a retry policy. It holds no per-call state
// and is safe for concurrent use.
type Invoker struct {
	policy   Policy
	logger   *zap.Logger
	sleep    SleepFunc
	tracer   trace.Tracer
	attempts metric.Int64Counter
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithSleep replaces the timer-based pause between attempts.
func WithSleep(sleep SleepFunc) Option {
	return func(inv *Invoker) {
		inv.sleep = sleep
	}
}

// WithTracerProvider sets the provider used for invocation spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(inv *Invoker) {
		inv.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets the provider used for the attempt counter.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(inv *Invoker) {
		inv.attempts = newAttemptCounter(mp.Meter(instrumentationName))
	}
}

// NewInvoker validates the policy and returns an invoker that uses it.
func NewInvoker(policy Policy, logger *zap.Logger, opts ...Option) (*Invoker, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	inv := &Invoker{
		policy:   policy,
		logger:   logger,
		sleep:    sleepContext,
		tracer:   otel.Tracer(instrumentationName),
		attempts: newAttemptCounter(otel.Meter(instrumentationName)),
	}

	for _, opt := range opts {
		opt(inv)
	}

	return inv, nil
}

// Policy returns the policy the invoker was built with.
func (inv *Invoker) Policy() Policy {
	return inv.policy
}

// Invoke runs call until it succeeds, fails permanently, or the retry budget
// is spent. At most Policy.MaxAttempts+1 calls are made. Cancellation of ctx
// aborts immediately, including while waiting between attempts.
func Invoke[T any](ctx context.Context, inv *Invoker, operation string, call func(context.Context) Outcome[T]) Result[T] {
	ctx, span := inv.tracer.Start(ctx, "resilience.Invoke", trace.WithAttributes(
		attribute.String("resilience.operation", operation),
		attribute.Int("resilience.max_retries", inv.policy.MaxAttempts),
	))
	defer span.End()

	schedule := backoff.WithMaxRetries(inv.newBackOff(), uint64(inv.policy.MaxAttempts))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return failed[T](span, operation, attempt-1, canceled(err, nil))
		}

		out := call(ctx)

		if out.Kind == KindSuccess {
			inv.observe(ctx, operation, attempt, "success", 0, nil)
			span.SetAttributes(attribute.Int("resilience.attempts", attempt))
			span.SetStatus(codes.Ok, "")

			return Result[T]{Value: out.Value, Attempts: attempt}
		}

		cause := out.Err
		if cause == nil {
			cause = ErrMissingCause
		}

		if err := ctx.Err(); err != nil {
			inv.observe(ctx, operation, attempt, "canceled", 0, cause)
			return failed[T](span, operation, attempt, canceled(err, cause))
		}

		if out.Kind != KindTransient {
			inv.observe(ctx, operation, attempt, "permanent", 0, cause)
			return failed[T](span, operation, attempt, &AttemptsError{Kind: KindPermanent, Err: cause})
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			inv.observe(ctx, operation, attempt, "exhausted", 0, cause)
			return failed[T](span, operation, attempt, &AttemptsError{Kind: KindTransient, Err: cause})
		}

		inv.observe(ctx, operation, attempt, "transient", delay, cause)

		if err := inv.sleep(ctx, delay); err != nil {
			return failed[T](span, operation, attempt, canceled(err, cause))
		}
	}
}

// Do is Invoke for calls that return only an error. The error is classified
// with Classify.
func (inv *Invoker) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	res := Invoke(ctx, inv, operation, func(ctx context.Context) Outcome[struct{}] {
		return FromError(struct{}{}, fn(ctx))
	})

	return res.Err
}

func (inv *Invoker) newBackOff() *DecorrelatedJitter {
	return NewDecorrelatedJitter(inv.policy.BaseDelay, inv.policy.maxDelay(), inv.policy.JitterSeed)
}

func (inv *Invoker) observe(ctx context.Context, operation string, attempt int, outcome string, delay time.Duration, cause error) {
	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Int("attempt", attempt),
		zap.String("outcome", outcome),
	}

	if delay > 0 {
		fields = append(fields, zap.Duration("delay", delay))
	}

	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}

	switch outcome {
	case "success":
		inv.logger.Debug("outbound call attempt succeeded", fields...)
	case "transient":
		inv.logger.Warn("outbound call attempt failed, retrying", fields...)
	default:
		inv.logger.Warn("outbound call attempt failed", fields...)
	}

	if inv.attempts != nil {
		inv.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}

	trace.SpanFromContext(ctx).AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.String("outcome", outcome),
		attribute.Int64("delay_ms", delay.Milliseconds()),
	))
}

func failed[T any](span trace.Span, operation string, attempts int, err *AttemptsError) Result[T] {
	err.Operation = operation
	err.Attempts = attempts

	span.SetAttributes(attribute.Int("resilience.attempts", attempts))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Kind.String())

	return Result[T]{Err: err, Attempts: attempts}
}

func canceled(ctxErr, last error) *AttemptsError {
	err := fmt.Errorf("%w: %w", ErrCanceled, ctxErr)
	if last != nil {
		err = fmt.Errorf("%w (last error: %v)", err, last)
	}

	return &AttemptsError{Kind: KindPermanent, Err: err}
}

func newAttemptCounter(meter metric.Meter) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		"outbound_call_attempts_total",
		metric.WithDescription("Outbound call attempts by operation and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil
	}

	return counter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

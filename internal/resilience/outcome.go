package resilience

import (
	"errors"
	"fmt"
)

// Kind classifies the result of a single attempt.
type Kind int

const (
	// KindSuccess means the call produced a value.
	KindSuccess Kind = iota

	// KindTransient means the call failed but a retry may succeed.
	KindTransient

	// KindPermanent means retrying cannot help.
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of one attempt, consumed immediately by the retry loop.
type Outcome[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// Success wraps a successful value.
func Success[T any](value T) Outcome[T] {
	return Outcome[T]{Kind: KindSuccess, Value: value}
}

// Transient marks err as retryable.
func Transient[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: KindTransient, Err: err}
}

// Permanent marks err as not retryable.
func Permanent[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: KindPermanent, Err: err}
}

// FromError builds an outcome from a conventional (value, error) pair,
// classifying err with Classify.
func FromError[T any](value T, err error) Outcome[T] {
	if err == nil {
		return Success(value)
	}

	return Outcome[T]{Kind: Classify(err), Err: err}
}

// Result is the terminal outcome returned to the caller.
// Err is nil on success and an *AttemptsError otherwise.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
}

// OK reports whether the call eventually succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Unwrap returns the value and error in the usual Go form.
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// ErrCanceled marks a call aborted because the caller's context ended.
var ErrCanceled = errors.New("call canceled")

// ErrMissingCause is used when a failed attempt carries no error.
var ErrMissingCause = errors.New("call failed without a cause")

// AttemptsError is the cause of a Failed result.
type AttemptsError struct {
	Operation string
	Attempts  int
	Kind      Kind
	Err       error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error {
	return e.Err
}

package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/cenkalti/backoff/v4"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("unexpected response status %s", e.Status)
	}

	return fmt.Sprintf("unexpected response status %d", e.StatusCode)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return IsTransientStatus(e.StatusCode)
}

// IsTransientStatus reports whether an HTTP status is retryable:
// 429 Too Many Requests and every 5xx.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// Classify maps an error to a Kind.
//
// Transient: network errors, timeouts, connection resets, unexpected EOF and
// StatusError with a transient status. Permanent: cancellation, errors
// wrapped with backoff.Permanent, other statuses, and anything unrecognised
// such as a malformed response body.
func Classify(err error) Kind {
	if err == nil {
		return KindSuccess
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return KindPermanent
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCanceled) {
		return KindPermanent
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Temporary() {
			return KindTransient
		}

		return KindPermanent
	}

	// A per-call timeout, not the caller's deadline; the invoker checks the
	// caller context separately.
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindTransient
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return KindTransient
	}

	return KindPermanent
}

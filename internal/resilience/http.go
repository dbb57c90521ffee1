package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// maxDrainBytes bounds how much of a failed response body is read before
// closing so the connection can be reused.
const maxDrainBytes = 64 << 10

// maxJSONBytes bounds a decoded response body.
const maxJSONBytes = 4 << 20

// RequestFunc builds a fresh request for each attempt.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// DoHTTP sends a request under the invoker's policy. Every attempt gets a
// new request from newRequest. Non-2xx responses become *StatusError and are
// retried when the status is 429 or 5xx. On success the caller owns the
// response body.
func DoHTTP(ctx context.Context, inv *Invoker, operation string, client *http.Client, newRequest RequestFunc) Result[*http.Response] {
	return Invoke(ctx, inv, operation, func(ctx context.Context) Outcome[*http.Response] {
		req, err := newRequest(ctx)
		if err != nil {
			return Permanent[*http.Response](backoff.Permanent(err))
		}

		return HTTPOutcome(client.Do(req))
	})
}

// HTTPOutcome classifies the result of client.Do. Bodies of failed
// responses are drained and closed.
func HTTPOutcome(resp *http.Response, err error) Outcome[*http.Response] {
	if err != nil {
		return Outcome[*http.Response]{Kind: Classify(err), Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Success(resp)
	}

	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	_ = resp.Body.Close()

	statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	return Outcome[*http.Response]{Kind: Classify(statusErr), Err: statusErr}
}

// DoJSON is DoHTTP followed by decoding a 2xx body into T inside the same
// attempt. A read error is classified like any transport error; a body that
// is not valid JSON is a permanent failure.
func DoJSON[T any](ctx context.Context, inv *Invoker, operation string, client *http.Client, newRequest RequestFunc) Result[T] {
	return Invoke(ctx, inv, operation, func(ctx context.Context) Outcome[T] {
		req, err := newRequest(ctx)
		if err != nil {
			return Permanent[T](backoff.Permanent(err))
		}

		outcome := HTTPOutcome(client.Do(req))
		if outcome.Kind != KindSuccess {
			return Outcome[T]{Kind: outcome.Kind, Err: outcome.Err}
		}

		resp := outcome.Value
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBytes))
		_ = resp.Body.Close()

		// A body cut off in transit is a transport failure. Bytes that
		// arrived in full but do not decode are not.
		if err != nil {
			return Outcome[T]{Kind: Classify(err), Err: fmt.Errorf("read response: %w", err)}
		}

		var value T
		if err := json.Unmarshal(body, &value); err != nil {
			return Permanent[T](backoff.Permanent(fmt.Errorf("decode response: %w", err)))
		}

		return Success(value)
	})
}

package fetch

import (
	"context"
	"errors"
	"fmt"
)

// ErrAborted reports that the caller cancelled the request. It is never a
// user-visible failure.
var ErrAborted = errors.New("request aborted")

// HTTPError is returned for a response with a non-success status
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// NetworkError wraps transport failures, timeouts and undecodable bodies
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsAborted reports whether err means the request was cancelled on purpose
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// classify maps a transport error to the package's error taxonomy. A
// cancelled context is an abort; a deadline is a network failure.
func classify(ctx context.Context, url string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("GET %s: %w", url, ErrAborted)
	}
	return &NetworkError{URL: url, Err: err}
}

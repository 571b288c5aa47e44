package retry

import (
	"errors"
	"fmt"
)

// ErrRateLimitExceeded matches any RateLimitError via errors.Is. Batch
// callers catch it to pause and resume instead of aborting the run.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitError is returned when every attempt ended in a 429.
type RateLimitError struct {
	Attempts int
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// StatusError attaches an HTTP-like status to an error from an adapter
// that does not speak HTTP natively.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus implements the status extraction hook used by StatusCode.
func (e *StatusError) HTTPStatus() int { return e.Code }

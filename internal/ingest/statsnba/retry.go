package statsnba

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fortuna/courtside/internal/ratelimit"
)

// RetryPolicy retries transient failures with exponential backoff.
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	clock        ratelimit.Clock
}

// NewRetryPolicy creates a retry policy. maxAttempts counts the first try.
func NewRetryPolicy(maxAttempts int, initialDelay time.Duration, clock ratelimit.Clock) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     30 * time.Second,
		clock:        clock,
	}
}

// Execute runs fn until it succeeds, returns a permanent error, or the
// attempts run out.
func (r *RetryPolicy) Execute(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error
	delay := r.initialDelay

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt < r.maxAttempts {
			if err := r.clock.Sleep(ctx, delay); err != nil {
				return err
			}
			delay = time.Duration(float64(delay) * 1.5)
			if delay > r.maxDelay {
				delay = r.maxDelay
			}
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.Temporary()
	}

	// Network and browser failures get another try.
	return true
}

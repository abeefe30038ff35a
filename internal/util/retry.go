package util

import (
	"context"
	"errors"
	"time"
)

// permanentError marks an error that Retry must not retry.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay and capped at maxDelay (no cap when zero). It returns nil on the
// first success, the unwrapped error of a Permanent failure, or the last
// error once attempts are exhausted. Cancellation of ctx stops the loop.
func Retry(ctx context.Context, maxAttempts int, baseDelay, maxDelay time.Duration, fn func(context.Context) error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if maxDelay > 0 && delay > maxDelay {
				delay = maxDelay
			}
		}
	}

	return err
}

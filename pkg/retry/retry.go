// Package retry repeats operations that fail for transient reasons, such as
// a git clone or fetch that loses its connection.
//
// Only errors marked with [Retryable] are retried; everything else is
// returned on the first failure.
//
//	err := retry.Do(ctx, 3, time.Second, func() error {
//	    if err := fetch(); isTransient(err) {
//	        return retry.Retryable(err)
//	    }
//	    return err
//	})
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrNetwork is returned for transient transport failures (DNS, timeouts,
// dropped connections).
var ErrNetwork = errors.New("network error")

// Default policy used by WithBackoff.
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second
)

// Error wraps an error to indicate it should trigger a retry.
type Error struct{ Err error }

// Retryable wraps err as an *Error. It returns nil for a nil err.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err}
}

// Error returns the error message of the wrapped error.
func (e *Error) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err's chain contains an *Error.
func IsRetryable(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// WithBackoff retries fn with the default policy.
func WithBackoff(ctx context.Context, fn func() error) error {
	return Do(ctx, DefaultAttempts, DefaultDelay, fn)
}

// Do calls fn up to attempts times, doubling delay after each retryable
// failure. Non-retryable errors are returned immediately.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

package httputil

import (
	"context"
	"errors"
	"time"
)

// MaxDelay caps the backoff between attempts.
const MaxDelay = 30 * time.Second

// RetryableError marks an error as transient so that [Retry] attempts the
// operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry executes fn up to attempts times with exponential backoff starting
// at delay and capped at [MaxDelay]. Errors not wrapped in [RetryableError]
// are returned immediately. When every attempt fails the last error is
// returned unwrapped; ctx.Err() is returned if ctx is cancelled while
// waiting.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		err := fn()
		if err == nil {
			return nil
		}
		var re *RetryableError
		if !errors.As(err, &re) {
			return err
		}
		lastErr = re.Err

		if i == attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, MaxDelay)
	}
	return lastErr
}

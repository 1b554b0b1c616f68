package worker

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries an operation a bounded number of times with a fixed
// delay between attempts
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep waits between attempts. Nil uses a context-aware timer; tests
	// inject a no-op to avoid wall-clock waits.
	Sleep func(ctx context.Context, d time.Duration) error
}

// permanentError stops retries early
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn until it succeeds, returns a permanent error, the context ends
// or the attempts run out. It returns the number of attempts made and the
// last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempt - 1, err
		}

		err = fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if IsPermanent(err) {
			return attempt, err
		}
		if attempt < maxAttempts && p.Delay > 0 {
			if sleepErr := sleep(ctx, p.Delay); sleepErr != nil {
				return attempt, err
			}
		}
	}
	return maxAttempts, err
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

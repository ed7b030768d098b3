package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/auros/internal/model"
)

// Policy controls how Do retries. The delay before retry n is BaseDelay*n,
// unless the failure carried a Retry-After hint.
type Policy struct {
	Attempts  int           // total attempts including the first; values < 1 mean 1
	BaseDelay time.Duration // delay unit
	// Sleep waits for d or until ctx is done. Defaults to a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned on exhaustion.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry cancelled: %w (last error: %v)", ctx.Err(), err)
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := backoffDelay(p.BaseDelay, attempt, err)
		logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("retry cancelled: %w", err)
		}
	}
	return zero, fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, lastErr)
}

// backoffDelay grows linearly with the attempt number. If the error includes
// a Retry-After duration (HTTP 429), that takes precedence.
func backoffDelay(base time.Duration, attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	return base * time.Duration(attempt)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable returns true if the error represents a transient failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Cancellation is never retried. A deadline that fired while the parent
	// context is still alive was a per-call timeout, which is transient.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		// 429 Too Many Requests: retryable.
		if httpErr.StatusCode == 429 {
			return true
		}
		// 5xx: retryable.
		if httpErr.StatusCode >= 500 {
			return true
		}
		// 4xx (not 429): not retryable.
		return false
	}

	// Non-HTTP errors (network, DNS, etc.): retryable.
	return true
}

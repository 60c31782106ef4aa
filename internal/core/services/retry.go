package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/paperlens/internal/core/domain"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// permanent reports whether err cannot be cured by trying again.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrDimensionMismatch) ||
		errors.Is(err, domain.ErrLLMUnavailable) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, context.Canceled)
}

// withRetry runs fn under policy. Each attempt gets its own timeout; the
// whole sequence is bounded by the policy deadline. The last error is
// returned when attempts are exhausted.
func withRetry(
	ctx context.Context,
	policy domain.RetryPolicy,
	timeout time.Duration,
	stage string,
	fn func(ctx context.Context) error,
) error {
	if policy.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Deadline)
		defer cancel()
	}

	attempts := max(policy.MaxAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if wait := policy.Backoff(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}

		err = callWithTimeout(ctx, timeout, fn)
		if err == nil {
			return nil
		}
		if permanent(err) || ctx.Err() != nil {
			return err
		}
		logger.Debug("%s: attempt %d/%d failed: %v", stage, attempt, attempts, err)
	}
	return err
}

func callWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

// isTimeout reports whether err came from an exceeded deadline.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Package backoff retries a single network call with exponential delays.
//
// The wait after failed attempt k (0-based) is BaseDelay * 2^k. There is no
// jitter; callers that need it add it at the call site.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

var ErrInvalidPolicy = errors.New("invalid backoff policy")

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// OnRetry runs before each wait with the 0-based index of the attempt
	// that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("%w: base delay must be positive, got %s", ErrInvalidPolicy, p.BaseDelay)
	}
	return nil
}

// Delay returns the wait that follows failed attempt k.
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay << attempt
}

// Execute runs op until it succeeds or MaxAttempts calls have failed, and
// returns the last error unmodified.
func Execute[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	return ExecuteIf(ctx, p, retryAll, op)
}

// ExecuteIf is Execute with a classifier: an error for which retryable
// returns false is returned at once without further attempts.
func ExecuteIf[T any](ctx context.Context, p Policy, retryable func(error) bool, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}
	if retryable == nil {
		retryable = retryAll
	}

	var (
		result  T
		lastErr error
		failed  int
	)

	limited := retry.WithMaxRetries(uint64(p.MaxAttempts-1), retry.NewExponential(p.BaseDelay))
	schedule := retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := limited.Next()
		if !stop && p.OnRetry != nil {
			p.OnRetry(failed-1, delay, lastErr)
		}
		return delay, stop
	})

	err := retry.Do(ctx, schedule, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		value, err := op(ctx)
		if err == nil {
			result = value
			return nil
		}

		failed++
		lastErr = err
		if !retryable(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return zero, err
	}

	return result, nil
}

func retryAll(error) bool { return true }

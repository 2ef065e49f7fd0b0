// Package poll repeats a status check at a fixed interval until it reports a
// terminal state, fails for good, or the timeout elapses.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/bnema/growscratch-cli/internal/backoff"
	"github.com/bnema/growscratch-cli/internal/domain"
)

// CheckFunc performs one status check. done=true ends polling with value.
type CheckFunc[T any] func(ctx context.Context) (value T, done bool, err error)

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Retry    backoff.Policy

	// OnTick runs after every completed check, including failed ones.
	OnTick func(tick int, err error)
}

// Until calls check every Interval. Checks never overlap: the next one is
// scheduled only after the previous returned.
//
// Transient failures that outlive the retry policy keep polling; any other
// error ends it. When Timeout passes without a terminal state Until returns
// domain.ErrTimeout, which means "unknown", not "failed".
func Until[T any](ctx context.Context, opts Options, check CheckFunc[T]) (T, error) {
	var zero T
	if opts.Interval <= 0 {
		return zero, errors.New("poll interval must be positive")
	}
	if opts.Timeout <= 0 {
		return zero, errors.New("poll timeout must be positive")
	}
	if err := opts.Retry.Validate(); err != nil {
		return zero, err
	}

	type checkResult struct {
		value T
		done  bool
	}

	deadline := time.Now().Add(opts.Timeout)
	for tick := 0; ; tick++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if time.Now().After(deadline) {
			return zero, domain.ErrTimeout
		}

		checkCtx, cancel := context.WithDeadline(ctx, deadline)
		result, err := backoff.ExecuteIf(checkCtx, opts.Retry, domain.IsTransient, func(ctx context.Context) (checkResult, error) {
			value, done, err := check(ctx)
			return checkResult{value: value, done: done}, err
		})
		expired := checkCtx.Err() != nil && ctx.Err() == nil
		cancel()

		if opts.OnTick != nil {
			opts.OnTick(tick, err)
		}

		switch {
		case err == nil && result.done:
			return result.value, nil
		case err == nil, domain.IsTransient(err):
		case expired:
			return zero, domain.ErrTimeout
		default:
			return zero, err
		}

		if !time.Now().Add(opts.Interval).Before(deadline) {
			return zero, domain.ErrTimeout
		}

		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

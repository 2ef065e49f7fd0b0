package poll

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/growscratch-cli/internal/backoff"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(timeout time.Duration) Options {
	return Options{
		Interval: 2 * time.Millisecond,
		Timeout:  timeout,
		Retry:    backoff.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}
}

func TestUntilReturnsValueOnTerminalState(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := Until(context.Background(), testOptions(time.Second), func(context.Context) (string, bool, error) {
		calls++
		if calls < 3 {
			return "PENDING", false, nil
		}
		return "CONFIRMED", true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", got)
	assert.Equal(t, 3, calls)
}

func TestUntilTimesOutWithDistinctError(t *testing.T) {
	t.Parallel()

	_, err := Until(context.Background(), testOptions(20*time.Millisecond), func(context.Context) (string, bool, error) {
		return "PENDING", false, nil
	})
	require.ErrorIs(t, err, domain.ErrTimeout)
	assert.Equal(t, domain.KindTimeout, domain.Kind(err))
}

func TestUntilKeepsPollingThroughTransientFailures(t *testing.T) {
	t.Parallel()

	var ticks []error
	opts := testOptions(time.Second)
	opts.OnTick = func(_ int, err error) { ticks = append(ticks, err) }

	calls := 0
	got, err := Until(context.Background(), opts, func(context.Context) (int, bool, error) {
		calls++
		if calls <= 4 {
			return 0, false, fmt.Errorf("verify payment: %w", domain.ErrTransientNetwork)
		}
		return 7, true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 5, calls)
	require.Len(t, ticks, 3)
	assert.ErrorIs(t, ticks[0], domain.ErrTransientNetwork)
	assert.ErrorIs(t, ticks[1], domain.ErrTransientNetwork)
	assert.NoError(t, ticks[2])
}

func TestUntilStopsOnTerminalRejectionWithoutRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Until(context.Background(), testOptions(time.Second), func(context.Context) (int, bool, error) {
		calls++
		return 0, false, fmt.Errorf("verify payment: %w: status 404", domain.ErrTerminalRejected)
	})
	require.ErrorIs(t, err, domain.ErrTerminalRejected)
	assert.Equal(t, 1, calls)
}

func TestUntilChecksNeverOverlap(t *testing.T) {
	t.Parallel()

	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	calls := 0
	_, err := Until(context.Background(), Options{
		Interval: time.Millisecond,
		Timeout:  time.Second,
		Retry:    backoff.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}, func(context.Context) (int, bool, error) {
		current := inFlight.Add(1)
		defer inFlight.Add(-1)
		if current > maxInFlight.Load() {
			maxInFlight.Store(current)
		}
		time.Sleep(5 * time.Millisecond)
		calls++
		return calls, calls == 4, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestUntilCancellationStopsScheduling(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Until(ctx, Options{
		Interval: 50 * time.Millisecond,
		Timeout:  time.Second,
		Retry:    backoff.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}, func(context.Context) (int, bool, error) {
		calls++
		cancel()
		return 0, false, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, domain.ErrTimeout))
	assert.Equal(t, 1, calls)
}

func TestUntilRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	check := func(context.Context) (int, bool, error) { return 0, true, nil }

	_, err := Until(context.Background(), Options{Timeout: time.Second, Retry: backoff.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}}, check)
	require.ErrorContains(t, err, "interval")

	_, err = Until(context.Background(), Options{Interval: time.Second, Retry: backoff.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}}, check)
	require.ErrorContains(t, err, "timeout")

	_, err = Until(context.Background(), Options{Interval: time.Second, Timeout: time.Second}, check)
	require.ErrorIs(t, err, backoff.ErrInvalidPolicy)
}

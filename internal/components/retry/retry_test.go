package retry

import (
	"connectfill/internal/components/chrono"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSucceedsAfterTransientFailures(t *testing.T) {
	clock := chrono.NewFake(time.Time{})
	calls := 0
	err := Do(context.Background(), clock, Policy{Attempts: 3, Delay: 2}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestGivesUpAfterAttempts(t *testing.T) {
	clock := chrono.NewFake(time.Time{})
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), clock, Policy{Attempts: 2, Delay: 1}, func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
	require.Len(t, clock.Sleeps(), 1)
}

func TestZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), chrono.NewFake(time.Time{}), Policy{}, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	require.Equal(t, 1, calls)
}

func TestCancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	err := Do(ctx, chrono.NewStandardImpl(), Policy{Attempts: 5, Delay: 10}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("navigation interrupted")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestWaitsOnRealClock(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Do(context.Background(), chrono.NewStandardImpl(), Policy{Attempts: 2, Delay: 0.05}, func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestZeroDelayDoesNotSleep(t *testing.T) {
	clock := chrono.NewFake(time.Time{})
	calls := 0
	err := Do(context.Background(), clock, Policy{Attempts: 3}, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
	require.Empty(t, clock.Sleeps())
}

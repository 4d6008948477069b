// Package retry holds the bounded retry policy applied at call sites of
// transient browser actions.
package retry

import (
	"connectfill/internal/components/chrono"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	Attempts int     `json:"attempts"`
	Delay    float64 `json:"delay_seconds"`
}

func (p Policy) delay() time.Duration {
	return time.Duration(p.Delay * float64(time.Second))
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// clockTimer is a backoff.Timer that waits on a chrono.API, so tests can
// run retries against a fake clock.
type clockTimer struct {
	ctx    context.Context
	clock  chrono.API
	c      chan time.Time
	cancel context.CancelFunc
}

func newClockTimer(ctx context.Context, clock chrono.API) *clockTimer {
	return &clockTimer{ctx: ctx, clock: clock}
}

func (t *clockTimer) Start(d time.Duration) {
	t.Stop()
	ctx, cancel := context.WithCancel(t.ctx)
	c := make(chan time.Time, 1)
	t.c = c
	t.cancel = cancel
	if d <= 0 {
		c <- t.clock.Now()
		return
	}
	go func() {
		if t.clock.Sleep(ctx, d) == nil {
			c <- t.clock.Now()
		}
	}()
}

func (t *clockTimer) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.c
}

// Do calls fn until it succeeds or the policy runs out of attempts, waiting a
// fixed delay between attempts. The returned error joins every attempt's
// error, and the context's when it ended the retries.
func Do(ctx context.Context, clock chrono.API, p Policy, fn func(ctx context.Context) error) error {
	var errs []error
	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("attempt %d: %w", attempt, err))
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.delay()), uint64(p.attempts()-1)),
		ctx,
	)
	err := backoff.RetryNotifyWithTimer(operation, policy, nil, newClockTimer(ctx, clock))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(errors.Join(errs...), ctxErr) {
		errs = append(errs, ctxErr)
	}
	return errors.Join(errs...)
}

package app

import (
	"connectfill/internal/components/chrono"
	"connectfill/internal/components/pacing"
	"connectfill/internal/components/retry"
	"connectfill/internal/components/telemetry"
	"connectfill/internal/engine"
	"connectfill/internal/quota"
	"context"
	"fmt"
	"net/url"
)

const (
	report_browsing_view = "browsing.view"
)

// Viewer is the part of the browser channel the browsing phase needs.
type Viewer interface {
	Navigate(ctx context.Context, url string) error
	Scroll(ctx context.Context, px int) error
}

// browsingExecutor opens every topic in the browser and scrolls through it
// before the reading time is reported over HTTP.
type browsingExecutor struct {
	inner   engine.Executor
	viewer  Viewer
	baseUrl *url.URL
	pacer   *pacing.Pacer
	clock   chrono.API
	policy  retry.Policy
	steps   int
	pause   pacing.Range
	tel     telemetry.API
}

func (b *browsingExecutor) view(ctx context.Context, item quota.WorkItem) error {
	target := b.baseUrl.ResolveReference(&url.URL{Path: item.Path()}).String()
	err := retry.Do(ctx, b.clock, b.policy, func(ctx context.Context) error {
		return b.viewer.Navigate(ctx, target)
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}

	for i := 0; i < b.steps; i++ {
		_, err := b.pacer.Pause(ctx, b.pause)
		if err != nil {
			return err
		}
		px := b.pacer.Int(pacing.IntRange{Min: 300, Max: 900})
		err = retry.Do(ctx, b.clock, b.policy, func(ctx context.Context) error {
			return b.viewer.Scroll(ctx, px)
		})
		if err != nil {
			return fmt.Errorf("scroll %s: %w", target, err)
		}
	}
	return nil
}

func (b *browsingExecutor) Read(ctx context.Context, item quota.WorkItem) error {
	err := b.view(ctx, item)
	if err != nil {
		b.tel.ReportWarning(report_browsing_view, "item", item.ID, "err", err)
		return err
	}
	return b.inner.Read(ctx, item)
}

func (b *browsingExecutor) Like(ctx context.Context, item quota.WorkItem) error {
	return b.inner.Like(ctx, item)
}

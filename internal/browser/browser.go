// Package browser is the chromedp implementation of the second transport
// channel. It holds one tab for the whole run.
package browser

import (
	"connectfill/internal/bridge"
	"connectfill/internal/components/telemetry"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
}

// AllocatorOptions hides the usual automation markers.
func AllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(1366, 900),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	return allocOpts
}

type Channel struct {
	ctx    context.Context
	cancel context.CancelFunc
	tel    telemetry.API
}

var _ bridge.Channel = (*Channel)(nil)

// Launch starts a browser and opens its first tab. Close releases both.
func Launch(ctx context.Context, opts Options, tel telemetry.API) (*Channel, error) {
	tel = telemetry.NewScopedAPI("browser", tel)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		tel.ReportDebug(fmt.Sprintf(format, args...))
	}))

	// the first Run actually starts the browser
	err := chromedp.Run(tabCtx, network.Enable())
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Channel{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		tel: tel,
	}, nil
}

func (c *Channel) Close() {
	c.cancel()
}

// run executes actions on the tab, bounded by both the tab lifetime and ctx.
func (c *Channel) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *Channel) Location(ctx context.Context) (string, error) {
	var location string
	err := c.run(ctx, chromedp.Location(&location))
	return location, err
}

func (c *Channel) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Channel) SetCookies(ctx context.Context, cookies []bridge.Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		params = append(params, &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
		})
	}
	return c.run(ctx, network.SetCookies(params))
}

func (c *Channel) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return true, nil
	}
	// the tab run is cancelled through AfterFunc, so look at waitCtx itself
	if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return false, nil
	}
	return false, err
}

// Scroll moves the page down by px pixels.
func (c *Channel) Scroll(ctx context.Context, px int) error {
	return c.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", px), nil))
}

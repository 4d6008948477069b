// Package app wires one account run: login, optional identity bridge,
// requirement scraping, topic discovery, the quota loop and the final
// notification.
package app

import (
	"connectfill/internal/bridge"
	"connectfill/internal/browser"
	"connectfill/internal/components/assert"
	"connectfill/internal/components/chrono"
	"connectfill/internal/components/pacing"
	"connectfill/internal/components/telemetry"
	"connectfill/internal/config"
	"connectfill/internal/engine"
	"connectfill/internal/notify"
	"connectfill/internal/quota"
	"connectfill/internal/scrapers/linuxdo"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	random "github.com/mazen160/go-random"
)

const (
	report_app_run = "app.run"
)

// Channel is a browser tab usable both by the bridge and the browsing phase.
type Channel interface {
	bridge.Channel
	Viewer
	Close()
}

// Launcher opens the browser channel, it is only called when browsing is enabled.
type Launcher func(ctx context.Context) (Channel, error)

type Deps struct {
	Clock    chrono.API
	Pacer    *pacing.Pacer
	Tel      telemetry.API
	Notifier notify.Notifier
	Launch   Launcher
	Out      io.Writer
}

type App struct {
	cfg        *config.Config
	clock      chrono.API
	pacer      *pacing.Pacer
	tel        telemetry.API
	notifier   notify.Notifier
	launch     Launcher
	out        io.Writer
	classifier quota.Classifier
}

// ChromeLauncher launches a chromedp browser configured from cfg.
func ChromeLauncher(cfg *config.Config, tel telemetry.API) Launcher {
	return func(ctx context.Context) (Channel, error) {
		ch, err := browser.Launch(ctx, browser.Options{
			Headless:  cfg.Browser.Headless,
			ExecPath:  cfg.Browser.ExecPath,
			UserAgent: cfg.HTTP.UserAgent,
		}, tel)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}

// New fills missing dependencies with their production implementation.
func New(cfg *config.Config, deps Deps) *App {
	assert.NotNil(cfg)
	if deps.Clock == nil {
		deps.Clock = chrono.NewStandardImpl()
	}
	if deps.Tel == nil {
		deps.Tel = telemetry.NewSlogAPI(nil)
	}
	if deps.Pacer == nil {
		deps.Pacer = pacing.NewPacer(deps.Clock, nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.FromConfig(cfg.Notify, deps.Tel)
	}
	if deps.Launch == nil {
		deps.Launch = ChromeLauncher(cfg, deps.Tel)
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	return &App{
		cfg:        cfg,
		clock:      deps.Clock,
		pacer:      deps.Pacer,
		tel:        telemetry.NewScopedAPI("app", deps.Tel),
		notifier:   deps.Notifier,
		launch:     deps.Launch,
		out:        deps.Out,
		classifier: quota.NewClassifier(cfg.Rules),
	}
}

func newRunID() string {
	id, err := random.String(8)
	if err != nil {
		return "run"
	}
	return id
}

func (a *App) abort(ctx context.Context, runID, phase string, err error) error {
	a.tel.ReportBroken(report_app_run, "run", runID, "phase", phase, "err", err)
	_ = a.notifier.Notify(ctx, a.cfg.Notify.Title, fmt.Sprintf("Run aborted during %s: %s\nrun: %s", phase, err.Error(), runID))
	return fmt.Errorf("%s: %w", phase, err)
}

func (a *App) login(ctx context.Context) (*linuxdo.Client, error) {
	err := a.cfg.Validate()
	if err != nil {
		return nil, err
	}
	client, err := linuxdo.NewClient(a.cfg, a.pacer, a.tel)
	if err != nil {
		return nil, err
	}
	err = client.Authenticate(ctx, a.cfg.Credentials)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Quota logs in and returns the outstanding deficits without acting on them.
func (a *App) Quota(ctx context.Context) (quota.Map, error) {
	client, err := a.login(ctx)
	if err != nil {
		return nil, err
	}
	deficits, err := client.Requirements(ctx, a.cfg.Endpoints.ConnectUrl, a.classifier)
	if err != nil {
		return nil, err
	}
	RenderDeficits(a.out, deficits)
	return deficits, nil
}

func (a *App) bridgeBrowser(ctx context.Context, client *linuxdo.Client) (Channel, error) {
	ch, err := a.launch(ctx)
	if err != nil {
		return nil, err
	}
	b, err := bridge.New(bridge.Options{
		SiteUrl:   a.cfg.Endpoints.BaseUrl,
		VerifyUrl: client.BaseUrl.JoinPath(a.cfg.Browser.VerifyPath).String(),
		Indicator: a.cfg.Browser.Indicator,
		Timeout:   time.Duration(a.cfg.Browser.VerifySeconds * float64(time.Second)),
		Retry:     a.cfg.Browser.Retry,
	}, a.clock, a.tel)
	if err != nil {
		ch.Close()
		return nil, err
	}
	err = b.Replicate(ctx, client.Cookies(), ch)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

// Run processes the configured account to completion. Missing credentials
// fail before any network call. Login, bridge, scraping and discovery
// failures abort the run. Every run that reaches the quota loop returns a
// nil error, even with residual deficits.
func (a *App) Run(ctx context.Context) (engine.Report, error) {
	runID := newRunID()
	if err := a.cfg.Validate(); err != nil {
		return engine.Report{}, err
	}
	a.tel.ReportInfo("run started", "run", runID, "browsing", a.cfg.Browser.Enabled)

	client, err := a.login(ctx)
	if err != nil {
		return engine.Report{}, a.abort(ctx, runID, "login", err)
	}

	var exec engine.Executor = client
	if a.cfg.Browser.Enabled {
		ch, err := a.bridgeBrowser(ctx, client)
		if err != nil {
			return engine.Report{}, a.abort(ctx, runID, "identity bridge", err)
		}
		defer ch.Close()
		exec = &browsingExecutor{
			inner:   client,
			viewer:  ch,
			baseUrl: client.BaseUrl,
			pacer:   a.pacer,
			clock:   a.clock,
			policy:  a.cfg.Browser.Retry,
			steps:   a.cfg.Browser.ScrollSteps,
			pause:   a.cfg.Pacing.SegmentPause,
			tel:     a.tel,
		}
	}

	deficits, err := client.Requirements(ctx, a.cfg.Endpoints.ConnectUrl, a.classifier)
	if err != nil {
		return engine.Report{}, a.abort(ctx, runID, "requirements", err)
	}
	RenderDeficits(a.out, deficits)

	var items []quota.WorkItem
	if !deficits.Satisfied() {
		items, err = client.Discover(ctx, a.cfg.Pacing.TopicLimit)
		if err != nil {
			return engine.Report{}, a.abort(ctx, runID, "discovery", err)
		}
	}

	eng := engine.New(exec, client, a.pacer, a.clock, engine.Options{
		FailureThreshold: a.cfg.Pacing.FailureThreshold,
		Cooling:          a.cfg.Pacing.Cooling,
		ItemPause:        a.cfg.Pacing.ItemPause,
	}, a.tel)
	report, err := eng.Run(ctx, deficits, items)
	RenderReport(a.out, report)

	summary := Summary(runID, report)
	a.tel.ReportInfo("run status", "run", runID, "state", report.State, "summary", summary)
	_ = a.notifier.Notify(ctx, a.cfg.Notify.Title, summary)
	return report, err
}

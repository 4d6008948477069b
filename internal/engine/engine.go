// Package engine drives the quota closing loop: it walks the discovered work
// items, spends them on outstanding deficits and cools down after repeated
// read failures.
package engine

import (
	"connectfill/internal/components/assert"
	"connectfill/internal/components/chrono"
	"connectfill/internal/components/pacing"
	"connectfill/internal/components/telemetry"
	"connectfill/internal/quota"
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_engine_read    = "engine.read"
	report_engine_like    = "engine.like"
	report_engine_cooling = "engine.cooling"
)

// Executor performs one unit of work against an item.
type Executor interface {
	Read(ctx context.Context, item quota.WorkItem) error
	Like(ctx context.Context, item quota.WorkItem) error
}

// Session reports whether authenticated calls may still be attempted.
type Session interface {
	Valid() bool
}

type State string

const (
	StateScanning    State = "scanning"
	StateCooling     State = "cooling"
	StateSatisfied   State = "satisfied"
	StateExhausted   State = "exhausted"
	StateSessionLost State = "session_lost"
	StateCancelled   State = "cancelled"
)

type Options struct {
	// FailureThreshold is the number of consecutive read failures that starts a cooling pause.
	FailureThreshold int
	Cooling          pacing.Range
	// ItemPause is waited between two work items, a zero range disables it.
	ItemPause pacing.Range
}

// Report is the outcome of one run.
type Report struct {
	State     State
	Initial   quota.Map
	Remaining quota.Map

	Items       int
	Processed   int
	ReadsOK     int
	ReadsFailed int
	LikesOK     int
	LikesFailed int
	Coolings    int
	Elapsed     time.Duration
}

type Engine struct {
	exec    Executor
	session Session
	pacer   *pacing.Pacer
	clock   chrono.API
	opts    Options
	tel     telemetry.API
}

// New creates an engine, session may be nil when validity cannot be observed.
func New(exec Executor, session Session, pacer *pacing.Pacer, clock chrono.API, opts Options, tel telemetry.API) *Engine {
	assert.NotNil(exec)
	assert.NotNil(pacer)
	assert.NotNil(clock)
	assert.NotNil(tel)
	if opts.FailureThreshold < 1 {
		opts.FailureThreshold = 5
	}
	return &Engine{
		exec:    exec,
		session: session,
		pacer:   pacer,
		clock:   clock,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("engine", tel),
	}
}

// Run spends items on the deficits until every deficit is zero or the items
// run out. Items are visited once, in the given order, and a failed action is
// never retried. The deficits passed in are not modified.
//
// The only error returned is the context's, together with the partial report.
func (e *Engine) Run(ctx context.Context, deficits quota.Map, items []quota.WorkItem) (Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "engine.run",
		attribute.Int("engine.items", len(items)),
		attribute.String("engine.initial", deficits.String()),
	)
	defer span.End()

	start := e.clock.Now()
	remaining := deficits.Clone()
	report := Report{
		State:     StateScanning,
		Initial:   deficits.Clone(),
		Remaining: remaining,
		Items:     len(items),
	}
	finish := func(state State) Report {
		report.State = state
		report.Elapsed = e.clock.Now().Sub(start)
		e.tel.ReportInfo("run finished", "state", state, "remaining", remaining.String())
		e.tel.ReportCount(report_engine_read+"_ok", int64(report.ReadsOK))
		e.tel.ReportCount(report_engine_read+"_failed", int64(report.ReadsFailed))
		e.tel.ReportCount(report_engine_like+"_ok", int64(report.LikesOK))
		e.tel.ReportCount(report_engine_like+"_failed", int64(report.LikesFailed))
		e.tel.ReportCount("engine.remaining", int64(remaining.Total()))
		span.SetAttributes(
			attribute.String("engine.state", string(state)),
			attribute.String("engine.remaining", remaining.String()),
			attribute.Int("engine.processed", report.Processed),
		)
		return report
	}

	if remaining.Satisfied() {
		return finish(StateSatisfied), nil
	}

	failures := 0
	for i, item := range items {
		if e.session != nil && !e.session.Valid() {
			e.tel.ReportWarning("engine.session", "remaining", remaining.String())
			return finish(StateSessionLost), nil
		}
		if i > 0 && e.opts.ItemPause.Max > 0 {
			_, err := e.pacer.Pause(ctx, e.opts.ItemPause)
			if err != nil {
				return finish(StateCancelled), err
			}
		}

		report.Processed++
		err := e.process(ctx, item, remaining, &report, &failures)
		if err != nil {
			return finish(StateCancelled), err
		}

		if remaining.Satisfied() {
			return finish(StateSatisfied), nil
		}

		if failures >= e.opts.FailureThreshold {
			report.State = StateCooling
			report.Coolings++
			d, err := e.pacer.Pause(ctx, e.opts.Cooling)
			e.tel.ReportWarning(report_engine_cooling, "failures", failures, "paused", d.String())
			if err != nil {
				return finish(StateCancelled), err
			}
			failures = 0
			report.State = StateScanning
		}
	}

	if e.session != nil && !e.session.Valid() {
		return finish(StateSessionLost), nil
	}
	return finish(StateExhausted), nil
}

// process runs the actions one item is due and traces them as one span. It
// only returns an error when ctx ended.
func (e *Engine) process(ctx context.Context, item quota.WorkItem, remaining quota.Map, report *Report, failures *int) error {
	ctx, span := telemetry.StartSpan(ctx, "engine.item", attribute.Int64("topic.id", item.ID))
	defer span.End()

	if remaining.Get(quota.KindRead) > 0 {
		err := e.exec.Read(ctx, item)
		switch {
		case err == nil:
			remaining.Consume(quota.KindRead)
			report.ReadsOK++
			*failures = 0
			span.SetAttributes(attribute.Bool("engine.read", true))
		case ctx.Err() != nil:
			span.SetStatus(codes.Error, "cancelled")
			return ctx.Err()
		default:
			report.ReadsFailed++
			*failures++
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("engine.read", false))
			e.tel.ReportWarning(report_engine_read, "item", item.ID, "failures", *failures, "err", err)
		}
	}

	if remaining.Get(quota.KindLike) > 0 {
		err := e.exec.Like(ctx, item)
		switch {
		case err == nil:
			remaining.Consume(quota.KindLike)
			report.LikesOK++
			span.SetAttributes(attribute.Bool("engine.like", true))
		case ctx.Err() != nil:
			span.SetStatus(codes.Error, "cancelled")
			return ctx.Err()
		default:
			report.LikesFailed++
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("engine.like", false))
			e.tel.ReportWarning(report_engine_like, "item", item.ID, "err", err)
		}
	}

	e.tel.ReportInfo("item done", "item", item.ID, "remaining", remaining.String())
	return nil
}

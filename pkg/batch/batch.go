// Package batch processes a list of post URLs one after another, each with a
// fresh browser.
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/logger"
	"github.com/facebook-automation/pkg/orchestrator"
	"github.com/facebook-automation/pkg/target"
)

// DriverFactory opens a new browser for one run.
type DriverFactory func(ctx context.Context) (browser.Driver, error)

// ProcessFunc runs one post on driver.
type ProcessFunc func(ctx context.Context, driver browser.Driver, post target.Post) *orchestrator.Report

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []Result
}

func (s Summary) OK() bool {
	return s.Failed == 0
}

type Result struct {
	URL    string
	Report *orchestrator.Report
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil && r.Report != nil && r.Report.OK()
}

type Runner struct {
	factory DriverFactory
	process ProcessFunc
	delay   time.Duration
	// pace is refilled when a run finishes, so the next run starts no
	// sooner than delay after it.
	pace *rate.Limiter
	log  *logger.Logger
}

type Options struct {
	Factory DriverFactory
	// Process defaults to a fresh orchestrator built from Deps.
	Process ProcessFunc
	Deps    orchestrator.Deps
	Actions orchestrator.Actions
	// Delay is the pause between the end of one run and the start of the next.
	Delay  time.Duration
	Logger *logger.Logger
}

func New(opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	process := opts.Process
	if process == nil {
		deps, actions := opts.Deps, opts.Actions
		process = func(ctx context.Context, driver browser.Driver, post target.Post) *orchestrator.Report {
			o, _ := orchestrator.Build(deps, driver)
			return o.Run(ctx, post, actions)
		}
	}

	return &Runner{
		factory: opts.Factory,
		process: process,
		delay:   opts.Delay,
		log:     log.WithComponent("batch"),
	}
}

// Run processes urls in order. Invalid URLs count as failures and are
// skipped. Cancellation marks the remaining URLs as failed.
func (r *Runner) Run(ctx context.Context, urls []string) Summary {
	summary := Summary{Total: len(urls)}
	r.log.Info("Processing %d URLs", len(urls))

	for i, raw := range urls {
		result := Result{URL: raw}

		if err := ctx.Err(); err != nil {
			result.Err = err
		} else if post, err := target.Parse(raw); err != nil {
			r.log.Warn("Skipping %s: %v", raw, err)
			result.Err = err
		} else if err := r.wait(ctx); err != nil {
			result.Err = err
		} else {
			result.Report, result.Err = r.runOne(ctx, post)
			r.finished()
		}

		summary.Results = append(summary.Results, result)
		if result.OK() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}

		r.log.Info("[%d/%d] %s: %s (ok %d, failed %d)", i+1, len(urls), raw, describe(result), summary.Succeeded, summary.Failed)
	}

	r.log.Info("Batch complete: %d/%d succeeded", summary.Succeeded, summary.Total)
	return summary
}

// wait blocks until delay has passed since the previous run finished.
func (r *Runner) wait(ctx context.Context) error {
	if r.pace == nil {
		return nil
	}
	r.log.Info("Waiting %s before the next post", r.delay)
	return r.pace.Wait(ctx)
}

func (r *Runner) finished() {
	if r.delay <= 0 {
		return
	}
	r.pace = rate.NewLimiter(rate.Every(r.delay), 1)
	r.pace.Allow()
}

func (r *Runner) runOne(ctx context.Context, post target.Post) (*orchestrator.Report, error) {
	driver, err := r.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			r.log.Warn("Failed to close browser: %v", err)
		}
	}()

	return r.process(ctx, driver, post), nil
}

func describe(r Result) string {
	switch {
	case r.Err != nil:
		return "error: " + r.Err.Error()
	case r.Report == nil:
		return "no report"
	default:
		return string(r.Report.Status)
	}
}

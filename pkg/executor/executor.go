// Package executor performs a single action against a resolved element with
// a bounded fallback ladder.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/diagnostics"
	"github.com/facebook-automation/pkg/locator"
	"github.com/facebook-automation/pkg/logger"
	"github.com/facebook-automation/pkg/resolver"
	"github.com/facebook-automation/pkg/stealth"
)

const DefaultMaxAttempts = 3

type Action string

const (
	Click  Action = "click"
	Type   Action = "type"
	Submit Action = "submit"
)

type Status string

const (
	Success Status = "success"
	Failure Status = "failure"
)

type Reason string

const (
	StaleReference  Reason = "stale_reference"
	NotInteractable Reason = "not_interactable"
	TechniqueFailed Reason = "technique_failed"
	NotFound        Reason = "not_found"
)

type Request struct {
	Intent  locator.Intent
	Variant locator.Variant
	Scope   browser.Scope
	// Resolution is resolved from Intent when nil. For Submit it is the
	// element that was typed into.
	Resolution *resolver.Resolution
	Action     Action
	Payload    string
	// Enter presses Enter after typing.
	Enter bool
}

type Result struct {
	Status     Status
	Reason     Reason
	Attempts   int
	Candidate  string
	Err        error
	Screenshot string
	// Resolution is the handle the action succeeded on.
	Resolution *resolver.Resolution
}

func (r Result) OK() bool {
	return r.Status == Success
}

type Executor struct {
	resolver    *resolver.Resolver
	pages       resolver.PageCounter
	typing      *stealth.TypingController
	timing      *stealth.TimingController
	capturer    *diagnostics.Capturer
	maxAttempts int
	log         *logger.Logger
}

type Options struct {
	Resolver    *resolver.Resolver
	Pages       resolver.PageCounter
	Typing      *stealth.TypingController
	Timing      *stealth.TimingController
	Capturer    *diagnostics.Capturer
	MaxAttempts int
	Logger      *logger.Logger
}

func New(opts Options) *Executor {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	max := opts.MaxAttempts
	if max < 1 {
		max = DefaultMaxAttempts
	}
	return &Executor{
		resolver:    opts.Resolver,
		pages:       opts.Pages,
		typing:      opts.Typing,
		timing:      opts.Timing,
		capturer:    opts.Capturer,
		maxAttempts: max,
		log:         log.WithComponent("executor"),
	}
}

// Perform runs the action. Attempts never exceed the configured maximum:
// the first try, one retry on the same element after an extra scroll, then
// re-resolution skipping candidates already used.
func (e *Executor) Perform(ctx context.Context, req Request) Result {
	log := e.log.WithFields(map[string]interface{}{"intent": req.Intent, "action": req.Action})

	res := req.Resolution
	if res == nil {
		var err error
		res, err = e.resolver.Resolve(ctx, req.Intent, req.Variant, req.Scope)
		if err != nil {
			return e.fail(ctx, req, Result{Status: Failure, Reason: NotFound, Err: err}, log)
		}
	}

	result := Result{Candidate: res.Candidate.String()}
	tried := []int{res.Index}
	retried, extraScroll := false, false

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		result.Attempts = attempt

		var err error
		if res.PageID != e.pages.PageID() {
			err = fmt.Errorf("%w: resolved on page %d, now on page %d", browser.ErrStale, res.PageID, e.pages.PageID())
		} else {
			err = e.attempt(ctx, req, res, extraScroll)
		}

		if err == nil {
			result.Status = Success
			result.Reason = ""
			result.Err = nil
			result.Candidate = res.Candidate.String()
			result.Resolution = res
			log.Info("Performed %s with %s in %d attempt(s)", req.Action, result.Candidate, attempt)
			return result
		}

		result.Reason = reasonFor(err)
		result.Err = err
		log.Debug("Attempt %d failed (%s): %v", attempt, result.Reason, err)

		if ctx.Err() != nil || attempt == e.maxAttempts {
			break
		}

		// Retry the same handle once, unless it belongs to a previous page.
		if !retried && result.Reason != StaleReference {
			retried, extraScroll = true, true
			continue
		}
		retried, extraScroll = true, false

		// The typed-into element is the subject of Submit; another
		// candidate for it would be empty.
		if req.Action == Submit {
			break
		}

		opts := []resolver.Option{resolver.NoWait()}
		if result.Reason != StaleReference {
			opts = append(opts, resolver.Skip(tried...))
		}
		next, rerr := e.resolver.Resolve(ctx, req.Intent, req.Variant, req.Scope, opts...)
		if rerr != nil {
			log.Debug("No alternative candidate: %v", rerr)
			break
		}
		res = next
		tried = append(tried, next.Index)
		result.Candidate = res.Candidate.String()
	}

	result.Status = Failure
	return e.fail(ctx, req, result, log)
}

func (e *Executor) fail(ctx context.Context, req Request, result Result, log *logger.Logger) Result {
	result.Status = Failure
	log.Warn("Failed to %s %s after %d attempt(s): %s: %v", req.Action, req.Intent, result.Attempts, result.Reason, result.Err)
	result.Screenshot = e.capturer.Capture(ctx, fmt.Sprintf("%s_%s", req.Intent, result.Reason))
	return result
}

func (e *Executor) attempt(ctx context.Context, req Request, res *resolver.Resolution, extraScroll bool) error {
	el := res.Element

	if extraScroll {
		if err := el.ScrollIntoView(ctx); err != nil {
			return err
		}
		if err := e.timing.SleepScroll(ctx); err != nil {
			return err
		}
	}

	switch req.Action {
	case Click:
		return e.click(ctx, el)
	case Type:
		return e.typeText(ctx, el, req.Payload, req.Enter)
	case Submit:
		return e.submit(ctx, req, el)
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
}

func (e *Executor) click(ctx context.Context, el browser.Element) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		return err
	}
	if err := e.timing.SleepSettle(ctx); err != nil {
		return err
	}

	if derr := el.DispatchClick(ctx); derr != nil {
		if errors.Is(derr, browser.ErrStale) {
			return derr
		}
		e.log.Debug("Scripted click failed, trying native click: %v", derr)
		if cerr := el.Click(ctx); cerr != nil {
			return fmt.Errorf("scripted click: %v; native click: %w", derr, cerr)
		}
	}

	return e.timing.SleepAction(ctx)
}

func (e *Executor) typeText(ctx context.Context, el browser.Element, text string, enter bool) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		return err
	}
	if err := el.Focus(ctx); err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		e.log.Debug("Element not clearable: %v", err)
	}

	typeFn := func(char rune) error {
		return el.Input(ctx, string(char))
	}
	if err := e.typing.ExecuteTyping(ctx, typeFn, text); err != nil {
		if ctx.Err() != nil || errors.Is(err, browser.ErrStale) {
			return err
		}
		e.log.Debug("Keystroke input failed, setting text directly: %v", err)
		if serr := el.SetText(ctx, text); serr != nil {
			return fmt.Errorf("keystrokes: %v; set text: %w", err, serr)
		}
	}

	if enter {
		if err := el.PressEnter(ctx); err != nil {
			return err
		}
	}

	return e.timing.SleepAction(ctx)
}

func (e *Executor) submit(ctx context.Context, req Request, typed browser.Element) error {
	scope := req.Scope
	if scope == nil {
		scope = typed
	}

	button, err := e.resolver.Resolve(ctx, locator.CommentSubmit, req.Variant, scope, resolver.NoWait())
	if err == nil {
		cerr := e.click(ctx, button.Element)
		if cerr == nil {
			return nil
		}
		e.log.Debug("Submit control click failed, pressing Enter: %v", cerr)
	}

	if err := typed.PressEnter(ctx); err != nil {
		return err
	}
	return e.timing.SleepSettle(ctx)
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, browser.ErrStale):
		return StaleReference
	case errors.Is(err, browser.ErrNotInteractable):
		return NotInteractable
	default:
		return TechniqueFailed
	}
}

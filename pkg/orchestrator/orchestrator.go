// Package orchestrator drives one target post through session, navigation,
// post location and the requested actions.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/facebook-automation/pkg/activity"
	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/comments"
	"github.com/facebook-automation/pkg/executor"
	"github.com/facebook-automation/pkg/locator"
	"github.com/facebook-automation/pkg/logger"
	"github.com/facebook-automation/pkg/resolver"
	"github.com/facebook-automation/pkg/stealth"
	"github.com/facebook-automation/pkg/target"
)

type Stage string

const (
	Idle             Stage = "idle"
	SessionEnsured   Stage = "session_ensured"
	Navigated        Stage = "navigated"
	VariantDetected  Stage = "variant_detected"
	PostLocated      Stage = "post_located"
	ActionsExecuting Stage = "actions_executing"
	Completed        Stage = "completed"
)

type Status string

const (
	Success        Status = "success"
	PartialFailure Status = "partial_failure"
	Failure        Status = "failure"
)

// Actions selects what to do with the post. CommentText overrides the
// template pick.
type Actions struct {
	Like        bool
	Comment     bool
	Share       bool
	CommentText string
}

// Requested lists the selected actions in execution order.
func (a Actions) Requested() []activity.Action {
	var out []activity.Action
	if a.Like {
		out = append(out, activity.Like)
	}
	if a.Comment {
		out = append(out, activity.Comment)
	}
	if a.Share {
		out = append(out, activity.Share)
	}
	return out
}

type Report struct {
	RunID    string
	Post     target.Post
	Status   Status
	Trace    []Stage
	Variant  locator.Variant
	Outcomes []activity.Outcome

	// Drift is set when the realized URL lost the post identifier.
	Drift         bool
	Renavigations int
	// Degraded is set when actions were not scoped to the identified post.
	Degraded bool

	Err      error
	Started  time.Time
	Finished time.Time
}

func (r *Report) OK() bool {
	return r.Status == Success
}

// Outcome returns the recorded outcome for action, if any.
func (r *Report) Outcome(action activity.Action) (activity.Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Action == action {
			return o, true
		}
	}
	return activity.Outcome{}, false
}

// Session is the part of session.Manager the orchestrator needs.
type Session interface {
	Ensure(ctx context.Context) error
}

type Orchestrator struct {
	driver   browser.Driver
	session  Session
	resolver *resolver.Resolver
	executor *executor.Executor
	recorder *activity.Recorder
	comments *comments.Templates
	category string
	timing   *stealth.TimingController
	log      *logger.Logger

	report *Report
}

type Options struct {
	Driver   browser.Driver
	Session  Session
	Resolver *resolver.Resolver
	Executor *executor.Executor
	Recorder *activity.Recorder
	Comments *comments.Templates
	Category string
	Timing   *stealth.TimingController
	Logger   *logger.Logger
}

// New builds an orchestrator for a single run. It is not reusable.
func New(opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	tmpl := opts.Comments
	if tmpl == nil {
		tmpl = comments.Defaults()
	}
	category := opts.Category
	if category == "" {
		category = comments.DefaultCategory
	}

	return &Orchestrator{
		driver:   opts.Driver,
		session:  opts.Session,
		resolver: opts.Resolver,
		executor: opts.Executor,
		recorder: opts.Recorder,
		comments: tmpl,
		category: category,
		timing:   opts.Timing,
		log:      log.WithComponent("orchestrator"),
	}
}

func (o *Orchestrator) transition(stage Stage) {
	o.report.Trace = append(o.report.Trace, stage)
	o.log.Debug("-> %s", stage)
}

// Run processes post. The returned report is complete whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, post target.Post, actions Actions) *Report {
	if o.report != nil {
		return &Report{Post: post, Status: Failure, Err: fmt.Errorf("orchestrator already ran for %s", o.report.Post.URL)}
	}

	o.report = &Report{
		RunID:   o.recorder.RunID(),
		Post:    post,
		Started: time.Now(),
	}
	o.log = o.log.WithFields(map[string]interface{}{"run_id": o.report.RunID, "post": post.URL})
	o.transition(Idle)

	defer func() {
		o.report.Finished = time.Now()
		o.transition(Completed)
		o.log.Info("Run finished: %s (%d outcomes, drift=%t, degraded=%t)",
			o.report.Status, len(o.report.Outcomes), o.report.Drift, o.report.Degraded)
	}()

	if err := o.session.Ensure(ctx); err != nil {
		o.report.Status = Failure
		o.report.Err = err
		return o.report
	}
	o.transition(SessionEnsured)

	requested := actions.Requested()

	current, err := o.navigate(ctx, post.URL)
	if err != nil {
		o.abort(ctx, requested, post, fmt.Errorf("failed to open post: %w", err))
		return o.report
	}
	o.transition(Navigated)

	variant := locator.DetectVariant(current)
	o.report.Variant = variant
	o.transition(VariantDetected)

	scope, variant, err := o.locate(ctx, post, current, variant)
	if err != nil {
		o.abort(ctx, requested, post, err)
		return o.report
	}
	o.report.Variant = variant
	o.transition(PostLocated)

	o.transition(ActionsExecuting)
	allOK := true
	for _, action := range requested {
		var outcome activity.Outcome
		switch action {
		case activity.Like:
			outcome = o.like(ctx, post, variant, scope)
		case activity.Comment:
			outcome = o.comment(ctx, post, variant, scope, actions.CommentText)
		case activity.Share:
			outcome = o.share(ctx, post, variant, scope)
		}
		o.report.Outcomes = append(o.report.Outcomes, outcome)
		allOK = allOK && outcome.OK()

		if ctx.Err() != nil {
			break
		}
	}

	for _, action := range requested[len(o.report.Outcomes):] {
		o.report.Outcomes = append(o.report.Outcomes, o.recorder.Record(ctx, action, post.URL, activity.Failure, ctx.Err().Error()))
		allOK = false
	}

	if allOK {
		o.report.Status = Success
	} else {
		o.report.Status = PartialFailure
	}
	return o.report
}

// abort records one failure per requested action when the post could not be
// reached.
func (o *Orchestrator) abort(ctx context.Context, requested []activity.Action, post target.Post, err error) {
	o.log.Error("%v", err)
	o.report.Err = err
	o.report.Status = Failure
	for _, action := range requested {
		o.report.Outcomes = append(o.report.Outcomes, o.recorder.Record(ctx, action, post.URL, activity.Failure, err.Error()))
	}
}

func (o *Orchestrator) navigate(ctx context.Context, url string) (string, error) {
	if err := o.driver.Navigate(ctx, url); err != nil {
		return "", err
	}
	return o.driver.CurrentURL(ctx)
}

// locate checks for drift, re-navigating at most once, and picks the scope
// actions run in.
func (o *Orchestrator) locate(ctx context.Context, post target.Post, current string, variant locator.Variant) (browser.Scope, locator.Variant, error) {
	if !post.ContainsID(current) {
		o.report.Drift = true
		o.log.Warn("Navigation drifted to %s, reopening %s", current, post.URL)

		o.report.Renavigations++
		again, err := o.navigate(ctx, post.URL)
		if err != nil {
			return nil, variant, fmt.Errorf("failed to reopen post after drift: %w", err)
		}
		current = again
		variant = locator.DetectVariant(current)
		if post.ContainsID(current) {
			o.log.Info("Reopened post at %s", current)
		} else {
			o.log.Warn("Post identifier still missing from %s, continuing", current)
		}
	}

	doc := o.driver.Document()

	first, err := o.resolver.Resolve(ctx, locator.PostBoundary, variant, doc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, variant, ctx.Err()
		}
		o.degrade("no post region found, using the whole page")
		return doc, variant, nil
	}

	if post.ID != "" {
		if region := o.regionWithID(ctx, post.ID, variant, doc); region != nil {
			return region, variant, nil
		}
		o.degrade(fmt.Sprintf("no post region mentions %s, using the first one", post.ID))
	} else {
		o.degrade("post URL carries no identifier, using the first post region")
	}
	return first.Element, variant, nil
}

func (o *Orchestrator) degrade(reason string) {
	o.report.Degraded = true
	o.log.Warn("Degraded confidence: %s", reason)
}

func (o *Orchestrator) regionWithID(ctx context.Context, id string, variant locator.Variant, doc browser.Scope) browser.Element {
	link := locator.CSS(fmt.Sprintf("a[href*='%s']", id))

	for _, c := range o.resolver.Catalog().Lookup(locator.PostBoundary, variant) {
		regions, err := doc.Find(ctx, c)
		if err != nil {
			o.log.Debug("Post region query %s failed: %v", c, err)
			continue
		}
		for _, region := range regions {
			found, err := region.Find(ctx, link)
			if err == nil && len(found) > 0 {
				o.log.Debug("Scoped to %s region containing %s", c, id)
				return region
			}
		}
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, action activity.Action, post target.Post, result executor.Result, detail string) activity.Outcome {
	if result.OK() {
		return o.recorder.Record(ctx, action, post.URL, activity.Success, detail)
	}
	failure := string(result.Reason)
	if result.Err != nil {
		failure = fmt.Sprintf("%s: %v", result.Reason, result.Err)
	}
	return o.recorder.Record(ctx, action, post.URL, activity.Failure, failure)
}

func (o *Orchestrator) like(ctx context.Context, post target.Post, variant locator.Variant, scope browser.Scope) activity.Outcome {
	result := o.executor.Perform(ctx, executor.Request{
		Intent:  locator.LikeControl,
		Variant: variant,
		Scope:   scope,
		Action:  executor.Click,
	})
	return o.record(ctx, activity.Like, post, result, "")
}

func (o *Orchestrator) comment(ctx context.Context, post target.Post, variant locator.Variant, scope browser.Scope, text string) activity.Outcome {
	if text == "" {
		var err error
		text, err = o.comments.Pick(o.category)
		if err != nil {
			return o.recorder.Record(ctx, activity.Comment, post.URL, activity.Failure, err.Error())
		}
	}

	typed := o.executor.Perform(ctx, executor.Request{
		Intent:  locator.CommentInput,
		Variant: variant,
		Scope:   scope,
		Action:  executor.Type,
		Payload: text,
	})
	if !typed.OK() {
		return o.record(ctx, activity.Comment, post, typed, "")
	}

	submitted := o.executor.Perform(ctx, executor.Request{
		Intent:     locator.CommentInput,
		Variant:    variant,
		Scope:      scope,
		Resolution: typed.Resolution,
		Action:     executor.Submit,
	})
	return o.record(ctx, activity.Comment, post, submitted, text)
}

func (o *Orchestrator) share(ctx context.Context, post target.Post, variant locator.Variant, scope browser.Scope) activity.Outcome {
	opened := o.executor.Perform(ctx, executor.Request{
		Intent:  locator.ShareControl,
		Variant: variant,
		Scope:   scope,
		Action:  executor.Click,
	})
	if !opened.OK() {
		return o.record(ctx, activity.Share, post, opened, "")
	}

	if err := o.timing.SleepSettle(ctx); err != nil {
		return o.recorder.Record(ctx, activity.Share, post.URL, activity.Failure, err.Error())
	}

	// the share menu renders outside the post region
	confirmed := o.executor.Perform(ctx, executor.Request{
		Intent:  locator.ShareConfirm,
		Variant: variant,
		Scope:   o.driver.Document(),
		Action:  executor.Click,
	})
	return o.record(ctx, activity.Share, post, confirmed, "")
}

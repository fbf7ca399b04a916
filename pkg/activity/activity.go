// Package activity records one structured outcome per attempted action and
// fans it out to the configured sinks.
package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/facebook-automation/pkg/logger"
)

const Platform = "facebook"

type Action string

const (
	Like    Action = "like"
	Comment Action = "comment"
	Share   Action = "share"
)

type Status string

const (
	Success Status = "success"
	Failure Status = "failure"
)

// Outcome is immutable once recorded.
type Outcome struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Platform  string    `json:"platform"`
	Username  string    `json:"username"`
	Action    Action    `json:"action"`
	Target    string    `json:"post_url"`
	Status    Status    `json:"status"`
	Detail    string    `json:"details,omitempty"`
}

func (o Outcome) OK() bool {
	return o.Status == Success
}

type Sink interface {
	Write(ctx context.Context, o Outcome) error
	Close() error
}

type Recorder struct {
	runID    string
	username string
	platform string
	clock    func() time.Time
	sinks    []Sink
	log      *logger.Logger

	mu       sync.Mutex
	outcomes []Outcome
}

type Options struct {
	Username string
	// RunID defaults to a random UUID.
	RunID    string
	Platform string
	Clock    func() time.Time
	Sinks    []Sink
	Logger   *logger.Logger
}

func NewRecorder(opts Options) *Recorder {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	platform := opts.Platform
	if platform == "" {
		platform = Platform
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Recorder{
		runID:    runID,
		username: opts.Username,
		platform: platform,
		clock:    clock,
		sinks:    opts.Sinks,
		log:      log.WithComponent("activity").WithField("run_id", runID),
	}
}

func (r *Recorder) RunID() string {
	return r.runID
}

// Record builds an outcome and writes it to every sink. A failing sink is
// logged and skipped.
func (r *Recorder) Record(ctx context.Context, action Action, target string, status Status, detail string) Outcome {
	o := Outcome{
		RunID:     r.runID,
		Timestamp: r.clock(),
		Platform:  r.platform,
		Username:  r.username,
		Action:    action,
		Target:    target,
		Status:    status,
		Detail:    detail,
	}

	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()

	for _, sink := range r.sinks {
		if err := sink.Write(ctx, o); err != nil {
			r.log.Error("Failed to record %s outcome: %v", action, err)
		}
	}

	r.log.Info("%s %s: %s", action, status, target)
	return o
}

// Outcomes returns the outcomes recorded so far, oldest first.
func (r *Recorder) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func (r *Recorder) Close() error {
	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package schedule runs batches on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/facebook-automation/pkg/logger"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	log     *logger.Logger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
	// ctx is cancelled by Stop so running jobs wind down.
	ctx    context.Context
	cancel context.CancelFunc
}

type Options struct {
	// Timezone is an IANA name; empty means local time.
	Timezone string
	// Timeout bounds each job run. Zero means no bound.
	Timeout time.Duration
	Logger  *logger.Logger
}

func New(opts Options) (*Scheduler, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	loc := time.Local
	if opts.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", opts.Timezone, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		// overlapping runs would share one account's session
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: opts.Timeout,
		log:     log.WithComponent("scheduler"),
		jobs:    make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// AddJob registers job under name with a standard five-field cron spec.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already scheduled", name)
	}

	entryID, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.log.Info("Added job: %s (schedule: %s)", name, spec)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.log.Info("Starting job: %s", name)
	start := time.Now()

	if err := job(ctx); err != nil {
		s.log.Error("Job %s failed: %v", name, err)
		return
	}
	s.log.Info("Job %s completed in %v", name, time.Since(start))
}

func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.log.Info("Removed job: %s", name)
	}
}

// Next returns the next activation of the named job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	entryID, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(entryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if !entry.Next.IsZero() {
		return entry.Next, true
	}
	return entry.Schedule.Next(time.Now()), true
}

func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// ValidateSpec checks a five-field cron expression.
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

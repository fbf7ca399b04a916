package orchestrator

import (
	"fmt"

	"github.com/facebook-automation/pkg/activity"
	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/comments"
	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/diagnostics"
	"github.com/facebook-automation/pkg/executor"
	"github.com/facebook-automation/pkg/locator"
	"github.com/facebook-automation/pkg/logger"
	"github.com/facebook-automation/pkg/resolver"
	"github.com/facebook-automation/pkg/session"
	"github.com/facebook-automation/pkg/stealth"
	"github.com/facebook-automation/pkg/storage"
)

// Catalog returns the built-in catalog with the configured selectors
// overlay applied.
func Catalog(cfg *config.Config) (*locator.Catalog, error) {
	base := locator.Facebook()
	if cfg.SelectorsFile == "" {
		return base, nil
	}
	cat, err := locator.LoadOverlay(base, cfg.SelectorsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load selectors overlay: %w", err)
	}
	return cat, nil
}

// Deps are the pieces shared by every run of a process.
type Deps struct {
	Config   *config.Config
	Catalog  *locator.Catalog
	Comments *comments.Templates
	Storage  *storage.Storage
	Sinks    []activity.Sink
	Logger   *logger.Logger
}

// Build wires a fresh session, resolver and executor around driver. The
// returned recorder is owned by the caller.
func Build(deps Deps, driver browser.Driver) (*Orchestrator, *activity.Recorder) {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	recorder := activity.NewRecorder(activity.Options{
		Username: cfg.Account().Username,
		Sinks:    deps.Sinks,
		Logger:   log,
	})
	log = log.WithField("run_id", recorder.RunID())

	timing := stealth.NewTimingController(&cfg.Stealth.Timing, log)
	typing := stealth.NewTypingController(&cfg.Stealth.Typing, log)
	res := resolver.New(deps.Catalog, cfg.Browser.WaitTimeout(), driver, log)
	exec := executor.New(executor.Options{
		Resolver:    res,
		Pages:       driver,
		Typing:      typing,
		Timing:      timing,
		Capturer:    diagnostics.NewCapturer(cfg.Storage.ScreenshotsDir, driver, log),
		MaxAttempts: cfg.Executor.MaxAttempts,
		Logger:      log,
	})
	sess := session.New(session.Options{
		Driver:   driver,
		Resolver: res,
		Executor: exec,
		Timing:   timing,
		Account:  cfg.Account(),
		Storage:  deps.Storage,
		Restore:  cfg.Storage.RestoreSession,
		Logger:   log,
	})

	return New(Options{
		Driver:   driver,
		Session:  sess,
		Resolver: res,
		Executor: exec,
		Recorder: recorder,
		Comments: deps.Comments,
		Category: cfg.Comments.Category,
		Timing:   timing,
		Logger:   log,
	}), recorder
}

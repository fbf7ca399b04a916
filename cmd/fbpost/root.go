package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/facebook-automation/pkg/activity"
	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/comments"
	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/logger"
	"github.com/facebook-automation/pkg/orchestrator"
	"github.com/facebook-automation/pkg/stealth"
	"github.com/facebook-automation/pkg/storage"
)

// errRunFailed means at least one target did not fully succeed. Details have
// already been printed.
var errRunFailed = errors.New("not every requested action succeeded")

// driverFactory opens a browser for one run. Tests swap in scripted drivers.
type driverFactory func(ctx context.Context, cfg *config.Config, log *logger.Logger) (browser.Driver, error)

type app struct {
	v         *viper.Viper
	cfg       *config.Config
	log       *logger.Logger
	newDriver driverFactory
}

func newApp() *app {
	return &app{v: viper.New(), newDriver: launchRod}
}

func launchRod(ctx context.Context, cfg *config.Config, log *logger.Logger) (browser.Driver, error) {
	d := browser.NewRod(browser.Options{
		Config:      cfg,
		Fingerprint: stealth.NewFingerprintManager(&cfg.Stealth.Fingerprinting, &cfg.Browser, log),
		Timing:      stealth.NewTimingController(&cfg.Stealth.Timing, log),
		Logger:      log,
	})
	if err := d.Launch(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "fbpost",
		Short:         "Like, comment on and share Facebook posts through a real browser.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Close()
			}
		},
	}

	root.PersistentFlags().StringP("config", "c", config.DefaultPath, "config file (.json or .yaml)")
	root.PersistentFlags().Bool("headless", false, "run the browser without a window")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error")

	root.AddCommand(newInitCmd(), newInteractCmd(a), newBatchCmd(a), newScheduleCmd(a), newHistoryCmd(a))
	return root
}

// initialize loads the config file and applies flag and FBPOST_* overrides.
func (a *app) initialize(cmd *cobra.Command) error {
	a.v.SetEnvPrefix("FBPOST")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(a.v.GetString("config"))
	if err != nil {
		return err
	}
	if a.v.IsSet("headless") {
		cfg.Browser.Headless = a.v.GetBool("headless")
	}
	if level := a.v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	a.cfg = cfg

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputFile: cfg.Logging.OutputFile,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		Component:  "fbpost",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log = log
	return nil
}

// deps opens what every run of this process shares. The returned function
// closes the sinks.
func (a *app) deps() (orchestrator.Deps, func(), error) {
	cfg := a.cfg

	catalog, err := orchestrator.Catalog(cfg)
	if err != nil {
		return orchestrator.Deps{}, nil, err
	}

	tmpl, err := comments.Load(cfg.Comments.File)
	if err != nil {
		return orchestrator.Deps{}, nil, err
	}
	if tmpl.Builtin() {
		a.log.Info("Using built-in comment templates")
	}

	store, err := storage.New(&cfg.Storage, a.log)
	if err != nil {
		return orchestrator.Deps{}, nil, err
	}

	jsonl, err := activity.NewJSONLSink(cfg.Storage.ActivityDir, cfg.Account().Username)
	if err != nil {
		return orchestrator.Deps{}, nil, err
	}
	sinks := []activity.Sink{jsonl}

	if cfg.Storage.HistoryDB != "" {
		history, err := activity.NewSQLiteSink(cfg.Storage.HistoryDB)
		if err != nil {
			a.log.Warn("History database unavailable: %v", err)
		} else {
			sinks = append(sinks, history)
		}
	}

	closeSinks := func() {
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				a.log.Warn("Failed to close activity sink: %v", err)
			}
		}
	}

	return orchestrator.Deps{
		Config:   cfg,
		Catalog:  catalog,
		Comments: tmpl,
		Storage:  store,
		Sinks:    sinks,
		Logger:   a.log,
	}, closeSinks, nil
}

func printReport(w io.Writer, report *orchestrator.Report) {
	fmt.Fprintf(w, "%s: %s\n", report.Post.URL, report.Status)
	for _, o := range report.Outcomes {
		line := fmt.Sprintf("  %-8s %s", o.Action, o.Status)
		if !o.OK() && o.Detail != "" {
			line += "  " + o.Detail
		}
		fmt.Fprintln(w, line)
	}
	if report.Drift {
		fmt.Fprintf(w, "  navigation drifted (re-navigations: %d)\n", report.Renavigations)
	}
	if report.Degraded {
		fmt.Fprintln(w, "  actions were not scoped to the identified post")
	}
	if report.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", report.Err)
	}
}

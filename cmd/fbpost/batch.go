package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/facebook-automation/pkg/batch"
	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/target"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the configured actions against every post listed in a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := a.runBatch(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if !summary.OK() {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().String("file", "", "file with one post URL per line")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().Duration("delay", 0, "minimum time between runs (default from config)")
	addActionFlags(cmd)
	return cmd
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()
	return target.ReadList(f)
}

func (a *app) runBatch(ctx context.Context, cmd *cobra.Command) (batch.Summary, error) {
	urls, err := readURLs(a.v.GetString("file"))
	if err != nil {
		return batch.Summary{}, err
	}

	deps, closeSinks, err := a.deps()
	if err != nil {
		return batch.Summary{}, err
	}
	defer closeSinks()

	delay := a.cfg.Batch.Delay.Std()
	if cmd.Flags().Changed("delay") {
		delay = a.v.GetDuration("delay")
	}

	runner := batch.New(batch.Options{
		Factory: func(ctx context.Context) (browser.Driver, error) {
			return a.newDriver(ctx, a.cfg, a.log)
		},
		Deps:    deps,
		Actions: a.actions(cmd),
		Delay:   delay,
		Logger:  a.log,
	})

	summary := runner.Run(ctx, urls)
	printSummary(cmd.OutOrStdout(), summary)
	return summary, nil
}

func printSummary(w io.Writer, summary batch.Summary) {
	for _, r := range summary.Results {
		switch {
		case r.Report != nil:
			printReport(w, r.Report)
		case r.Err != nil:
			fmt.Fprintf(w, "%s: failure\n  error: %v\n", r.URL, r.Err)
		}
	}
	fmt.Fprintf(w, "Total: %d  Succeeded: %d  Failed: %d\n", summary.Total, summary.Succeeded, summary.Failed)
}

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/facebook-automation/pkg/schedule"
)

func newScheduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Re-run a batch on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := a.v.GetString("cron")
			if err := schedule.ValidateSpec(spec); err != nil {
				return err
			}
			// fail fast on an unreadable list; it is re-read on every run
			if _, err := readURLs(a.v.GetString("file")); err != nil {
				return err
			}

			s, err := schedule.New(schedule.Options{
				Timezone: a.v.GetString("timezone"),
				Timeout:  a.v.GetDuration("timeout"),
				Logger:   a.log,
			})
			if err != nil {
				return err
			}

			err = s.AddJob("batch", spec, func(ctx context.Context) error {
				summary, err := a.runBatch(ctx, cmd)
				if err != nil {
					return err
				}
				if !summary.OK() {
					return errRunFailed
				}
				return nil
			})
			if err != nil {
				return err
			}

			if next, ok := s.Next("batch"); ok {
				a.log.Info("Next batch at %s", next.Format("2006-01-02 15:04 MST"))
			}
			return s.Run(cmd.Context())
		},
	}

	cmd.Flags().String("file", "", "file with one post URL per line")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().String("cron", "", `five-field cron expression, e.g. "0 9 * * *"`)
	_ = cmd.MarkFlagRequired("cron")
	cmd.Flags().String("timezone", "", "IANA timezone for the schedule (default local)")
	cmd.Flags().Duration("timeout", 0, "upper bound for one batch run")
	cmd.Flags().Duration("delay", 0, "minimum time between runs (default from config)")
	addActionFlags(cmd)
	return cmd
}

package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/facebook-automation/pkg/activity"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently recorded action outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Storage.HistoryDB == "" {
				return errors.New("storage.history_db is not configured")
			}

			sink, err := activity.NewSQLiteSink(a.cfg.Storage.HistoryDB)
			if err != nil {
				return err
			}
			defer sink.Close()

			outcomes, err := sink.Recent(cmd.Context(), a.v.GetInt("limit"))
			if err != nil {
				return fmt.Errorf("failed to read history: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Time", "Action", "Status", "Post", "Details"})
			for _, o := range outcomes {
				t.AppendRow(table.Row{
					o.Timestamp.Local().Format("2006-01-02 15:04:05"), o.Action, o.Status, o.Target, o.Detail,
				})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "number of outcomes to show")
	return cmd
}

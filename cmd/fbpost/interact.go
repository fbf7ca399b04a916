package main

import (
	"github.com/spf13/cobra"

	"github.com/facebook-automation/pkg/orchestrator"
	"github.com/facebook-automation/pkg/target"
)

func newInteractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interact",
		Short: "Run the configured actions against a single post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			post, err := target.Parse(a.v.GetString("url"))
			if err != nil {
				return err
			}
			actions := a.actions(cmd)

			deps, closeSinks, err := a.deps()
			if err != nil {
				return err
			}
			defer closeSinks()

			driver, err := a.newDriver(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer driver.Close()

			o, _ := orchestrator.Build(deps, driver)
			report := o.Run(ctx, post, actions)
			printReport(cmd.OutOrStdout(), report)

			if !report.OK() {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().String("url", "", "post URL")
	_ = cmd.MarkFlagRequired("url")
	addActionFlags(cmd)
	return cmd
}

func addActionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("like", false, "like the post")
	cmd.Flags().Bool("comment", false, "comment on the post")
	cmd.Flags().Bool("share", false, "share the post")
	cmd.Flags().String("comment-text", "", "comment to post instead of a random template")
}

// actions uses the action flags when any is given, else the config.
func (a *app) actions(cmd *cobra.Command) orchestrator.Actions {
	actions := orchestrator.Actions{
		Like:        a.cfg.Actions.Like,
		Comment:     a.cfg.Actions.Comment,
		Share:       a.cfg.Actions.Share,
		CommentText: a.v.GetString("comment-text"),
	}

	flags := cmd.Flags()
	if flags.Changed("like") || flags.Changed("comment") || flags.Changed("share") {
		actions.Like = a.v.GetBool("like")
		actions.Comment = a.v.GetBool("comment")
		actions.Share = a.v.GetBool("share")
	}
	return actions
}

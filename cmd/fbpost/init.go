package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/facebook-automation/pkg/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with the default settings",
		Args:  cobra.NoArgs,
		// no config exists yet, so skip the root initialization
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			username, _ := cmd.Flags().GetString("username")
			force, _ := cmd.Flags().GetBool("force")

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}

			cfg := config.DefaultConfig()
			cfg.Accounts = []config.Account{{Username: username}}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Fill in accounts[0].password before running.\n", path)
			return nil
		},
	}

	cmd.Flags().String("username", "", "account email or phone to put in the file")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

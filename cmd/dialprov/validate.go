package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/dialprov/internal/config"
	"github.com/alexisbeaulieu97/dialprov/internal/report"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the profile without touching the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			source := root.configPath
			if source == "" {
				source = config.DefaultSource
			}
			msg := fmt.Sprintf("profile %s (%s): %d packages, %d ports, %d cron jobs, %d identity targets",
				profile.Name, source, len(profile.Packages), len(profile.Ports), len(profile.Cron.Jobs),
				1+len(profile.Identity.Columns)+len(profile.Identity.Files))
			report.New(cmd.OutOrStdout(), root.verbose).Notice(report.MarkerOK, msg)
			return nil
		},
	}
}

package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alexisbeaulieu97/dialprov/internal/provision"
)

var modeShort = map[provision.Mode]string{
	provision.ModePreflight:      "Check the platform without changing anything",
	provision.ModeInstall:        "Install packages, start services and load the schema",
	provision.ModePostinstall:    "Register the server, scheduled jobs and first-run summary",
	provision.ModeUpdateIdentity: "Propagate a changed host address everywhere it is cached",
	provision.ModeEnableSchedule: "Append missing scheduled jobs to the crontab",
	provision.ModeSelfTest:       "Run the read-only verification battery",
	provision.ModeQuickstart:     "Run preflight, install, postinstall and selftest in order",
}

func newModeCmd(mode provision.Mode, root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     string(mode),
		Aliases: mode.Aliases(),
		Short:   modeShort[mode],
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{
				Mode:        mode,
				ConfigPath:  root.configPath,
				Verbose:     root.verbose,
				LogFormat:   root.logFormat,
				NoTUI:       root.noTUI,
				JSON:        root.json,
				Parallel:    root.parallel,
				DryRun:      root.dryRun,
				Interactive: term.IsTerminal(int(os.Stdout.Fd())),
			}
			return modeCmdRunner(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

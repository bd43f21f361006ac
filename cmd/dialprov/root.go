package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/dialprov/internal/provision"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

type rootFlags struct {
	configPath string
	verbose    bool
	logFormat  string
	noTUI      bool
	json       bool
	parallel   int
	dryRun     bool
}

const rootLong = `dialprov provisions and verifies a single-server VICIdial host.

Every mode is idempotent: each stage probes the host first and only acts
on drift, so re-running a mode after a failure is the recovery path.
Package installation and schema loading are not transactional.

Exit codes: 0 success, 1 stage or check failure, 2 configuration error,
3 unmet precondition, 4 insufficient privilege, 130 cancelled.`

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "dialprov",
		Short:         "Provision and verify a VICIdial host",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return dperrors.NewValidationError("mode", fmt.Sprintf("unknown mode %q", args[0]), nil)
			}
			return cmd.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return dperrors.NewValidationError("flags", err.Error(), err)
	})

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Profile YAML (defaults to the embedded profile)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging, fact dumps and diffs")
	pf.StringVar(&flags.logFormat, "log-format", "console", "Log format on stderr: console or json")
	pf.BoolVar(&flags.noTUI, "no-tui", false, "Print plain status lines even on a terminal")
	pf.BoolVar(&flags.json, "json", false, "Write the run report to stdout as JSON")
	pf.IntVar(&flags.parallel, "parallel", 0, "Concurrent self-test checks (default from profile)")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "Probe and report drift without running any action")

	for _, mode := range provision.Modes() {
		cmd.AddCommand(newModeCmd(mode, flags))
	}
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (f *rootFlags) validate() error {
	switch f.logFormat {
	case "console", "json":
	default:
		return dperrors.NewValidationError("log-format", fmt.Sprintf("%q is not console or json", f.logFormat), nil)
	}
	if f.parallel < 0 || f.parallel > 32 {
		return dperrors.NewValidationError("parallel", fmt.Sprintf("%d is outside 1..32", f.parallel), nil)
	}
	return nil
}

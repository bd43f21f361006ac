package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/dialprov/internal/config"
	"github.com/alexisbeaulieu97/dialprov/internal/cronset"
	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/provision"
	"github.com/alexisbeaulieu97/dialprov/internal/report"
	"github.com/alexisbeaulieu97/dialprov/internal/tui"
	"github.com/alexisbeaulieu97/dialprov/internal/verify"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

type runOptions struct {
	Mode        provision.Mode
	ConfigPath  string
	Verbose     bool
	LogFormat   string
	NoTUI       bool
	JSON        bool
	Parallel    int
	DryRun      bool
	Interactive bool
}

// useTUI reports whether the progress view replaces plain status lines.
// Verbose output (fact dumps, diffs, debug logs) needs plain lines.
func (o runOptions) useTUI() bool {
	return o.Interactive && !o.NoTUI && !o.JSON && !o.Verbose
}

var (
	modeCmdRunner = runMode
	currentEUID   = os.Geteuid
	newDeps       = buildDeps
	runProgress   = tui.Run
)

func runMode(ctx context.Context, opts runOptions, stdout, stderr io.Writer) error {
	if opts.Mode.Mutating() {
		if uid := currentEUID(); uid != 0 {
			return dperrors.NewPrivilegeError(string(opts.Mode), uid)
		}
	}

	profile, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log, err := newLogger(opts, runID, stderr)
	if err != nil {
		return dperrors.NewValidationError("log-format", err.Error(), err)
	}

	deps, closeDeps, err := newDeps(ctx, profile, log)
	if err != nil {
		return err
	}
	defer closeDeps()

	prov, err := provision.New(profile, deps)
	if err != nil {
		return err
	}

	rep := report.New(stdout, opts.Verbose)
	log.WithFields(map[string]any{
		"mode":    string(opts.Mode),
		"profile": profile.Name,
		"dry_run": opts.DryRun,
	}).Info("run started")

	if opts.Mode == provision.ModeSelfTest {
		return runSelfTest(ctx, prov, rep, opts, runID, log, stdout)
	}
	return runPipeline(ctx, prov, rep, opts, runID, log, stdout)
}

func newLogger(opts runOptions, runID string, stderr io.Writer) (*logger.Logger, error) {
	level := "info"
	switch {
	case opts.Verbose:
		level = "debug"
	case opts.useTUI():
		level = "warn"
	}
	return logger.New(logger.Options{
		Level:         level,
		HumanReadable: opts.LogFormat != "json",
		Writer:        stderr,
		RunID:         runID,
	})
}

func runSelfTest(ctx context.Context, prov *provision.Provisioner, rep *report.Reporter, opts runOptions, runID string, log *logger.Logger, stdout io.Writer) error {
	h, err := prov.Harness(verify.Options{Parallel: opts.Parallel, Logger: log.With("component", "selftest")})
	if err != nil {
		return err
	}

	result, runErr := h.Run(ctx)
	if opts.JSON {
		if err := report.WriteChecksJSON(stdout, runID, result); err != nil {
			return err
		}
	} else {
		rep.Checks(result)
	}

	if runErr != nil {
		return runErr
	}
	if !result.AllPassed() {
		failed := result.FailedNames()
		return dperrors.NewCheckFailure("selftest", fmt.Sprintf("%d of %d checks failed: %s", len(failed), result.Total(), strings.Join(failed, ", ")), nil)
	}
	return nil
}

func runPipeline(ctx context.Context, prov *provision.Provisioner, rep *report.Reporter, opts runOptions, runID string, log *logger.Logger, stdout io.Writer) error {
	var checks *model.RunReport
	pipeline, err := buildPipeline(prov, opts, log, func(r model.RunReport) { checks = &r })
	if err != nil {
		return err
	}
	if err := pipeline.Validate(); err != nil {
		return err
	}

	if !opts.useTUI() && !opts.JSON {
		prov.Cron().OnChange(func(res cronset.Result) {
			rep.Diff("crontab", res.Diff())
		})
	}

	var result model.PipelineResult
	if opts.useTUI() {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		result, err = runProgress(stdout, string(opts.Mode), pipeline.StageNames(), cancel, func(obs engine.Observer) model.PipelineResult {
			return engine.NewExecutor(engine.Options{DryRun: opts.DryRun, Logger: log, Observer: obs}).Run(runCtx, pipeline)
		})
		if err != nil {
			return err
		}
	} else {
		var obs engine.Observer = rep
		if opts.JSON {
			obs = engine.NopObserver{}
		}
		result = engine.NewExecutor(engine.Options{DryRun: opts.DryRun, Logger: log, Observer: obs}).Run(ctx, pipeline)
	}

	if opts.JSON {
		if err := report.WritePipelineJSON(stdout, runID, result, checks); err != nil {
			return err
		}
		return result.Err
	}
	if checks != nil {
		rep.Checks(*checks)
	}
	if !opts.useTUI() {
		rep.Pipeline(result)
	}
	return result.Err
}

// buildPipeline returns the stage pipeline for the mode. Quickstart ends with
// the self-test battery, whose report goes to onReport.
func buildPipeline(prov *provision.Provisioner, opts runOptions, log *logger.Logger, onReport func(model.RunReport)) (engine.Pipeline, error) {
	if opts.Mode != provision.ModeQuickstart {
		return prov.Pipeline(opts.Mode)
	}
	h, err := prov.Harness(verify.Options{Parallel: opts.Parallel, Logger: log.With("component", "selftest")})
	if err != nil {
		return engine.Pipeline{}, err
	}
	return prov.Quickstart(h, onReport), nil
}

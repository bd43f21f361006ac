package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

// Options configures an Executor.
type Options struct {
	DryRun   bool
	Logger   *logger.Logger
	Observer Observer
}

// Executor runs stages and pipelines strictly in declared order.
type Executor struct {
	dryRun   bool
	logger   *logger.Logger
	observer Observer
}

// NewExecutor creates a new executor instance.
func NewExecutor(opts Options) *Executor {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	return &Executor{dryRun: opts.DryRun, logger: log, observer: observer}
}

// RunStage executes one stage: capture facts, evaluate the guard, run the
// action on drift, then re-capture and re-evaluate. The returned error is
// nil for satisfied, converged and warned outcomes.
func (e *Executor) RunStage(ctx context.Context, env model.FactSet, stage Stage) (model.StageResult, error) {
	start := time.Now()
	log := e.logger.With("stage", stage.Name)
	e.observer.StageStarted(stage)

	result := model.StageResult{Stage: stage.Name}
	finish := func(err error) (model.StageResult, error) {
		result.Duration = time.Since(start)
		if err != nil {
			result.Error = err
			if result.Message == "" {
				result.Message = err.Error()
			}
			if stage.Policy == PolicyWarn {
				result.Status = model.StatusWarned
				log.WithFields(map[string]any{"facts": result.Before.Strings()}).Warn(err.Error())
				err = nil
			} else {
				result.Status = model.StatusFailed
				log.WithFields(map[string]any{"facts": result.Before.Strings()}).Error(err, "stage failed")
			}
		}
		e.observer.StageFinished(result)
		return result, err
	}

	if err := stage.Validate(); err != nil {
		return finish(dperrors.NewActionError(stage.Name, "validate", err))
	}

	before, err := captureAll(ctx, env, stage.Probes)
	result.Before = before
	if err != nil {
		return finish(dperrors.NewActionError(stage.Name, "probe", err))
	}

	drift, reason := stage.Guard(before)
	if !drift {
		result.Status = model.StatusSatisfied
		result.Message = "already satisfied"
		result.After = before
		log.Debug("already satisfied")
		return finish(nil)
	}

	log.WithFields(map[string]any{"reason": reason, "facts": before.Strings()}).Debug("drift detected")

	if stage.IsPrecondition() {
		result.Message = reason
		return finish(stage.driftError(before, reason))
	}

	if e.dryRun {
		result.Status = model.StatusWouldChange
		result.Message = fmt.Sprintf("would run %s: %s", stage.Action.Name, reason)
		result.After = before
		return finish(nil)
	}

	// Actions mutate shared resources and must not be abandoned mid-write,
	// so cancellation is only honoured between stages.
	actionCtx := context.WithoutCancel(ctx)

	log.WithFields(map[string]any{"action": stage.Action.Name, "reason": reason}).Info("running action")
	if err := stage.Action.Fn(actionCtx, env, before); err != nil {
		return finish(dperrors.NewActionError(stage.Name, stage.Action.Name, err))
	}
	log.WithFields(map[string]any{"action": stage.Action.Name}).Info("action completed")

	after, err := captureAll(actionCtx, env, stage.Probes)
	result.After = after
	if err != nil {
		return finish(dperrors.NewActionError(stage.Name, "verify probe", err))
	}

	if drift, reason := stage.Guard(after); drift {
		return finish(dperrors.NewConvergenceError(stage.Name, reason, after.Strings()))
	}

	result.Status = model.StatusConverged
	result.Changed = true
	result.Message = fmt.Sprintf("%s: %s", stage.Action.Name, reason)
	return finish(nil)
}

// Run executes the pipeline. Seed probes are captured once into the run
// environment; stages then run in order until the first fatal failure.
// Stages not reached because of cancellation are reported as cancelled.
func (e *Executor) Run(ctx context.Context, p Pipeline) (result model.PipelineResult) {
	start := time.Now()
	result.Pipeline = p.Name
	defer func() { result.Duration = time.Since(start) }()

	if err := p.Validate(); err != nil {
		result.Err = err
		return result
	}

	log := e.logger.With("pipeline", p.Name)
	log.WithFields(map[string]any{"stages": len(p.Stages), "dry_run": e.dryRun}).Info("pipeline started")

	env, err := captureSeed(ctx, p.Seed)
	if err != nil {
		result.Err = err
		log.Error(result.Err, "seed probes failed")
		return result
	}
	if env.Len() > 0 {
		log.WithFields(map[string]any{"env": env.Strings()}).Debug("run environment captured")
	}

	for i, stage := range p.Stages {
		if err := ctx.Err(); err != nil {
			for _, skipped := range p.Stages[i:] {
				cancelled := model.StageResult{Stage: skipped.Name, Status: model.StatusCancelled, Message: "run cancelled"}
				result.Stages = append(result.Stages, cancelled)
				e.observer.StageFinished(cancelled)
			}
			result.Err = fmt.Errorf("pipeline %s cancelled before stage %s: %w", p.Name, stage.Name, err)
			log.Warn(result.Err.Error())
			return result
		}

		stageResult, err := e.RunStage(ctx, env, stage)
		result.Stages = append(result.Stages, stageResult)
		if err != nil {
			result.Err = err
			log.WithFields(map[string]any{"failed_stage": stage.Name}).Error(err, "pipeline halted")
			return result
		}
	}

	ok, changed, warned, _ := result.Counts()
	log.WithFields(map[string]any{"ok": ok, "changed": changed, "warned": warned}).Info("pipeline completed")
	return result
}

func captureAll(ctx context.Context, env model.FactSet, probes []Probe) (model.FactSet, error) {
	facts := model.FactSet{}
	for _, p := range probes {
		fact, err := p.Capture(ctx, env)
		if err != nil {
			return facts, err
		}
		facts = facts.With(fact)
	}
	return facts, nil
}

// captureSeed builds the run environment. A seed that cannot be observed
// means the host is not ready for the pipeline, so failures other than
// cancellation are reported as a precondition on the failing key.
func captureSeed(ctx context.Context, seed []Probe) (model.FactSet, error) {
	env := model.FactSet{}
	for _, p := range seed {
		fact, err := p.Capture(ctx, env)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return env, fmt.Errorf("seed %s: %w", p.Key, err)
			}
			return env, dperrors.NewPreconditionError("seed", p.Key, err.Error())
		}
		env = env.With(fact)
	}
	return env, nil
}

func joinFacts(facts model.FactSet) string {
	return strings.Join(facts.Strings(), ", ")
}

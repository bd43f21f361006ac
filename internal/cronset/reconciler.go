package cronset

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
	"github.com/alexisbeaulieu97/dialprov/pkg/diff"
)

// MissingKey is the fact listing desired job IDs absent from the table.
const MissingKey = "cron:missing"

// Reconciler converges one scheduler table toward a desired job set.
type Reconciler struct {
	table    ports.SchedulerTable
	desired  []JobSpec
	logger   *logger.Logger
	onChange func(Result)
}

// OnChange registers fn to receive the result of every pass that replaced
// the table.
func (r *Reconciler) OnChange(fn func(Result)) {
	r.onChange = fn
}

// NewReconciler validates the desired set and returns a reconciler.
func NewReconciler(table ports.SchedulerTable, desired []JobSpec, log *logger.Logger) (*Reconciler, error) {
	seen := make(map[string]struct{}, len(desired))
	for _, spec := range desired {
		if spec.ID == "" || strings.TrimSpace(spec.Command) == "" {
			return nil, fmt.Errorf("cron job %q needs an id and a command", spec.ID)
		}
		if _, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("cron job %s declared twice", spec.ID)
		}
		seen[spec.ID] = struct{}{}
		if err := ValidateSchedule(spec.Schedule); err != nil {
			return nil, fmt.Errorf("cron job %s: %w", spec.ID, err)
		}
		if strings.Contains(spec.Command, "\n") {
			return nil, fmt.Errorf("cron job %s: command spans lines", spec.ID)
		}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{table: table, desired: append([]JobSpec(nil), desired...), logger: log}, nil
}

// Plan reads the table and returns the specs that would be appended.
func (r *Reconciler) Plan(ctx context.Context) ([]JobSpec, []byte, error) {
	current, err := r.table.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	return Missing(r.desired, Parse(current)), current, nil
}

// Result describes one reconcile pass.
type Result struct {
	Added  []string
	Before []byte
	After  []byte
}

// Diff renders the table change as a unified diff.
func (res Result) Diff() string {
	return diff.Lines(res.Before, res.After, "crontab (live)", "crontab (reconciled)")
}

// Reconcile appends every missing job and re-reads the table to confirm.
// The table is only replaced when something is missing.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	missing, current, err := r.Plan(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Before: current, After: current}
	if len(missing) == 0 {
		return res, nil
	}

	next := Merge(current, missing)
	r.logger.WithFields(map[string]any{"jobs": IDs(missing), "lines_before": len(Parse(current))}).Info("appending scheduled jobs")
	if err := r.table.Replace(ctx, next); err != nil {
		return res, fmt.Errorf("replace crontab: %w", err)
	}

	after, err := r.table.Read(ctx)
	if err != nil {
		return res, fmt.Errorf("re-read crontab: %w", err)
	}
	res.After = after
	res.Added = IDs(missing)
	if still := Missing(r.desired, Parse(after)); len(still) > 0 {
		return res, fmt.Errorf("crontab still lacks %s after replace", strings.Join(IDs(still), ", "))
	}
	r.logger.WithFields(map[string]any{"jobs": res.Added}).Info("scheduled jobs appended")
	if r.logger.DebugEnabled() {
		r.logger.Debug(res.Diff())
	}
	return res, nil
}

// Probe captures the IDs of missing jobs.
func (r *Reconciler) Probe() engine.Probe {
	return engine.NewProbe(MissingKey, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		missing, _, err := r.Plan(ctx)
		if err != nil {
			return model.Fact{}, err
		}
		return model.Set(MissingKey, IDs(missing)), nil
	})
}

// Stage wraps the reconciler as an engine stage.
func (r *Reconciler) Stage(name string) engine.Stage {
	return engine.Stage{
		Name:        name,
		Description: fmt.Sprintf("ensure %d scheduled jobs are present", len(r.desired)),
		Probes:      []engine.Probe{r.Probe()},
		Guard:       engine.RequireEmpty(MissingKey),
		Action: &engine.Action{Name: "append-cron-jobs", Fn: func(ctx context.Context, _, _ model.FactSet) error {
			res, err := r.Reconcile(ctx)
			if err == nil && len(res.Added) > 0 && r.onChange != nil {
				r.onChange(res)
			}
			return err
		}},
	}
}

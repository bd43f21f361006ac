package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/dialprov/internal/model"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

// fakeHost is a tiny mutable world the stages under test converge.
type fakeHost struct {
	mu        sync.Mutex
	installed map[string]bool
	actions   int
	sticky    bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{installed: map[string]bool{}}
}

func (h *fakeHost) probe(name string) Probe {
	return NewProbe("package:"+name+":installed", func(context.Context, model.FactSet) (model.Fact, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		return model.Presence("package:"+name+":installed", h.installed[name]), nil
	})
}

func (h *fakeHost) installStage(name string) Stage {
	return Stage{
		Name:   "install-" + name,
		Probes: []Probe{h.probe(name)},
		Guard:  RequirePresent("package:" + name + ":installed"),
		Action: &Action{Name: "install", Fn: func(context.Context, model.FactSet, model.FactSet) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.actions++
			if !h.sticky {
				h.installed[name] = true
			}
			return nil
		}},
	}
}

type recordingObserver struct {
	started  []string
	finished []model.StageResult
}

func (r *recordingObserver) StageStarted(s Stage) { r.started = append(r.started, s.Name) }
func (r *recordingObserver) StageFinished(res model.StageResult) {
	r.finished = append(r.finished, res)
}

func TestRunStageIsIdempotent(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	exec := NewExecutor(Options{})
	stage := host.installStage("asterisk")

	first, err := exec.RunStage(context.Background(), model.FactSet{}, stage)
	require.NoError(t, err)
	require.Equal(t, model.StatusConverged, first.Status)
	require.True(t, first.Changed)
	require.Equal(t, 1, host.actions)

	second, err := exec.RunStage(context.Background(), model.FactSet{}, stage)
	require.NoError(t, err)
	require.Equal(t, model.StatusSatisfied, second.Status)
	require.False(t, second.Changed)
	require.Equal(t, 1, host.actions, "second run must not invoke the action")
	require.True(t, first.After.Equal(second.Before))
	require.True(t, second.Before.Equal(second.After))
}

func TestRunStageConvergenceFailure(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	host.sticky = true
	exec := NewExecutor(Options{})

	result, err := exec.RunStage(context.Background(), model.FactSet{}, host.installStage("mariadb-server"))
	require.Error(t, err)

	var convErr *dperrors.ConvergenceError
	require.ErrorAs(t, err, &convErr)
	require.Equal(t, "install-mariadb-server", convErr.Stage)
	require.Contains(t, convErr.Facts, "package:mariadb-server:installed=false")
	require.Equal(t, model.StatusFailed, result.Status)
	require.Equal(t, 1, host.actions)
}

func TestRunStageActionError(t *testing.T) {
	t.Parallel()

	stage := newFakeHost().installStage("httpd")
	stage.Action.Fn = func(context.Context, model.FactSet, model.FactSet) error {
		return errors.New("apt-get exited 100")
	}

	_, err := NewExecutor(Options{}).RunStage(context.Background(), model.FactSet{}, stage)
	var actErr *dperrors.ActionError
	require.ErrorAs(t, err, &actErr)
	require.Equal(t, "install", actErr.Op)
	require.Contains(t, err.Error(), "apt-get exited 100")
	require.Equal(t, dperrors.ExitFailure, dperrors.ExitCode(err))
}

func TestRunStagePreconditionDrift(t *testing.T) {
	t.Parallel()

	stage := Stage{
		Name: "memory",
		Probes: []Probe{NewProbe("host:mem_mb", func(context.Context, model.FactSet) (model.Fact, error) {
			return model.Int("host:mem_mb", 512), nil
		})},
		Guard: RequireAtLeast("host:mem_mb", 2048),
	}

	result, err := NewExecutor(Options{}).RunStage(context.Background(), model.FactSet{}, stage)
	var preErr *dperrors.PreconditionError
	require.ErrorAs(t, err, &preErr)
	require.Equal(t, "memory", preErr.Stage)
	require.Contains(t, preErr.Fact, "host:mem_mb=512")
	require.Equal(t, model.StatusFailed, result.Status)
	require.Equal(t, dperrors.ExitPrecondition, dperrors.ExitCode(err))
}

func TestRunStageOnDriftOverride(t *testing.T) {
	t.Parallel()

	stage := Stage{
		Name: "selftest",
		Probes: []Probe{NewProbe("selftest:failed", func(context.Context, model.FactSet) (model.Fact, error) {
			return model.Set("selftest:failed", []string{"asterisk active"}), nil
		})},
		Guard: RequireEmpty("selftest:failed"),
		OnDrift: func(_ model.FactSet, reason string) error {
			return dperrors.NewCheckFailure("selftest", reason, nil)
		},
	}

	_, err := NewExecutor(Options{}).RunStage(context.Background(), model.FactSet{}, stage)
	var checkErr *dperrors.CheckFailure
	require.ErrorAs(t, err, &checkErr)
	require.Contains(t, checkErr.Detail, "asterisk active")
}

func TestRunStageWarnPolicy(t *testing.T) {
	t.Parallel()

	stage := newFakeHost().installStage("sox")
	stage.Policy = PolicyWarn
	stage.Action.Fn = func(context.Context, model.FactSet, model.FactSet) error {
		return errors.New("no candidate")
	}

	result, err := NewExecutor(Options{}).RunStage(context.Background(), model.FactSet{}, stage)
	require.NoError(t, err)
	require.Equal(t, model.StatusWarned, result.Status)
	require.Error(t, result.Error)
}

func TestRunStageDryRunNeverActs(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	result, err := NewExecutor(Options{DryRun: true}).RunStage(context.Background(), model.FactSet{}, host.installStage("asterisk"))
	require.NoError(t, err)
	require.Equal(t, model.StatusWouldChange, result.Status)
	require.Contains(t, result.Message, "would run install")
	require.Zero(t, host.actions)
}

func TestRunStageProbeTimeout(t *testing.T) {
	t.Parallel()

	slow := NewProbe("http:admin", func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		<-ctx.Done()
		return model.Fact{}, ctx.Err()
	}).WithTimeout(10 * time.Millisecond)

	stage := Stage{Name: "web", Probes: []Probe{slow}, Guard: RequirePresent("http:admin")}
	_, err := NewExecutor(Options{}).RunStage(context.Background(), model.FactSet{}, stage)

	var timeoutErr *dperrors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, "http:admin", timeoutErr.Op)
	var actErr *dperrors.ActionError
	require.ErrorAs(t, err, &actErr)
}

func TestRunStageActionIgnoresCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	host := newFakeHost()
	stage := host.installStage("asterisk")
	inner := stage.Action.Fn
	stage.Action.Fn = func(actx context.Context, env, facts model.FactSet) error {
		cancel()
		if actx.Err() != nil {
			return actx.Err()
		}
		return inner(actx, env, facts)
	}

	result, err := NewExecutor(Options{}).RunStage(ctx, model.FactSet{}, stage)
	require.NoError(t, err)
	require.Equal(t, model.StatusConverged, result.Status)
}

func TestRunHaltsOnFirstFatalFailure(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	broken := host.installStage("broken")
	broken.Action.Fn = func(context.Context, model.FactSet, model.FactSet) error { return errors.New("boom") }

	observer := &recordingObserver{}
	exec := NewExecutor(Options{Observer: observer})
	result := exec.Run(context.Background(), Pipeline{
		Name:   "install",
		Stages: []Stage{host.installStage("asterisk"), broken, host.installStage("httpd")},
	})

	require.Error(t, result.Err)
	require.False(t, result.Succeeded())
	require.Len(t, result.Stages, 2)
	require.Equal(t, []string{"install-asterisk", "install-broken"}, observer.started)
	require.False(t, host.installed["httpd"])
	require.Contains(t, result.Err.Error(), "install-broken")
}

func TestRunContinuesPastWarnedStage(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	optional := host.installStage("codec")
	optional.Policy = PolicyWarn
	optional.Action.Fn = func(context.Context, model.FactSet, model.FactSet) error { return errors.New("missing") }

	result := NewExecutor(Options{}).Run(context.Background(), Pipeline{
		Name:   "postinstall",
		Stages: []Stage{optional, host.installStage("asterisk")},
	})

	require.NoError(t, result.Err)
	ok, changed, warned, failed := result.Counts()
	require.Equal(t, 1, ok)
	require.Equal(t, 1, changed)
	require.Equal(t, 1, warned)
	require.Zero(t, failed)
}

func TestRunCancelledBetweenStages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	host := newFakeHost()
	first := host.installStage("asterisk")
	inner := first.Action.Fn
	first.Action.Fn = func(actx context.Context, env, facts model.FactSet) error {
		cancel()
		return inner(actx, env, facts)
	}

	result := NewExecutor(Options{}).Run(ctx, Pipeline{
		Name:   "install",
		Stages: []Stage{first, host.installStage("httpd"), host.installStage("php")},
	})

	require.ErrorIs(t, result.Err, context.Canceled)
	require.Equal(t, dperrors.ExitCancelled, dperrors.ExitCode(result.Err))
	require.Len(t, result.Stages, 3)
	require.Equal(t, model.StatusConverged, result.Stages[0].Status)
	require.Equal(t, model.StatusCancelled, result.Stages[1].Status)
	require.Equal(t, model.StatusCancelled, result.Stages[2].Status)
	require.Equal(t, 1, host.actions)
}

func TestRunSeedsEnvironmentOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	seed := NewProbe("net:identity", func(context.Context, model.FactSet) (model.Fact, error) {
		calls++
		return model.String("net:identity", "10.0.0.9", true), nil
	})

	var seen []string
	stage := func(name string) Stage {
		return Stage{
			Name: name,
			Probes: []Probe{NewProbe("echo", func(_ context.Context, env model.FactSet) (model.Fact, error) {
				seen = append(seen, env.Str("net:identity"))
				return model.Presence("echo", true), nil
			})},
			Guard: RequirePresent("echo"),
		}
	}

	result := NewExecutor(Options{}).Run(context.Background(), Pipeline{
		Name:   "update-identity",
		Seed:   []Probe{seed},
		Stages: []Stage{stage("a"), stage("b")},
	})

	require.NoError(t, result.Err)
	require.Equal(t, 1, calls)
	require.Equal(t, []string{"10.0.0.9", "10.0.0.9"}, seen)
}

func TestRunSeedFailure(t *testing.T) {
	t.Parallel()

	seed := NewProbe("net:identity", func(context.Context, model.FactSet) (model.Fact, error) {
		return model.Fact{}, errors.New("ip: not found")
	})
	result := NewExecutor(Options{}).Run(context.Background(), Pipeline{
		Name:   "update-identity",
		Seed:   []Probe{seed},
		Stages: []Stage{newFakeHost().installStage("x")},
	})

	var preErr *dperrors.PreconditionError
	require.ErrorAs(t, result.Err, &preErr)
	require.Equal(t, "seed", preErr.Stage)
	require.Equal(t, "net:identity", preErr.Fact)
	require.Contains(t, preErr.Reason, "ip: not found")
	require.Equal(t, dperrors.ExitPrecondition, dperrors.ExitCode(result.Err))
	require.Empty(t, result.Stages)
}

func TestRunSeedCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	seed := NewProbe("net:identity", func(context.Context, model.FactSet) (model.Fact, error) {
		cancel()
		return model.Fact{}, context.Canceled
	})
	result := NewExecutor(Options{}).Run(ctx, Pipeline{
		Name:   "update-identity",
		Seed:   []Probe{seed},
		Stages: []Stage{newFakeHost().installStage("x")},
	})

	require.ErrorIs(t, result.Err, context.Canceled)
	require.Equal(t, dperrors.ExitCancelled, dperrors.ExitCode(result.Err))
}

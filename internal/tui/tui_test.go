package tui

import (
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
)

func step(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func TestNewModelTracksDeclaredStages(t *testing.T) {
	m := NewModel("install", []string{"packages", "services", "schema"}, nil)
	require.Equal(t, 3, m.TotalStages())
	require.Zero(t, m.CompletedStages())
	require.False(t, m.IsFinished())
	require.NotNil(t, m.Init())
}

func TestModelCountsOutcomes(t *testing.T) {
	m := NewModel("install", []string{"packages", "services", "schema"}, nil)

	m, _ = step(m, StageStartMsg{Name: "packages"})
	m, _ = step(m, StageFinishedMsg{Result: model.StageResult{Stage: "packages", Status: model.StatusConverged}})
	m, _ = step(m, StageFinishedMsg{Result: model.StageResult{Stage: "services", Status: model.StatusWarned}})
	m, _ = step(m, StageFinishedMsg{Result: model.StageResult{Stage: "services", Status: model.StatusWarned}})
	m, _ = step(m, StageFinishedMsg{Result: model.StageResult{Stage: "schema", Status: model.StatusFailed, Message: "load failed"}})

	require.Equal(t, 3, m.CompletedStages())
	require.Equal(t, 1, m.changed)
	require.Equal(t, 1, m.warned, "repeated finish is counted once")
	require.Equal(t, 1, m.failed)

	m, cmd := step(m, DoneMsg{Result: model.PipelineResult{Err: errors.New("schema failed")}})
	require.True(t, m.IsFinished())
	require.NotNil(t, cmd)

	view := m.View()
	require.Contains(t, view, "dialprov • install")
	require.Contains(t, view, "schema: load failed")
	require.Contains(t, view, "3/3 stages")
	require.Contains(t, view, "Run failed: schema failed")
}

func TestCtrlCCancelsOnce(t *testing.T) {
	calls := 0
	m := NewModel("quickstart", []string{"a"}, func() { calls++ })

	m, _ = step(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	m, _ = step(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.Equal(t, 1, calls)
	require.True(t, m.cancelled)
	require.False(t, m.IsFinished(), "view waits for the pipeline to stop")
}

func TestCancelledStagesAreNotCompleted(t *testing.T) {
	m := NewModel("install", []string{"a", "b"}, nil)
	m, _ = step(m, StageFinishedMsg{Result: model.StageResult{Stage: "a", Status: model.StatusSatisfied}})
	m, _ = step(m, StageFinishedMsg{Result: model.StageResult{Stage: "b", Status: model.StatusCancelled}})
	m, _ = step(m, DoneMsg{})

	require.Equal(t, 1, m.CompletedStages())
	require.Contains(t, m.View(), "Run cancelled")
}

func TestStatusIcon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   model.StageStatus
		expected string
	}{
		{model.StatusSatisfied, "✓"},
		{model.StatusConverged, "↻"},
		{model.StatusWouldChange, "✱"},
		{model.StatusWarned, "!"},
		{model.StatusFailed, "✗"},
		{model.StatusCancelled, "⊘"},
		{"", "…"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()
			require.Contains(t, StatusIcon(tt.status), tt.expected)
		})
	}
}

func TestObserverForwardsEvents(t *testing.T) {
	var mu sync.Mutex
	var msgs []tea.Msg
	obs := NewObserver(func(msg tea.Msg) {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, msg)
	})

	var _ engine.Observer = obs
	obs.StageStarted(engine.Stage{Name: "cron"})
	obs.StageFinished(model.StageResult{Stage: "cron", Status: model.StatusSatisfied})

	require.Equal(t, []tea.Msg{
		StageStartMsg{Name: "cron"},
		StageFinishedMsg{Result: model.StageResult{Stage: "cron", Status: model.StatusSatisfied}},
	}, msgs)
}

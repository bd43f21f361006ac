// Package tui renders pipeline progress as an interactive bubbletea view.
// It is only used on a terminal; plain marker lines are used otherwise.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/tui/components"
)

// StageStartMsg indicates a stage has started.
type StageStartMsg struct {
	Name string
}

// StageFinishedMsg reports that a stage has finished.
type StageFinishedMsg struct {
	Result model.StageResult
}

// DoneMsg carries the final pipeline result.
type DoneMsg struct {
	Result model.PipelineResult
}

// Model is the bubbletea state for one pipeline run.
type Model struct {
	title     string
	stages    components.StageList
	spinner   spinner.Model
	completed int
	changed   int
	warned    int
	failed    int
	finished  bool
	cancelled bool
	err       error
	cancel    context.CancelFunc
}

// NewModel tracks the named stages. cancel is invoked on ctrl+c; the view
// keeps running until the pipeline reports DoneMsg.
func NewModel(title string, stageNames []string, cancel context.CancelFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle
	return Model{
		title:   title,
		stages:  components.NewStageList(stageNames),
		spinner: sp,
		cancel:  cancel,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// TotalStages returns the number of tracked stages.
func (m Model) TotalStages() int {
	return m.stages.Len()
}

// CompletedStages returns the number of finished stages.
func (m Model) CompletedStages() int {
	return m.completed
}

// IsFinished reports whether the pipeline has completed.
func (m Model) IsFinished() bool {
	return m.finished
}

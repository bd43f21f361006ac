package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
)

// Observer forwards engine events to a running program.
type Observer struct {
	send func(tea.Msg)
}

// NewObserver wraps a send function such as (*tea.Program).Send.
func NewObserver(send func(tea.Msg)) Observer {
	return Observer{send: send}
}

// StageStarted implements engine.Observer.
func (o Observer) StageStarted(stage engine.Stage) {
	o.send(StageStartMsg{Name: stage.Name})
}

// StageFinished implements engine.Observer.
func (o Observer) StageFinished(result model.StageResult) {
	o.send(StageFinishedMsg{Result: result})
}

// RunFunc executes the pipeline, reporting through the given observer.
type RunFunc func(obs engine.Observer) model.PipelineResult

// Run shows the progress view while run executes in the background and
// returns its result once the view has drawn the final state. Signals are
// left to the caller's context; ctrl+c inside the view calls cancel.
func Run(out io.Writer, title string, stageNames []string, cancel context.CancelFunc, run RunFunc) (model.PipelineResult, error) {
	program := tea.NewProgram(NewModel(title, stageNames, cancel), tea.WithOutput(out), tea.WithoutSignalHandler())

	done := make(chan model.PipelineResult, 1)
	go func() {
		result := run(NewObserver(program.Send))
		done <- result
		program.Send(DoneMsg{Result: result})
	}()

	if _, err := program.Run(); err != nil {
		return <-done, fmt.Errorf("progress view: %w", err)
	}
	return <-done, nil
}

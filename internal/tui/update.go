package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/dialprov/internal/model"
)

// Update handles bubbletea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.finished {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case StageStartMsg:
		m.stages = m.stages.Start(msg.Name)
		return m, nil
	case StageFinishedMsg:
		var first bool
		m.stages, first = m.stages.Finish(msg.Result)
		if first {
			m.count(msg.Result)
		}
		return m, nil
	case DoneMsg:
		m.finished = true
		m.err = msg.Result.Err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC && !m.cancelled {
			m.cancelled = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) count(result model.StageResult) {
	switch result.Status {
	case model.StatusCancelled:
		m.cancelled = true
		return
	case model.StatusConverged:
		m.changed++
	case model.StatusWarned:
		m.warned++
	case model.StatusFailed:
		m.failed++
	}
	m.completed++
}

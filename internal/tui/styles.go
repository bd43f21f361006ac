package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/dialprov/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	sectionStyle = lipgloss.NewStyle().Underline(true).MarginTop(1)
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	pendingStyle = lipgloss.NewStyle().Faint(true)
	summaryStyle = lipgloss.NewStyle().MarginTop(1).PaddingLeft(1)
)

type glyph struct {
	text  string
	style lipgloss.Style
}

var statusGlyphs = map[model.StageStatus]glyph{
	model.StatusSatisfied:   {"✓", lipgloss.NewStyle().Foreground(lipgloss.Color("42"))},
	model.StatusConverged:   {"↻", lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)},
	model.StatusWouldChange: {"✱", lipgloss.NewStyle().Foreground(lipgloss.Color("81"))},
	model.StatusWarned:      {"!", lipgloss.NewStyle().Foreground(lipgloss.Color("214"))},
	model.StatusFailed:      {"✗", lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)},
	model.StatusCancelled:   {"⊘", lipgloss.NewStyle().Foreground(lipgloss.Color("244"))},
}

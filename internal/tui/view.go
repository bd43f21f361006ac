package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/tui/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	sections := []string{titleStyle.Render("dialprov • " + m.title)}

	progress := components.NewProgress(m.stages.Len()).View(m.completed)
	sections = append(sections, sectionStyle.Render("Progress"), progress)

	if entries := m.stages.Entries(); len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Stages"), m.renderEntries(entries))
	}

	summary := components.NewSummary(components.SummaryData{
		Total:     m.stages.Len(),
		Completed: m.completed,
		Changed:   m.changed,
		Warned:    m.warned,
		Failed:    m.failed,
		Finished:  m.finished,
		Cancelled: m.cancelled,
		Err:       m.err,
	}).View()
	if summary != "" {
		sections = append(sections, summaryStyle.Render(summary))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m Model) renderEntries(entries []components.StageEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		icon := pendingStyle.Render("·")
		switch {
		case e.Running:
			icon = m.spinner.View()
		case e.Done:
			icon = StatusIcon(e.Result.Status)
		}
		line := fmt.Sprintf(" %s %s", icon, e.Name)
		if e.Done && strings.TrimSpace(e.Result.Message) != "" {
			line += ": " + e.Result.Message
		}
		if e.Result.Duration > 0 {
			line += fmt.Sprintf(" (%s)", e.Result.Duration.Truncate(10*time.Millisecond))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// StatusIcon returns the glyph for a finished stage.
func StatusIcon(status model.StageStatus) string {
	g, ok := statusGlyphs[status]
	if !ok {
		return pendingStyle.Render("…")
	}
	return g.style.Render(g.text)
}

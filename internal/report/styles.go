package report

import "github.com/charmbracelet/lipgloss"

type styles struct {
	heading lipgloss.Style
	ok      lipgloss.Style
	running lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	skip    lipgloss.Style
	detail  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		ok:      r.NewStyle().Foreground(lipgloss.Color("42")),
		running: r.NewStyle().Foreground(lipgloss.Color("33")),
		fail:    r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		skip:    r.NewStyle().Foreground(lipgloss.Color("244")),
		detail:  r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

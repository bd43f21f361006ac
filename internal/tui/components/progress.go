package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 36

// Progress renders how many stages of a pipeline have finished.
type Progress struct {
	bar   progress.Model
	total int
}

// NewProgress creates a progress bar for total stages.
func NewProgress(total int) Progress {
	bar := progress.New(progress.WithScaledGradient("#5A56E0", "#42D392"), progress.WithoutPercentage())
	bar.Width = barWidth
	return Progress{bar: bar, total: total}
}

// Ratio returns the completed fraction clamped to [0, 1].
func (p Progress) Ratio(done int) float64 {
	if p.total <= 0 {
		return 0
	}
	return math.Min(1.0, float64(done)/float64(p.total))
}

// View renders the bar followed by a done/total label.
func (p Progress) View(done int) string {
	label := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d/%d stages", done, p.total))
	return lipgloss.JoinHorizontal(lipgloss.Left, p.bar.ViewAs(p.Ratio(done)), "  ", label)
}

package components

import (
	"fmt"
	"strings"
)

// SummaryData aggregates counts for the closing summary.
type SummaryData struct {
	Total     int
	Completed int
	Changed   int
	Warned    int
	Failed    int
	Finished  bool
	Cancelled bool
	Err       error
}

// Summary renders a textual run summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary. Nothing is shown before the run finishes.
func (s Summary) View() string {
	if !s.data.Finished {
		return ""
	}

	lines := []string{fmt.Sprintf("Stages: %d/%d completed, %d changed, %d warned, %d failed",
		s.data.Completed, s.data.Total, s.data.Changed, s.data.Warned, s.data.Failed)}

	switch {
	case s.data.Cancelled:
		lines = append(lines, "Run cancelled")
	case s.data.Err != nil:
		lines = append(lines, "Run failed: "+s.data.Err.Error())
	case s.data.Warned > 0:
		lines = append(lines, "Run finished with warnings")
	default:
		lines = append(lines, "Run finished successfully")
	}

	return strings.Join(lines, "\n")
}

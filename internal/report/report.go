// Package report renders stage progress, pipeline summaries and self-test
// reports. Every progress line written to stdout starts with one of the
// fixed markers so operators can grep the output.
package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
)

// Progress markers.
const (
	MarkerOK      = "[ OK ]"
	MarkerFail    = "[FAIL]"
	MarkerWarn    = "[WARN]"
	MarkerSkip    = "[SKIP]"
	MarkerRunning = "[ .. ]"
)

// Reporter writes plain marker lines. It implements engine.Observer.
type Reporter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	styles  styles
	title   cases.Caser
}

// New creates a reporter writing to out. Colour is used only when out is a
// terminal. Verbose adds fact dumps under each stage line.
func New(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:     out,
		verbose: verbose,
		styles:  newStyles(lipgloss.NewRenderer(out)),
		title:   cases.Title(language.English),
	}
}

// StageStarted prints the running marker.
func (r *Reporter) StageStarted(stage engine.Stage) {
	line := stage.Name
	if stage.Description != "" {
		line += ": " + stage.Description
	}
	r.println(r.styles.running.Render(MarkerRunning), line)
}

// StageFinished prints the outcome marker and, in verbose mode, the facts
// the decision was based on.
func (r *Reporter) StageFinished(result model.StageResult) {
	marker := r.stageMarker(result.Status)
	line := fmt.Sprintf("%s (%s)", result.Stage, result.Status)
	if result.Message != "" {
		line += ": " + result.Message
	}
	if result.Duration > 0 {
		line += fmt.Sprintf(" [%s]", result.Duration.Truncate(time.Millisecond))
	}
	r.println(marker, line)

	if !r.verbose {
		return
	}
	r.facts("before", result.Before)
	if result.Changed {
		r.facts("after", result.After)
	}
}

// Pipeline prints the closing summary of a pipeline run.
func (r *Reporter) Pipeline(result model.PipelineResult) {
	ok, changed, warned, failed := result.Counts()
	summary := fmt.Sprintf("%s: %d ok (%d changed), %d warned, %d failed in %s",
		r.heading(result.Pipeline), ok, changed, warned, failed, result.Duration.Truncate(time.Millisecond))

	marker := r.styles.ok.Render(MarkerOK)
	switch {
	case result.Err != nil:
		marker = r.styles.fail.Render(MarkerFail)
	case warned > 0:
		marker = r.styles.warn.Render(MarkerWarn)
	}
	r.println(marker, summary)
	if result.Err != nil {
		r.println(r.styles.fail.Render(MarkerFail), result.Err.Error())
	}
}

// Checks prints every check in declaration order followed by the totals.
func (r *Reporter) Checks(report model.RunReport) {
	for _, res := range report.Results {
		marker := r.styles.ok.Render(MarkerOK)
		if !res.Passed {
			marker = r.styles.fail.Render(MarkerFail)
		}
		line := res.Name
		if res.Detail != "" {
			line += ": " + res.Detail
		}
		if r.verbose && res.Duration > 0 {
			line += fmt.Sprintf(" [%s]", res.Duration.Truncate(time.Millisecond))
		}
		r.println(marker, line)
	}

	marker := r.styles.ok.Render(MarkerOK)
	if !report.AllPassed() {
		marker = r.styles.fail.Render(MarkerFail)
	}
	r.println(marker, fmt.Sprintf("Self-test: %d/%d checks passed, %d failed", report.Passed, report.Total(), report.Failed))
}

// Diff prints a unified diff block under a heading in verbose mode.
func (r *Reporter) Diff(heading, diff string) {
	if !r.verbose || strings.TrimSpace(diff) == "" {
		return
	}
	r.println(r.styles.skip.Render(MarkerSkip), heading)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		fmt.Fprintln(r.out, "    "+r.styles.detail.Render(line))
	}
}

// Notice prints a free-form line with the given marker.
func (r *Reporter) Notice(marker, msg string) {
	r.println(r.styleFor(marker).Render(marker), msg)
}

func (r *Reporter) facts(label string, facts model.FactSet) {
	if facts.Len() == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "    %s\n", r.styles.detail.Render(label+":"))
	for _, f := range facts.Strings() {
		fmt.Fprintf(r.out, "      %s\n", r.styles.detail.Render(f))
	}
}

func (r *Reporter) heading(name string) string {
	return r.styles.heading.Render(r.title.String(strings.ReplaceAll(name, "-", " ")))
}

func (r *Reporter) stageMarker(status model.StageStatus) string {
	switch status {
	case model.StatusSatisfied, model.StatusConverged:
		return r.styles.ok.Render(MarkerOK)
	case model.StatusWarned:
		return r.styles.warn.Render(MarkerWarn)
	case model.StatusFailed:
		return r.styles.fail.Render(MarkerFail)
	default:
		return r.styles.skip.Render(MarkerSkip)
	}
}

func (r *Reporter) styleFor(marker string) lipgloss.Style {
	switch marker {
	case MarkerOK:
		return r.styles.ok
	case MarkerFail:
		return r.styles.fail
	case MarkerWarn:
		return r.styles.warn
	case MarkerRunning:
		return r.styles.running
	default:
		return r.styles.skip
	}
}

func (r *Reporter) println(marker, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", marker, line)
}

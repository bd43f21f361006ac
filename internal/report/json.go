package report

import (
	"encoding/json"
	"io"

	"github.com/alexisbeaulieu97/dialprov/internal/model"
)

type jsonCheck struct {
	Name     string  `json:"name"`
	Passed   bool    `json:"passed"`
	Detail   string  `json:"detail,omitempty"`
	Duration float64 `json:"duration_seconds"`
}

type jsonReport struct {
	RunID    string      `json:"run_id,omitempty"`
	Total    int         `json:"total"`
	Passed   int         `json:"passed"`
	Failed   int         `json:"failed"`
	ExitCode int         `json:"exit_code"`
	Duration float64     `json:"duration_seconds"`
	Results  []jsonCheck `json:"results"`
}

type jsonStage struct {
	Stage    string   `json:"stage"`
	Status   string   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Changed  bool     `json:"changed"`
	Facts    []string `json:"facts,omitempty"`
	Error    string   `json:"error,omitempty"`
	Duration float64  `json:"duration_seconds"`
}

type jsonPipeline struct {
	RunID    string      `json:"run_id,omitempty"`
	Pipeline string      `json:"pipeline"`
	Error    string      `json:"error,omitempty"`
	Duration float64     `json:"duration_seconds"`
	Stages   []jsonStage `json:"stages"`
	SelfTest *jsonReport `json:"selftest,omitempty"`
}

// WriteChecksJSON encodes a self-test report.
func WriteChecksJSON(w io.Writer, runID string, report model.RunReport) error {
	return encode(w, checksDocument(runID, report))
}

func checksDocument(runID string, report model.RunReport) jsonReport {
	out := jsonReport{
		RunID:    runID,
		Total:    report.Total(),
		Passed:   report.Passed,
		Failed:   report.Failed,
		ExitCode: report.ExitCode(),
		Duration: report.Duration.Seconds(),
		Results:  make([]jsonCheck, len(report.Results)),
	}
	for i, r := range report.Results {
		out.Results[i] = jsonCheck{Name: r.Name, Passed: r.Passed, Detail: r.Detail, Duration: r.Duration.Seconds()}
	}
	return out
}

// WritePipelineJSON encodes a pipeline result. A non-nil selftest report,
// captured from quickstart's last stage, is embedded under "selftest".
func WritePipelineJSON(w io.Writer, runID string, result model.PipelineResult, selftest *model.RunReport) error {
	out := jsonPipeline{
		RunID:    runID,
		Pipeline: result.Pipeline,
		Duration: result.Duration.Seconds(),
		Stages:   make([]jsonStage, len(result.Stages)),
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}
	for i, s := range result.Stages {
		stage := jsonStage{
			Stage:    s.Stage,
			Status:   string(s.Status),
			Message:  s.Message,
			Changed:  s.Changed,
			Facts:    s.Before.Strings(),
			Duration: s.Duration.Seconds(),
		}
		if s.Error != nil {
			stage.Error = s.Error.Error()
		}
		out.Stages[i] = stage
	}
	if selftest != nil {
		doc := checksDocument("", *selftest)
		out.SelfTest = &doc
	}
	return encode(w, out)
}

func encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

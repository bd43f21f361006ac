package model

import (
	"time"
)

// StageStatus is the reported outcome of a single stage run.
type StageStatus string

const (
	// StatusSatisfied means the guard found no drift; nothing was done.
	StatusSatisfied StageStatus = "already_satisfied"
	// StatusConverged means the action ran and the post-probe confirmed it.
	StatusConverged StageStatus = "converged"
	// StatusWouldChange is reported in dry-run mode when drift was found.
	StatusWouldChange StageStatus = "would_change"
	// StatusWarned marks a failed warn-and-continue stage.
	StatusWarned StageStatus = "warned"
	// StatusFailed marks a fatal stage failure.
	StatusFailed StageStatus = "failed"
	// StatusCancelled marks a stage that was never started because the run
	// was cancelled.
	StatusCancelled StageStatus = "cancelled"
)

// StageResult captures the outcome of running one stage.
type StageResult struct {
	Stage    string
	Status   StageStatus
	Message  string
	Before   FactSet
	After    FactSet
	Changed  bool
	Detail   string
	Error    error
	Duration time.Duration
}

// IsSuccess returns true when the stage leaves the host in the desired state.
func (r StageResult) IsSuccess() bool {
	switch r.Status {
	case StatusSatisfied, StatusConverged, StatusWouldChange:
		return true
	default:
		return false
	}
}

// PipelineResult aggregates the stage results of a pipeline run in
// execution order.
type PipelineResult struct {
	Pipeline string
	Stages   []StageResult
	Err      error
	Duration time.Duration
}

// Counts tallies stage outcomes.
func (p PipelineResult) Counts() (ok, changed, warned, failed int) {
	for _, s := range p.Stages {
		switch s.Status {
		case StatusSatisfied, StatusWouldChange:
			ok++
		case StatusConverged:
			ok++
			changed++
		case StatusWarned:
			warned++
		case StatusFailed:
			failed++
		}
	}
	return ok, changed, warned, failed
}

// Succeeded reports whether the pipeline finished without a fatal failure.
func (p PipelineResult) Succeeded() bool {
	return p.Err == nil
}

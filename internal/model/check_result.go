package model

import "time"

// CheckResult is the outcome of one self-test check.
type CheckResult struct {
	Name     string
	Passed   bool
	Detail   string
	Duration time.Duration
}

// RunReport aggregates check results for one verifier invocation. Results
// are kept in check declaration order.
type RunReport struct {
	Results  []CheckResult
	Passed   int
	Failed   int
	Duration time.Duration
}

// NewRunReport builds a report from results already in declaration order.
func NewRunReport(results []CheckResult) RunReport {
	report := RunReport{Results: make([]CheckResult, 0, len(results))}
	for _, r := range results {
		report.Add(r)
	}
	return report
}

// Add appends a result and updates counters.
func (r *RunReport) Add(result CheckResult) {
	r.Results = append(r.Results, result)
	if result.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
}

// Total returns the number of rendered results.
func (r RunReport) Total() int {
	return len(r.Results)
}

// AllPassed returns true when no check failed.
func (r RunReport) AllPassed() bool {
	return r.Failed == 0
}

// ExitCode returns 1 iff at least one check failed.
func (r RunReport) ExitCode() int {
	if r.Failed > 0 {
		return 1
	}
	return 0
}

// FailedNames lists the names of failed checks in declaration order.
func (r RunReport) FailedNames() []string {
	var names []string
	for _, res := range r.Results {
		if !res.Passed {
			names = append(names, res.Name)
		}
	}
	return names
}

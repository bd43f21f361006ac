// Package verify runs a declared battery of read-only checks and aggregates
// them into a report. Every check runs; failures, errors and panics are
// isolated to the check that caused them.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
)

// CheckFunc evaluates one check. A nil error means passed; detail is shown
// either way.
type CheckFunc func(ctx context.Context) (detail string, err error)

// Check is a named, read-only verification. Checks sharing a Resource key
// never run at the same time.
type Check struct {
	Name     string
	Resource string
	Timeout  time.Duration
	Fn       CheckFunc
}

// Observer receives check events. CheckFinished may be called from several
// goroutines when the harness runs in parallel.
type Observer interface {
	CheckStarted(name string)
	CheckFinished(result model.CheckResult)
}

type nopObserver struct{}

func (nopObserver) CheckStarted(string)             {}
func (nopObserver) CheckFinished(model.CheckResult) {}

// Options configures a Harness.
type Options struct {
	Parallel int
	Logger   *logger.Logger
	Observer Observer
}

// Harness runs checks.
type Harness struct {
	checks   []Check
	parallel int
	logger   *logger.Logger
	observer Observer
}

// NewHarness validates the battery: names must be unique and non-empty.
func NewHarness(checks []Check, opts Options) (*Harness, error) {
	seen := make(map[string]struct{}, len(checks))
	for _, c := range checks {
		if c.Name == "" || c.Fn == nil {
			return nil, errors.New("every check needs a name and a function")
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("check %q declared twice", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Harness{checks: append([]Check(nil), checks...), parallel: parallel, logger: log, observer: observer}, nil
}

// Len returns the number of declared checks.
func (h *Harness) Len() int {
	return len(h.checks)
}

// Names lists check names in declaration order.
func (h *Harness) Names() []string {
	names := make([]string, len(h.checks))
	for i, c := range h.checks {
		names[i] = c.Name
	}
	return names
}

// Run executes every check and returns the report in declaration order. If
// ctx is cancelled, checks not yet started are recorded as failed and the
// context error is returned alongside the complete report.
func (h *Harness) Run(ctx context.Context) (model.RunReport, error) {
	start := time.Now()
	results := make([]model.CheckResult, len(h.checks))

	slots := make(chan struct{}, h.parallel)
	locks := newResourceLocks()
	var wg sync.WaitGroup

	for i, check := range h.checks {
		slots <- struct{}{}
		if ctx.Err() != nil {
			<-slots
			results[i] = model.CheckResult{Name: check.Name, Detail: "not run: cancelled"}
			h.observer.CheckFinished(results[i])
			continue
		}

		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			defer func() { <-slots }()

			unlock := locks.lock(check.Resource)
			defer unlock()

			h.observer.CheckStarted(check.Name)
			results[i] = h.runOne(ctx, check)
			h.observer.CheckFinished(results[i])
		}(i, check)
	}
	wg.Wait()

	report := model.NewRunReport(results)
	report.Duration = time.Since(start)
	h.logger.WithFields(map[string]any{
		"passed":   report.Passed,
		"failed":   report.Failed,
		"total":    report.Total(),
		"parallel": h.parallel,
	}).Info("self-test finished")
	return report, ctx.Err()
}

func (h *Harness) runOne(ctx context.Context, check Check) (result model.CheckResult) {
	start := time.Now()
	result.Name = check.Name
	log := h.logger.With("check", check.Name)

	defer func() {
		if r := recover(); r != nil {
			result.Passed = false
			result.Detail = fmt.Sprintf("internal error: %v", r)
			log.Error(fmt.Errorf("%v", r), "check panicked")
		}
		result.Duration = time.Since(start)
	}()

	checkCtx := ctx
	if check.Timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, check.Timeout)
		defer cancel()
	}

	detail, err := check.Fn(checkCtx)
	result.Detail = detail
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && check.Timeout > 0 {
			err = fmt.Errorf("timed out after %s", check.Timeout)
		}
		if detail == "" {
			result.Detail = err.Error()
		} else {
			result.Detail = detail + ": " + err.Error()
		}
		log.WithFields(map[string]any{"detail": result.Detail}).Debug("check failed")
		return result
	}
	result.Passed = true
	return result
}

type resourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{locks: map[string]*sync.Mutex{}}
}

func (r *resourceLocks) lock(key string) func() {
	if key == "" {
		return func() {}
	}
	r.mu.Lock()
	m, ok := r.locks[key]
	if !ok {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	r.mu.Unlock()
	m.Lock()
	return m.Unlock
}

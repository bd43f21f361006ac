package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/model"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

var stageNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Policy decides what a stage failure does to the pipeline.
type Policy int

const (
	// PolicyFatal halts the pipeline on failure.
	PolicyFatal Policy = iota
	// PolicyWarn records the failure and lets the pipeline continue.
	PolicyWarn
)

func (p Policy) String() string {
	if p == PolicyWarn {
		return "warn"
	}
	return "fatal"
}

// ProbeFunc captures one fact. It must not mutate anything and must report
// the absence of the thing it queries as a fact rather than an error.
type ProbeFunc func(ctx context.Context, env model.FactSet) (model.Fact, error)

// Probe is a named, optionally time-bounded ProbeFunc.
type Probe struct {
	Key     string
	Timeout time.Duration
	Fn      ProbeFunc
}

// NewProbe builds a probe without a timeout.
func NewProbe(key string, fn ProbeFunc) Probe {
	return Probe{Key: key, Fn: fn}
}

// WithTimeout returns a copy of the probe bounded by d.
func (p Probe) WithTimeout(d time.Duration) Probe {
	p.Timeout = d
	return p
}

// Capture runs the probe, applying its timeout. A deadline hit inside the
// probe is reported as a TimeoutError.
func (p Probe) Capture(ctx context.Context, env model.FactSet) (model.Fact, error) {
	if p.Fn == nil {
		return model.Fact{}, fmt.Errorf("probe %s has no function", p.Key)
	}

	probeCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	fact, err := p.Fn(probeCtx, env)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return model.Fact{}, fmt.Errorf("probe %s: %w", p.Key, dperrors.NewTimeoutError(p.Key, p.Timeout))
		}
		return model.Fact{}, fmt.Errorf("probe %s: %w", p.Key, err)
	}
	if fact.Key == "" {
		fact.Key = p.Key
	}
	return fact, nil
}

// Guard inspects captured facts and reports drift from the desired state
// together with a reason naming the offending fact.
type Guard func(facts model.FactSet) (drift bool, reason string)

// ActionFunc mutates external state so the guard stops reporting drift. It
// receives the run environment and the facts that triggered it, and must be
// safe to invoke again after success.
type ActionFunc func(ctx context.Context, env, facts model.FactSet) error

// Action is a named side effect.
type Action struct {
	Name string
	Fn   ActionFunc
}

// Stage pairs probes with a guarded action. A stage without an action is a
// precondition: drift is reported through OnDrift, which defaults to a
// PreconditionError.
type Stage struct {
	Name        string
	Description string
	Probes      []Probe
	Guard       Guard
	Action      *Action
	Policy      Policy
	OnDrift     func(facts model.FactSet, reason string) error
}

// IsPrecondition reports whether the stage only checks state.
func (s Stage) IsPrecondition() bool {
	return s.Action == nil
}

// Validate ensures the stage is well formed.
func (s Stage) Validate() error {
	if !stageNamePattern.MatchString(s.Name) {
		return fmt.Errorf("stage name %q must match %s", s.Name, stageNamePattern)
	}
	if len(s.Probes) == 0 {
		return fmt.Errorf("stage %s requires at least one probe", s.Name)
	}
	if s.Guard == nil {
		return fmt.Errorf("stage %s requires a guard", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Probes))
	for _, p := range s.Probes {
		if p.Key == "" || p.Fn == nil {
			return fmt.Errorf("stage %s has an incomplete probe", s.Name)
		}
		if _, dup := seen[p.Key]; dup {
			return fmt.Errorf("stage %s declares probe %s twice", s.Name, p.Key)
		}
		seen[p.Key] = struct{}{}
	}
	if s.Action != nil && (s.Action.Fn == nil || s.Action.Name == "") {
		return fmt.Errorf("stage %s has an incomplete action", s.Name)
	}
	return nil
}

func (s Stage) driftError(facts model.FactSet, reason string) error {
	if s.OnDrift != nil {
		return s.OnDrift(facts, reason)
	}
	return dperrors.NewPreconditionError(s.Name, joinFacts(facts), reason)
}

// RequirePresent is a guard reporting drift while any key is absent or false.
func RequirePresent(keys ...string) Guard {
	return func(facts model.FactSet) (bool, string) {
		for _, key := range keys {
			if !facts.Present(key) {
				f, _ := facts.Get(key)
				if f.Key == "" {
					return true, fmt.Sprintf("%s not observed", key)
				}
				return true, fmt.Sprintf("%s is %s", key, f.Value())
			}
		}
		return false, ""
	}
}

// RequireEmpty is a guard reporting drift while a set fact has members.
func RequireEmpty(key string) Guard {
	return func(facts model.FactSet) (bool, string) {
		f, ok := facts.Get(key)
		if !ok {
			return true, fmt.Sprintf("%s not observed", key)
		}
		if len(f.Members) > 0 {
			return true, f.String()
		}
		return false, ""
	}
}

// RequireAtLeast is a guard reporting drift while an integer fact is below
// least.
func RequireAtLeast(key string, least int64) Guard {
	return func(facts model.FactSet) (bool, string) {
		f, ok := facts.Get(key)
		if !ok {
			return true, fmt.Sprintf("%s not observed", key)
		}
		if f.Int < least {
			return true, fmt.Sprintf("%s below required %d", f.String(), least)
		}
		return false, ""
	}
}

// AllGuards combines guards; the first drifting guard wins.
func AllGuards(guards ...Guard) Guard {
	return func(facts model.FactSet) (bool, string) {
		for _, g := range guards {
			if drift, reason := g(facts); drift {
				return true, reason
			}
		}
		return false, ""
	}
}

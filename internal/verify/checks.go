package verify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// FromFacts builds a check that captures probes and judges the facts. The
// predicate returns pass/fail and a detail line.
func FromFacts(name string, probes []engine.Probe, judge func(model.FactSet) (bool, string)) Check {
	return Check{
		Name: name,
		Fn: func(ctx context.Context) (string, error) {
			facts := model.FactSet{}
			for _, p := range probes {
				f, err := p.Capture(ctx, model.FactSet{})
				if err != nil {
					return "", err
				}
				facts = facts.With(f)
			}
			ok, detail := judge(facts)
			if !ok {
				if detail == "" {
					detail = strings.Join(facts.Strings(), ", ")
				}
				return "", errors.New(detail)
			}
			return detail, nil
		},
	}
}

// FactTrue passes when a single probe reports presence.
func FactTrue(name string, probe engine.Probe) Check {
	return FromFacts(name, []engine.Probe{probe}, func(facts model.FactSet) (bool, string) {
		f, _ := facts.Get(probe.Key)
		if !f.Present {
			return false, f.String()
		}
		return true, ""
	})
}

// FactAtLeast passes when an integer probe reaches least.
func FactAtLeast(name string, probe engine.Probe, least int64, unit string) Check {
	return FromFacts(name, []engine.Probe{probe}, func(facts model.FactSet) (bool, string) {
		v := facts.Int(probe.Key)
		if v < least {
			return false, fmt.Sprintf("%d %s, need %d", v, unit, least)
		}
		return true, fmt.Sprintf("%d %s", v, unit)
	})
}

// AllOf passes only when every part passes. Every part is evaluated so the
// detail names all failing parts.
func AllOf(name string, parts ...Check) Check {
	return Check{
		Name: name,
		Fn: func(ctx context.Context) (string, error) {
			var failed []string
			for _, p := range parts {
				if _, err := p.Fn(ctx); err != nil {
					failed = append(failed, p.Name+": "+err.Error())
				}
			}
			if len(failed) > 0 {
				return "", errors.New(strings.Join(failed, "; "))
			}
			return "", nil
		},
	}
}

// WithResource returns c serialized on key.
func WithResource(c Check, key string) Check {
	c.Resource = key
	return c
}

// WithTimeout returns c bounded by d.
func WithTimeout(c Check, d time.Duration) Check {
	c.Timeout = d
	return c
}

// FileExists verifies a file or directory exists.
func FileExists(name string, host ports.Host, path string) Check {
	return Check{
		Name: name,
		Fn: func(context.Context) (string, error) {
			ok, err := host.FileExists(path)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", fmt.Errorf("path %s does not exist", path)
			}
			return path, nil
		},
	}
}

// PathContains verifies that a file matches pattern.
func PathContains(name string, host ports.Host, path, pattern string) Check {
	re, compileErr := regexp.Compile(pattern)
	return Check{
		Name: name,
		Fn: func(context.Context) (string, error) {
			if compileErr != nil {
				return "", compileErr
			}
			data, err := host.ReadFile(path)
			if err != nil {
				return "", err
			}
			if !re.Match(data) {
				return "", fmt.Errorf("pattern %q not found in %s", pattern, path)
			}
			return "", nil
		},
	}
}

// FailedKey is the fact listing failed check names when a battery runs as
// a stage.
const FailedKey = "selftest:failed"

// Stage runs the harness as the final stage of a pipeline. Failed checks
// surface as a CheckFailure through OnDrift; onReport receives the full
// report for rendering.
func Stage(name string, h *Harness, onReport func(model.RunReport), onDrift func(model.FactSet, string) error) engine.Stage {
	probe := engine.NewProbe(FailedKey, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		report, err := h.Run(ctx)
		if onReport != nil {
			onReport(report)
		}
		if err != nil {
			return model.Fact{}, err
		}
		return model.Set(FailedKey, report.FailedNames()), nil
	})
	return engine.Stage{
		Name:        name,
		Description: fmt.Sprintf("run %d self-test checks", h.Len()),
		Probes:      []engine.Probe{probe},
		Guard:       engine.RequireEmpty(FailedKey),
		OnDrift:     onDrift,
	}
}

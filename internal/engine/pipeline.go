package engine

import (
	"fmt"
)

// Pipeline is an ordered list of stages representing one mode's
// responsibility. Seed probes are captured once per run and handed to every
// stage as its environment.
type Pipeline struct {
	Name   string
	Seed   []Probe
	Stages []Stage
}

// Validate checks the pipeline shape before anything is probed.
func (p Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline %s has no stages", p.Name)
	}

	seen := make(map[string]struct{}, len(p.Stages))
	for _, stage := range p.Stages {
		if err := stage.Validate(); err != nil {
			return fmt.Errorf("pipeline %s: %w", p.Name, err)
		}
		if _, dup := seen[stage.Name]; dup {
			return fmt.Errorf("pipeline %s: duplicate stage %s", p.Name, stage.Name)
		}
		seen[stage.Name] = struct{}{}
	}

	seeds := make(map[string]struct{}, len(p.Seed))
	for _, probe := range p.Seed {
		if probe.Key == "" || probe.Fn == nil {
			return fmt.Errorf("pipeline %s has an incomplete seed probe", p.Name)
		}
		if _, dup := seeds[probe.Key]; dup {
			return fmt.Errorf("pipeline %s: duplicate seed %s", p.Name, probe.Key)
		}
		seeds[probe.Key] = struct{}{}
	}
	return nil
}

// StageNames lists stage names in execution order.
func (p Pipeline) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}

// Concat joins pipelines into one, keeping stage order. Seed probes sharing
// a key are captured once.
func Concat(name string, pipelines ...Pipeline) Pipeline {
	out := Pipeline{Name: name}
	seeds := make(map[string]struct{})
	for _, p := range pipelines {
		for _, probe := range p.Seed {
			if _, ok := seeds[probe.Key]; ok {
				continue
			}
			seeds[probe.Key] = struct{}{}
			out.Seed = append(out.Seed, probe)
		}
		out.Stages = append(out.Stages, p.Stages...)
	}
	return out
}

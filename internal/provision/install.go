package provision

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/probes"
)

const (
	missingPackagesKey = "packages:missing"
	schemaKeyPrefix    = "db:schema:"
)

// Install brings packages, services and the database schema into place in
// dependency order: packages, boot enablement, database, schema, remaining
// services. Nothing here is transactional; a failed run is recovered by
// running install again.
func (p *Provisioner) Install() engine.Pipeline {
	svc := p.profile.Services
	stages := []engine.Stage{p.packagesStage()}
	if len(svc.Enable) > 0 {
		stages = append(stages, p.enabledStage())
	}
	stages = append(stages,
		p.runningStage("database-running", "start the database", []string{svc.Database}),
		p.schemaStage(),
		p.runningStage("services-running", "start the web and telephony services", p.applicationUnits()),
	)
	return engine.Pipeline{Name: string(ModeInstall), Stages: stages}
}

func (p *Provisioner) packagesStage() engine.Stage {
	pm := p.deps.Packages
	names := p.profile.Packages
	return engine.Stage{
		Name:        "base-packages",
		Description: fmt.Sprintf("install %d base packages with %s", len(names), pm.Name()),
		Probes:      []engine.Probe{probes.PackagesMissing(pm, missingPackagesKey, names)},
		Guard:       engine.RequireEmpty(missingPackagesKey),
		Action: &engine.Action{Name: "install-packages", Fn: func(ctx context.Context, _, facts model.FactSet) error {
			return pm.Install(ctx, facts.Members(missingPackagesKey)...)
		}},
	}
}

func (p *Provisioner) enabledStage() engine.Stage {
	sm := p.deps.Services
	units := p.profile.Services.Enable
	probeList := make([]engine.Probe, len(units))
	keys := make([]string, len(units))
	for i, u := range units {
		probeList[i] = probes.ServiceEnabled(sm, u)
		keys[i] = probes.EnabledKey(u)
	}
	return engine.Stage{
		Name:        "services-enabled",
		Description: fmt.Sprintf("enable %d services at boot", len(units)),
		Probes:      probeList,
		Guard:       engine.RequirePresent(keys...),
		Action: &engine.Action{Name: "enable-services", Fn: func(ctx context.Context, _, facts model.FactSet) error {
			for _, u := range units {
				if facts.Present(probes.EnabledKey(u)) {
					continue
				}
				if err := sm.Enable(ctx, u); err != nil {
					return err
				}
			}
			return nil
		}},
	}
}

func (p *Provisioner) runningStage(name, description string, units []string) engine.Stage {
	sm := p.deps.Services
	probeList := make([]engine.Probe, len(units))
	keys := make([]string, len(units))
	for i, u := range units {
		probeList[i] = probes.ServiceActive(sm, u)
		keys[i] = probes.ServiceKey(u)
	}
	return engine.Stage{
		Name:        name,
		Description: description,
		Probes:      probeList,
		Guard:       engine.RequirePresent(keys...),
		Action: &engine.Action{Name: "start-services", Fn: func(ctx context.Context, _, facts model.FactSet) error {
			for _, u := range units {
				if facts.Present(probes.ServiceKey(u)) {
					continue
				}
				if err := sm.Start(ctx, u); err != nil {
					return err
				}
			}
			return nil
		}},
	}
}

// applicationUnits are the enabled units other than the database, with the
// web and telephony services first.
func (p *Provisioner) applicationUnits() []string {
	svc := p.profile.Services
	units := []string{svc.Web, svc.Telephony}
	seen := map[string]struct{}{svc.Database: {}, svc.Web: {}, svc.Telephony: {}}
	for _, u := range svc.Enable {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		units = append(units, u)
	}
	return units
}

// schemaQuery counts rows of the marker table; a missing database or table
// reads as absent.
func (p *Provisioner) schemaQuery() string {
	return "SELECT COUNT(*) FROM " + p.profile.Database.SchemaTable
}

func (p *Provisioner) schemaProbe() engine.Probe {
	key := schemaKeyPrefix + p.profile.Database.SchemaTable
	return probes.StoreScalar(p.deps.Store, key, p.schemaQuery())
}

func (p *Provisioner) schemaStage() engine.Stage {
	db := p.profile.Database
	return engine.Stage{
		Name:        "database-schema",
		Description: fmt.Sprintf("load the %s schema", db.Name),
		Probes:      []engine.Probe{p.schemaProbe()},
		Guard:       engine.RequirePresent(schemaKeyPrefix + db.SchemaTable),
		Action: &engine.Action{Name: "load-schema", Fn: func(ctx context.Context, _, _ model.FactSet) error {
			res, err := p.deps.Runner.Run(ctx, db.Loader[0], db.Loader[1:]...)
			if err != nil {
				return err
			}
			if !res.Success() {
				return fmt.Errorf("schema loader exited %d: %s", res.ExitCode, res.PrimaryOutput())
			}
			return nil
		}},
	}
}

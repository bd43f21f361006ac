package provision

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/identity"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/probes"
	"github.com/alexisbeaulieu97/dialprov/internal/summary"
)

const serverRecordKey = "db:server_record"

// adminPasswordStatement stores the generated web admin password.
const adminPasswordStatement = "UPDATE vicidial_users SET pass = ? WHERE user = ?"

// Postinstall registers the server row, the scheduled jobs and the
// first-run summary, then propagates the detected address everywhere.
func (p *Provisioner) Postinstall() engine.Pipeline {
	stages := p.identity.Stages()
	detect, primary, propagate := stages[0], stages[1], stages[2]

	out := []engine.Stage{detect}
	if p.profile.Identity.Primary.FilterColumn != "" {
		out = append(out, p.serverRecordStage())
	}
	out = append(out,
		p.cron.Stage("cron-jobs"),
		p.summary.Stage("first-run-summary"),
		primary,
		propagate,
	)
	return engine.Pipeline{
		Name:   string(ModePostinstall),
		Seed:   []engine.Probe{p.identitySeed()},
		Stages: out,
	}
}

// UpdateIdentity re-detects the address and rewrites every target.
func (p *Provisioner) UpdateIdentity() engine.Pipeline {
	return p.identity.Pipeline(string(ModeUpdateIdentity), p.deps.Router, p.profile.Identity.ProbeDestination)
}

// EnableSchedule appends missing scheduled jobs.
func (p *Provisioner) EnableSchedule() engine.Pipeline {
	return engine.Pipeline{
		Name:   string(ModeEnableSchedule),
		Stages: []engine.Stage{p.cron.Stage("cron-jobs")},
	}
}

func (p *Provisioner) identitySeed() engine.Probe {
	return identity.SeedProbe(p.deps.Router, p.profile.Identity.ProbeDestination)
}

// serverRecordStage inserts the primary identity row for this server when
// the schema has none. An existing row is never modified here.
func (p *Provisioner) serverRecordStage() engine.Stage {
	primary := p.profile.IdentityPrimary()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", primary.Column, primary.Table, primary.FilterCol)
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)", primary.Table, primary.FilterCol, primary.Column)

	return engine.Stage{
		Name:        "server-record",
		Description: fmt.Sprintf("register %s %s", primary.Table, primary.FilterValue),
		Probes:      []engine.Probe{probes.StoreScalar(p.deps.Store, serverRecordKey, query, primary.FilterValue)},
		Guard:       engine.RequirePresent(serverRecordKey),
		Action: &engine.Action{Name: "insert-server-record", Fn: func(ctx context.Context, env, _ model.FactSet) error {
			_, err := p.deps.Store.Exec(ctx, insert, primary.FilterValue, env.Str(probes.IdentityKey))
			return err
		}},
	}
}

func (p *Provisioner) applyCredentials(ctx context.Context, creds summary.Credentials) error {
	rows, err := p.deps.Store.Exec(ctx, adminPasswordStatement, creds.AdminPassword, creds.AdminUser)
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("admin user %s not found", creds.AdminUser)
	}
	return nil
}

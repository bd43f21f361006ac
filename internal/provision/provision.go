// Package provision declares the fixed pipelines (preflight, install,
// postinstall, update-identity, enable-schedule, quickstart) and the
// self-test battery for a VICIdial host described by a profile.
package provision

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/dialprov/internal/config"
	"github.com/alexisbeaulieu97/dialprov/internal/cronset"
	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/identity"
	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
	"github.com/alexisbeaulieu97/dialprov/internal/summary"
)

// Mode selects what a run does.
type Mode string

const (
	ModePreflight      Mode = "preflight"
	ModeInstall        Mode = "install"
	ModePostinstall    Mode = "postinstall"
	ModeUpdateIdentity Mode = "update-identity"
	ModeEnableSchedule Mode = "enable-schedule"
	ModeSelfTest       Mode = "selftest"
	ModeQuickstart     Mode = "quickstart"
)

var aliases = map[string]Mode{
	"update-ip":    ModeUpdateIdentity,
	"enable-crons": ModeEnableSchedule,
}

// Modes lists every mode in documentation order.
func Modes() []Mode {
	return []Mode{ModePreflight, ModeInstall, ModePostinstall, ModeUpdateIdentity, ModeEnableSchedule, ModeSelfTest, ModeQuickstart}
}

// Aliases returns the legacy names accepted for m.
func (m Mode) Aliases() []string {
	var out []string
	for name, target := range aliases {
		if target == m {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// ParseMode resolves a mode name or alias.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if m, ok := aliases[name]; ok {
		return m, nil
	}
	for _, m := range Modes() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", name)
}

// Mutating reports whether the mode may change the host and therefore
// needs root.
func (m Mode) Mutating() bool {
	switch m {
	case ModeInstall, ModePostinstall, ModeUpdateIdentity, ModeEnableSchedule, ModeQuickstart:
		return true
	default:
		return false
	}
}

// Deps are the external collaborators a Provisioner drives. Queue may be
// nil when the profile declares no ops queue.
type Deps struct {
	Host     ports.Host
	Packages ports.PackageManager
	Services ports.ServiceManager
	Store    ports.Store
	Crontab  ports.SchedulerTable
	HTTP     ports.HTTPProber
	Router   ports.Router
	Queue    ports.QueueProber
	Runner   ports.CommandRunner
	Logger   *logger.Logger
}

func (d Deps) validate() error {
	var missing []string
	for name, set := range map[string]bool{
		"host":     d.Host != nil,
		"packages": d.Packages != nil,
		"services": d.Services != nil,
		"store":    d.Store != nil,
		"crontab":  d.Crontab != nil,
		"http":     d.HTTP != nil,
		"router":   d.Router != nil,
		"runner":   d.Runner != nil,
	} {
		if !set {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("provisioner is missing collaborators: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Provisioner builds pipelines and checks from one profile.
type Provisioner struct {
	profile  *config.Profile
	deps     Deps
	log      *logger.Logger
	cron     *cronset.Reconciler
	identity *identity.Reconciler
	summary  *summary.Writer
}

// New wires the reconcilers for a profile.
func New(profile *config.Profile, deps Deps) (*Provisioner, error) {
	if profile == nil {
		return nil, errors.New("profile is required")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	cron, err := cronset.NewReconciler(deps.Crontab, profile.CronJobs(), log.With("component", "cronset"))
	if err != nil {
		return nil, err
	}

	ident, err := identity.NewReconciler(identity.Options{
		Store:    deps.Store,
		Host:     deps.Host,
		Services: deps.Services,
		Logger:   log.With("component", "identity"),
		Primary:  profile.IdentityPrimary(),
		Columns:  profile.IdentityColumns(),
		Files:    profile.IdentityFiles(),
		Service:  profile.Services.Telephony,
		Wait:     profile.Identity.RestartWait,
	})
	if err != nil {
		return nil, err
	}

	p := &Provisioner{profile: profile, deps: deps, log: log, cron: cron, identity: ident}
	p.summary = &summary.Writer{
		Host:      deps.Host,
		Path:      profile.Summary.Path,
		AdminUser: profile.Summary.AdminUser,
		Database:  profile.Database.Name,
		DBUser:    profile.Summary.DBUser,
		OpsURL:    profile.Summary.OpsURL,
		Apply:     p.applyCredentials,
		Logger:    log.With("component", "summary"),
	}
	return p, nil
}

// Cron exposes the cron reconciler so callers can observe table diffs.
func (p *Provisioner) Cron() *cronset.Reconciler {
	return p.cron
}

// Pipeline returns the pipeline for a mutating or preflight mode.
// Quickstart needs the self-test stage and is built by Quickstart.
func (p *Provisioner) Pipeline(mode Mode) (engine.Pipeline, error) {
	switch mode {
	case ModePreflight:
		return p.Preflight(), nil
	case ModeInstall:
		return p.Install(), nil
	case ModePostinstall:
		return p.Postinstall(), nil
	case ModeUpdateIdentity:
		return p.UpdateIdentity(), nil
	case ModeEnableSchedule:
		return p.EnableSchedule(), nil
	default:
		return engine.Pipeline{}, fmt.Errorf("mode %s has no stage pipeline", mode)
	}
}

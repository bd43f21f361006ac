package provision

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/dialprov/internal/cronset"
	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/probes"
	"github.com/alexisbeaulieu97/dialprov/internal/verify"
	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

// Resource keys serializing checks that share a collaborator.
const (
	resourceAsteriskCLI = "asterisk-cli"
	resourceCrontab     = "crontab"
	resourceStore       = "store"
)

// Checks declares the self-test battery in report order.
func (p *Provisioner) Checks() []verify.Check {
	prof := p.profile
	d := p.deps
	httpTimeout := prof.Timeouts.HTTP
	var checks []verify.Check

	for _, unit := range p.serviceUnits() {
		checks = append(checks, verify.FactTrue("service "+unit+" active", probes.ServiceActive(d.Services, unit)))
	}

	for _, port := range prof.Ports {
		checks = append(checks, verify.FactTrue(
			fmt.Sprintf("port %d/%s listening", port.Port, port.Proto),
			probes.PortListening(d.Host, port.Proto, port.Port),
		))
	}

	for _, module := range prof.SelfTest.Modules {
		checks = append(checks, verify.WithResource(verify.FactTrue("asterisk module "+module, p.moduleProbe(module)), resourceAsteriskCLI))
	}

	telephony := prof.Services.Telephony
	stack := []verify.Check{verify.FactTrue("service active", probes.ServiceActive(d.Services, telephony))}
	if len(prof.SelfTest.Modules) > 0 {
		stack = append(stack, verify.FactTrue("module loaded", p.moduleProbe(prof.SelfTest.Modules[0])))
	}
	stack = append(stack, verify.FactTrue("cli answers", probes.CommandOutputContains(d.Runner, "asterisk:uptime", "uptime", "asterisk", "-rx", "core show uptime").WithTimeout(prof.Timeouts.Command)))
	checks = append(checks, verify.WithResource(verify.AllOf("telephony stack", stack...), resourceAsteriskCLI))

	for _, f := range prof.SelfTest.Files {
		checks = append(checks, verify.PathContains(f.Name, d.Host, f.Path, f.Pattern))
	}

	checks = append(checks,
		verify.FactTrue("web ui reachable", probes.HTTPContains(d.HTTP, "http:web", prof.SelfTest.WebURL, "", httpTimeout)),
		verify.FactTrue("admin ui serves login", probes.HTTPContains(d.HTTP, "http:admin", prof.SelfTest.AdminURL, prof.SelfTest.AdminMarker, httpTimeout)),
		verify.WithResource(verify.FactTrue("database reachable", probes.StoreReachable(d.Store, "db:reachable")), resourceStore),
		verify.WithResource(verify.FactTrue("database schema loaded", p.schemaProbe()), resourceStore),
		verify.WithResource(p.identityCheck(), resourceStore),
		verify.WithResource(verify.FromFacts("scheduled jobs present", []engine.Probe{p.cron.Probe()}, func(facts model.FactSet) (bool, string) {
			if missing := facts.Members(cronset.MissingKey); len(missing) > 0 {
				return false, fmt.Sprintf("missing %v", missing)
			}
			return true, fmt.Sprintf("%d jobs", len(prof.Cron.Jobs))
		}), resourceCrontab),
		verify.FileExists("first-run summary present", d.Host, prof.Summary.Path),
		verify.FactAtLeast("memory", probes.MemoryMB(d.Host), prof.Target.MinMemoryMB, "MB"),
		verify.FactAtLeast("disk free", probes.DiskGB(d.Host, prof.Target.DiskPath), prof.Target.MinDiskGB, "GB"),
	)

	if url := prof.SelfTest.OpsHealthURL; url != "" {
		checks = append(checks, verify.FactTrue("ops api healthy", probes.HTTPContains(d.HTTP, "http:ops", url, prof.SelfTest.OpsHealthBody, httpTimeout)))
	}
	if d.Queue != nil && prof.SelfTest.Redis.Address != "" {
		checks = append(checks, verify.FactTrue("ops queue reachable", probes.QueueReachable(d.Queue, "redis:reachable")))
		if limit := prof.SelfTest.Redis.MaxQueue; limit > 0 {
			checks = append(checks, p.queueBacklogCheck(limit))
		}
	}

	for i := range checks {
		if checks[i].Timeout == 0 {
			checks[i] = verify.WithTimeout(checks[i], prof.Timeouts.Check)
		}
	}
	return checks
}

// Harness builds the verifier for the battery.
func (p *Provisioner) Harness(opts verify.Options) (*verify.Harness, error) {
	if opts.Parallel == 0 {
		opts.Parallel = p.profile.SelfTest.Parallel
	}
	if opts.Logger == nil {
		opts.Logger = p.log.With("component", "selftest")
	}
	return verify.NewHarness(p.Checks(), opts)
}

// Quickstart runs preflight, install and postinstall, then the self-test
// battery as the final stage. onReport receives the battery report.
func (p *Provisioner) Quickstart(h *verify.Harness, onReport func(model.RunReport)) engine.Pipeline {
	pipeline := engine.Concat(string(ModeQuickstart), p.Preflight(), p.Install(), p.Postinstall())
	pipeline.Stages = append(pipeline.Stages, verify.Stage("selftest", h, onReport, func(_ model.FactSet, reason string) error {
		return dperrors.NewCheckFailure("selftest", reason, nil)
	}))
	return pipeline
}

func (p *Provisioner) serviceUnits() []string {
	svc := p.profile.Services
	units := []string{svc.Database}
	seen := map[string]struct{}{svc.Database: {}}
	for _, u := range p.applicationUnits() {
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			units = append(units, u)
		}
	}
	return units
}

func (p *Provisioner) moduleProbe(module string) engine.Probe {
	return probes.CommandOutputContains(p.deps.Runner, "asterisk:module:"+module, module, "asterisk", "-rx", "module show like "+module).
		WithTimeout(p.profile.Timeouts.Command)
}

// identityCheck passes when the stored primary address equals the address
// the host routes from now.
func (p *Provisioner) identityCheck() verify.Check {
	return verify.Check{
		Name: "server address current",
		Fn: func(ctx context.Context) (string, error) {
			detected, err := p.identitySeed().Capture(ctx, model.FactSet{})
			if err != nil {
				return "", err
			}
			if !detected.Present {
				return "", fmt.Errorf("no route to %s", p.profile.Identity.ProbeDestination)
			}
			stored, found, err := p.identity.Stored(ctx)
			if err != nil {
				return "", err
			}
			if !found {
				return "", fmt.Errorf("%s has no row", p.profile.IdentityPrimary().Name())
			}
			if stored != detected.Str {
				return "", fmt.Errorf("stored %s, detected %s", stored, detected.Str)
			}
			return stored, nil
		},
	}
}

func (p *Provisioner) queueBacklogCheck(limit int64) verify.Check {
	queue := p.profile.SelfTest.Redis.Queue
	probe := probes.QueueLength(p.deps.Queue, "redis:queue:"+queue, queue)
	return verify.FromFacts("ops queue backlog", []engine.Probe{probe}, func(facts model.FactSet) (bool, string) {
		n := facts.Int(probe.Key)
		if n > limit {
			return false, fmt.Sprintf("%s holds %d jobs, limit %d", queue, n, limit)
		}
		return true, fmt.Sprintf("%s holds %d jobs", queue, n)
	})
}

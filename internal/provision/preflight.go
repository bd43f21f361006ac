package provision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alexisbeaulieu97/dialprov/internal/config"
	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
	"github.com/alexisbeaulieu97/dialprov/internal/probes"
)

const occupiedKey = "ports:occupied"

// Preflight checks the platform before anything is touched. Every stage is
// a precondition: drift aborts the run with a PreconditionError.
func (p *Provisioner) Preflight() engine.Pipeline {
	target := p.profile.Target
	h := p.deps.Host

	return engine.Pipeline{
		Name: string(ModePreflight),
		Stages: []engine.Stage{
			{
				Name:        "os-supported",
				Description: fmt.Sprintf("require %s >= %s", strings.Join(target.OS, "|"), target.MinVersion),
				Probes:      []engine.Probe{probes.OSRelease(h), probes.OSFamily(h)},
				Guard:       osGuard(target),
			},
			{
				Name:        "arch-supported",
				Description: "require " + strings.Join(target.Arch, "|"),
				Probes:      []engine.Probe{probes.Arch(h)},
				Guard: func(facts model.FactSet) (bool, string) {
					arch := facts.Str("host:arch")
					for _, a := range target.Arch {
						if a == arch {
							return false, ""
						}
					}
					return true, fmt.Sprintf("architecture %s is not supported", arch)
				},
			},
			{
				Name:        "memory",
				Description: fmt.Sprintf("require %d MB RAM", target.MinMemoryMB),
				Probes:      []engine.Probe{probes.MemoryMB(h)},
				Guard:       engine.RequireAtLeast("host:memory_mb", target.MinMemoryMB),
			},
			{
				Name:        "disk",
				Description: fmt.Sprintf("require %d GB free on %s", target.MinDiskGB, target.DiskPath),
				Probes:      []engine.Probe{probes.DiskGB(h, target.DiskPath)},
				Guard:       engine.RequireAtLeast("host:disk_free_gb:"+target.DiskPath, target.MinDiskGB),
			},
			p.portsStage(),
		},
	}
}

func osGuard(target config.Target) engine.Guard {
	return func(facts model.FactSet) (bool, string) {
		if !facts.Present("host:os") {
			return true, "os-release is unreadable"
		}
		family, _ := facts.Get("host:os_family")
		supported := false
		for _, id := range target.OS {
			if family.Has(id) {
				supported = true
				break
			}
		}
		release := facts.Str("host:os")
		if !supported {
			return true, fmt.Sprintf("%s is not one of %s", release, strings.Join(target.OS, ", "))
		}
		version := release[strings.LastIndex(release, " ")+1:]
		if !config.VersionAtLeast(version, target.MinVersion) {
			return true, fmt.Sprintf("%s is older than %s", release, target.MinVersion)
		}
		return false, ""
	}
}

// portsStage fails when a required socket is bound while the service that
// should own it is not running, i.e. a foreign process holds the port.
func (p *Provisioner) portsStage() engine.Stage {
	owners := make(map[string]string, len(p.profile.Ports))
	wanted := make([]ports.Socket, 0, len(p.profile.Ports))
	units := map[string]struct{}{}
	for _, port := range p.profile.Ports {
		owners[fmt.Sprintf("%d/%s", port.Port, port.Proto)] = port.Service
		wanted = append(wanted, ports.Socket{Proto: port.Proto, Port: port.Port})
		units[port.Service] = struct{}{}
	}

	probeList := []engine.Probe{probes.PortsOccupied(p.deps.Host, occupiedKey, wanted)}
	for _, unit := range sortedKeys(units) {
		probeList = append(probeList, probes.ServiceActive(p.deps.Services, unit))
	}

	return engine.Stage{
		Name:        "ports-available",
		Description: fmt.Sprintf("require %d ports free or owned by their service", len(wanted)),
		Probes:      probeList,
		Guard: func(facts model.FactSet) (bool, string) {
			var foreign []string
			for _, socket := range facts.Members(occupiedKey) {
				owner := owners[socket]
				if !facts.Present(probes.ServiceKey(owner)) {
					foreign = append(foreign, fmt.Sprintf("%s (expected %s)", socket, owner))
				}
			}
			if len(foreign) > 0 {
				return true, "ports held by another process: " + strings.Join(foreign, ", ")
			}
			return false, ""
		},
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

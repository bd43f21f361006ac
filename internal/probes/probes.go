// Package probes builds engine probes over the external collaborator ports.
// Every probe is read-only and reports absence as a fact.
package probes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// Default latency budgets.
const (
	CommandTimeout = 15 * time.Second
	HTTPTimeout    = 10 * time.Second
	StoreTimeout   = 10 * time.Second
)

// Key helpers keep fact keys stable across stages, checks and tests.

func ServiceKey(unit string) string { return "service:" + unit + ":active" }

func EnabledKey(unit string) string { return "service:" + unit + ":enabled" }

func FileKey(path string) string { return "file:" + path + ":exists" }

func PortKey(proto string, port int) string {
	return fmt.Sprintf("port:%d/%s:listening", port, proto)
}

// PackagesMissing captures the subset of names not installed.
func PackagesMissing(pm ports.PackageManager, key string, names []string) engine.Probe {
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		var missing []string
		for _, name := range names {
			ok, err := pm.Installed(ctx, name)
			if err != nil {
				return model.Fact{}, err
			}
			if !ok {
				missing = append(missing, name)
			}
		}
		return model.Set(key, missing), nil
	}).WithTimeout(time.Duration(len(names)+1) * CommandTimeout)
}

// ServiceActive captures whether a unit is active.
func ServiceActive(sm ports.ServiceManager, unit string) engine.Probe {
	key := ServiceKey(unit)
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		ok, err := sm.IsActive(ctx, unit)
		if err != nil {
			return model.Fact{}, err
		}
		return model.Presence(key, ok), nil
	}).WithTimeout(CommandTimeout)
}

// ServiceEnabled captures whether a unit starts at boot.
func ServiceEnabled(sm ports.ServiceManager, unit string) engine.Probe {
	key := EnabledKey(unit)
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		ok, err := sm.IsEnabled(ctx, unit)
		if err != nil {
			return model.Fact{}, err
		}
		return model.Presence(key, ok), nil
	}).WithTimeout(CommandTimeout)
}

// FileExists captures whether path exists.
func FileExists(h ports.Host, path string) engine.Probe {
	key := FileKey(path)
	return engine.NewProbe(key, func(context.Context, model.FactSet) (model.Fact, error) {
		ok, err := h.FileExists(path)
		if err != nil {
			return model.Fact{}, err
		}
		return model.Presence(key, ok), nil
	})
}

// PortListening captures whether something listens on proto/port.
func PortListening(h ports.Host, proto string, port int) engine.Probe {
	key := PortKey(proto, port)
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		sockets, err := h.Listening(ctx)
		if err != nil {
			return model.Fact{}, err
		}
		for _, s := range sockets {
			if s.Port == port && s.Proto == proto {
				return model.Presence(key, true), nil
			}
		}
		return model.Presence(key, false), nil
	}).WithTimeout(CommandTimeout)
}

// PortsOccupied captures which of the wanted sockets are already bound, as
// "port/proto" members.
func PortsOccupied(h ports.Host, key string, wanted []ports.Socket) engine.Probe {
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		sockets, err := h.Listening(ctx)
		if err != nil {
			return model.Fact{}, err
		}
		bound := make(map[ports.Socket]bool, len(sockets))
		for _, s := range sockets {
			bound[s] = true
		}
		var busy []string
		for _, w := range wanted {
			if bound[w] {
				busy = append(busy, fmt.Sprintf("%d/%s", w.Port, w.Proto))
			}
		}
		return model.Set(key, busy), nil
	}).WithTimeout(CommandTimeout)
}

// MemoryMB captures total RAM.
func MemoryMB(h ports.Host) engine.Probe {
	return engine.NewProbe("host:memory_mb", func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		mb, err := h.TotalMemoryMB(ctx)
		if err != nil {
			return model.Fact{}, err
		}
		return model.Int("host:memory_mb", mb), nil
	})
}

// DiskGB captures free space on the filesystem holding path.
func DiskGB(h ports.Host, path string) engine.Probe {
	key := "host:disk_free_gb:" + path
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		gb, err := h.FreeDiskGB(ctx, path)
		if err != nil {
			return model.Fact{}, err
		}
		return model.Int(key, gb), nil
	})
}

// OSRelease captures "id version_id"; a host without os-release is absent.
func OSRelease(h ports.Host) engine.Probe {
	return engine.NewProbe("host:os", func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		rel, err := h.OSRelease(ctx)
		if err != nil {
			return model.String("host:os", "", false), nil
		}
		return model.String("host:os", rel.ID+" "+rel.VersionID, true), nil
	})
}

// OSFamily captures ID plus ID_LIKE as a set.
func OSFamily(h ports.Host) engine.Probe {
	return engine.NewProbe("host:os_family", func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		rel, err := h.OSRelease(ctx)
		if err != nil {
			return model.Set("host:os_family", nil), nil
		}
		return model.Set("host:os_family", append([]string{rel.ID}, rel.IDLike...)), nil
	})
}

// Arch captures the machine architecture.
func Arch(h ports.Host) engine.Probe {
	return engine.NewProbe("host:arch", func(context.Context, model.FactSet) (model.Fact, error) {
		return model.String("host:arch", h.Arch(), true), nil
	})
}

// StoreScalar captures a single value from the relational store; no row or
// no database is an absent fact.
func StoreScalar(s ports.Store, key, query string, args ...any) engine.Probe {
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		value, found, err := s.Scalar(ctx, query, args...)
		if err != nil {
			return model.Fact{}, err
		}
		return model.String(key, value, found), nil
	}).WithTimeout(StoreTimeout)
}

// StoreReachable captures whether the store answers a trivial query.
// Connection errors are reported as false, not as a probe failure.
func StoreReachable(s ports.Store, key string) engine.Probe {
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		_, found, err := s.Scalar(ctx, "SELECT 1")
		return model.Presence(key, err == nil && found), nil
	}).WithTimeout(StoreTimeout)
}

// HTTPContains captures whether url answers 2xx/3xx with substr in the
// body. Unreachable endpoints are false; only a cancelled run is an error.
func HTTPContains(p ports.HTTPProber, key, url, substr string, timeout time.Duration) engine.Probe {
	if timeout <= 0 {
		timeout = HTTPTimeout
	}
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		status, body, err := p.Get(ctx, url, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return model.Fact{}, ctx.Err()
			}
			return model.Presence(key, false), nil
		}
		ok := status >= 200 && status < 400 && strings.Contains(body, substr)
		return model.Presence(key, ok), nil
	})
}

// CommandOutputContains captures whether a command succeeds and prints
// substr. Asterisk CLI queries and module listings go through here so their
// text format is interpreted in one place.
func CommandOutputContains(r ports.CommandRunner, key, substr, command string, args ...string) engine.Probe {
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		res, err := r.Run(ctx, command, args...)
		if err != nil {
			if ctx.Err() != nil {
				return model.Fact{}, ctx.Err()
			}
			return model.Presence(key, false), nil
		}
		return model.Presence(key, res.Success() && strings.Contains(res.Stdout, substr)), nil
	}).WithTimeout(CommandTimeout)
}

// NetIdentity captures the outbound source address toward destination.
func NetIdentity(r ports.Router, destination string) engine.Probe {
	return engine.NewProbe(IdentityKey, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		addr, err := r.SourceAddress(ctx, destination)
		if err != nil {
			return model.Fact{}, err
		}
		if !addr.IsValid() {
			return model.String(IdentityKey, "", false), nil
		}
		return model.String(IdentityKey, addr.String(), true), nil
	}).WithTimeout(CommandTimeout)
}

// IdentityKey is the run-environment key of the detected network identity.
const IdentityKey = "net:identity"

// QueueReachable captures whether the ops queue answers PING.
func QueueReachable(q ports.QueueProber, key string) engine.Probe {
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		return model.Presence(key, q.Ping(ctx) == nil), nil
	}).WithTimeout(HTTPTimeout)
}

// QueueLength captures the backlog of a queue key.
func QueueLength(q ports.QueueProber, key, queue string) engine.Probe {
	return engine.NewProbe(key, func(ctx context.Context, _ model.FactSet) (model.Fact, error) {
		n, err := q.QueueLength(ctx, queue)
		if err != nil {
			return model.Fact{}, err
		}
		return model.Int(key, n), nil
	}).WithTimeout(HTTPTimeout)
}

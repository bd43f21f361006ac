// Package route implements ports.Router with iproute2.
package route

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// Router asks the kernel which source address it would pick.
type Router struct {
	runner ports.CommandRunner
}

// New creates a Router.
func New(runner ports.CommandRunner) *Router {
	return &Router{runner: runner}
}

// SourceAddress runs `ip -4 route get destination`. "Network is
// unreachable" and output without a src field yield an invalid address.
func (r *Router) SourceAddress(ctx context.Context, destination string) (netip.Addr, error) {
	res, err := r.runner.Run(ctx, "ip", "-4", "route", "get", destination)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("ip route get %s: %w", destination, err)
	}
	if !res.Success() {
		if strings.Contains(res.Stderr, "unreachable") {
			return netip.Addr{}, nil
		}
		return netip.Addr{}, fmt.Errorf("ip route get %s exited %d: %s", destination, res.ExitCode, res.PrimaryOutput())
	}
	return ParseSource(res.Stdout), nil
}

// ParseSource extracts the address following "src" in ip route output.
func ParseSource(output string) netip.Addr {
	fields := strings.Fields(output)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] != "src" {
			continue
		}
		addr, err := netip.ParseAddr(fields[i+1])
		if err != nil || addr.IsUnspecified() || addr.IsLoopback() {
			return netip.Addr{}
		}
		return addr
	}
	return netip.Addr{}
}

var _ ports.Router = (*Router)(nil)

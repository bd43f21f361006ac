// Package pkgmgr implements ports.PackageManager for apt and dnf hosts.
package pkgmgr

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// Apt manages packages with dpkg-query and apt-get.
type Apt struct {
	runner ports.CommandRunner
}

// NewApt creates an apt backend.
func NewApt(runner ports.CommandRunner) *Apt {
	return &Apt{runner: runner}
}

func (a *Apt) Name() string { return "apt" }

// Installed queries the dpkg status database. dpkg-query exits 1 for
// packages it has never heard of.
func (a *Apt) Installed(ctx context.Context, name string) (bool, error) {
	res, err := a.runner.Run(ctx, "dpkg-query", "-W", "-f=${db:Status-Status}", name)
	if err != nil {
		return false, fmt.Errorf("dpkg-query %s: %w", name, err)
	}
	if !res.Success() {
		return false, nil
	}
	return strings.TrimSpace(res.Stdout) == "installed", nil
}

func (a *Apt) Install(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	args := append([]string{"DEBIAN_FRONTEND=noninteractive", "apt-get", "install", "-y", "--no-install-recommends"}, names...)
	return install(ctx, a.runner, "env", args)
}

// Dnf manages packages with rpm and dnf.
type Dnf struct {
	runner ports.CommandRunner
}

// NewDnf creates a dnf backend.
func NewDnf(runner ports.CommandRunner) *Dnf {
	return &Dnf{runner: runner}
}

func (d *Dnf) Name() string { return "dnf" }

func (d *Dnf) Installed(ctx context.Context, name string) (bool, error) {
	res, err := d.runner.Run(ctx, "rpm", "-q", "--whatprovides", name)
	if err != nil {
		return false, fmt.Errorf("rpm -q %s: %w", name, err)
	}
	return res.Success(), nil
}

func (d *Dnf) Install(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	return install(ctx, d.runner, "dnf", append([]string{"install", "-y"}, names...))
}

func install(ctx context.Context, runner ports.CommandRunner, command string, args []string) error {
	res, err := runner.Run(ctx, command, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", command, strings.Join(args, " "), err)
	}
	if !res.Success() {
		return fmt.Errorf("%s exited %d: %s", strings.Join(append([]string{command}, args...), " "), res.ExitCode, lastLine(res.PrimaryOutput()))
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Detect picks the backend matching the os-release ID or ID_LIKE.
func Detect(release ports.OSRelease, runner ports.CommandRunner) (ports.PackageManager, error) {
	ids := append([]string{release.ID}, release.IDLike...)
	switch {
	case slices.ContainsFunc(ids, isDebianFamily):
		return NewApt(runner), nil
	case slices.ContainsFunc(ids, isRedHatFamily):
		return NewDnf(runner), nil
	default:
		return nil, fmt.Errorf("no package manager known for os %q (like %v)", release.ID, release.IDLike)
	}
}

func isDebianFamily(id string) bool {
	return id == "debian" || id == "ubuntu"
}

func isRedHatFamily(id string) bool {
	switch id {
	case "rhel", "centos", "fedora", "almalinux", "rocky":
		return true
	}
	return false
}

var (
	_ ports.PackageManager = (*Apt)(nil)
	_ ports.PackageManager = (*Dnf)(nil)
)

package pkgmgr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

func TestAptInstalled(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("dpkg-query", []string{"-W", "-f=${db:Status-Status}", "asterisk"}, ports.CommandResult{Stdout: "installed"})
	runner.AddResult("dpkg-query", []string{"-W", "-f=${db:Status-Status}", "sox"}, ports.CommandResult{Stdout: "config-files"})
	runner.AddResult("dpkg-query", []string{"-W", "-f=${db:Status-Status}", "nope"}, ports.CommandResult{ExitCode: 1, Stderr: "dpkg-query: no packages found matching nope"})

	apt := NewApt(runner)
	ctx := context.Background()

	ok, err := apt.Installed(ctx, "asterisk")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = apt.Installed(ctx, "sox")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = apt.Installed(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAptInstallReportsFailure(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("env", []string{"DEBIAN_FRONTEND=noninteractive", "apt-get", "install", "-y", "--no-install-recommends", "asterisk", "sox"},
		ports.CommandResult{ExitCode: 100, Stderr: "Reading package lists...\nE: Unable to locate package sox"})

	err := NewApt(runner).Install(context.Background(), "asterisk", "sox")
	require.Error(t, err)
	require.Contains(t, err.Error(), "exited 100: E: Unable to locate package sox")
}

func TestDnf(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("rpm", []string{"-q", "--whatprovides", "httpd"}, ports.CommandResult{Stdout: "httpd-2.4.57-5.el9.x86_64\n"})
	runner.AddResult("rpm", []string{"-q", "--whatprovides", "asterisk"}, ports.CommandResult{ExitCode: 1, Stdout: "no package provides asterisk\n"})
	runner.AddResult("dnf", []string{"install", "-y", "asterisk"}, ports.CommandResult{})

	dnf := NewDnf(runner)
	ctx := context.Background()

	ok, err := dnf.Installed(ctx, "httpd")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = dnf.Installed(ctx, "asterisk")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, dnf.Install(ctx, "asterisk"))
	require.NoError(t, dnf.Install(ctx))
	require.Len(t, runner.Calls(), 3)
}

func TestDetect(t *testing.T) {
	runner := ports.NewMockCommandRunner()

	pm, err := Detect(ports.OSRelease{ID: "almalinux", IDLike: []string{"rhel", "centos", "fedora"}}, runner)
	require.NoError(t, err)
	require.Equal(t, "dnf", pm.Name())

	pm, err = Detect(ports.OSRelease{ID: "ubuntu", IDLike: []string{"debian"}}, runner)
	require.NoError(t, err)
	require.Equal(t, "apt", pm.Name())

	_, err = Detect(ports.OSRelease{ID: "alpine"}, runner)
	require.Error(t, err)
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dperrors "github.com/alexisbeaulieu97/dialprov/pkg/errors"
)

func TestDefaultProfileLoads(t *testing.T) {
	t.Parallel()

	p, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "vicidial-el9", p.Name)
	require.Len(t, p.CronJobs(), 9)
	require.Equal(t, "servers.server_ip", p.IdentityPrimary().Name())
	require.Len(t, p.IdentityColumns(), 5)
	require.Len(t, p.IdentityFiles(), 2)
	require.Equal(t, 10*time.Second, p.Timeouts.HTTP)
	require.Equal(t, 30*time.Second, p.Identity.RestartWait)
	require.Equal(t, 4, p.SelfTest.Parallel)
	require.Equal(t, "asterisk", p.Services.Telephony)
	require.Equal(t, []FileCheck{{Name: "ami enabled", Path: "/etc/asterisk/manager.conf", Pattern: `(?m)^\s*enabled\s*=\s*yes`}}, p.SelfTest.Files)

	db := p.Database
	require.Len(t, db.Loader, 3)
	script := db.Loader[2]
	require.Contains(t, script, "CREATE USER IF NOT EXISTS '"+db.User+"'@'localhost' IDENTIFIED BY '"+db.Password+"';")
	require.Contains(t, script, "ON "+db.Name+".* TO '"+db.User+"'@'localhost'")
	require.Less(t, strings.Index(script, "GRANT"), strings.Index(script, "MySQL_AST_CREATE_tables.sql"))

	for _, f := range p.IdentityFiles() {
		require.NoError(t, f.Validate())
	}
}

func TestSummaryPatternRewritesAddresses(t *testing.T) {
	t.Parallel()

	p, err := Default()
	require.NoError(t, err)
	target := p.IdentityFiles()[1]

	content := []byte("Server IP: 10.0.0.5\nAdmin URL: http://10.0.0.5/vicidial/admin.php\nAMI endpoint: 10.0.0.5:5038\nOps API: http://127.0.0.1:8000\nAdmin password: 10.0.0.5x\n")
	out, n := target.Rewrite(content, "10.0.0.9")
	require.Equal(t, 3, n)
	require.Contains(t, string(out), "Server IP: 10.0.0.9\n")
	require.Contains(t, string(out), "http://10.0.0.9/vicidial")
	require.Contains(t, string(out), "AMI endpoint: 10.0.0.9:5038")
	require.Contains(t, string(out), "Ops API: http://127.0.0.1:8000\n", "loopback endpoints keep their address")
	require.Contains(t, string(out), "Admin password: 10.0.0.5x\n", "unlabelled text is untouched")
}

func writeProfile(t *testing.T, mutate func(string) string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mutate(string(defaultProfile))), 0o600))
	return path
}

func TestLoadRejectsInvalidProfiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(string) string
		field  string
	}{
		{
			name: "unsafe sql identifier",
			mutate: func(s string) string {
				return strings.Replace(s, "{table: phones, column: server_ip}", "{table: \"phones; DROP TABLE x\", column: server_ip}", 1)
			},
			field: "identity.columns[0].table",
		},
		{
			name:   "bad cron schedule",
			mutate: func(s string) string { return strings.Replace(s, `schedule: "2 1 * * *"`, `schedule: "61 * * * *"`, 1) },
			field:  "cron.jobs[6].schedule",
		},
		{
			name: "pattern without capture group",
			mutate: func(s string) string {
				return strings.Replace(s, `'(?m)^VARserver_ip => (\S+)$'`, `'^VARserver_ip => \S+$'`, 1)
			},
			field: "identity.files[0].pattern",
		},
		{
			name: "file check pattern does not compile",
			mutate: func(s string) string {
				return strings.Replace(s, `'(?m)^\s*enabled\s*=\s*yes'`, `'(?m)^\s*enabled\s*=\s*(yes'`, 1)
			},
			field: "selftest.files[0].pattern",
		},
		{
			name:   "duplicate cron id",
			mutate: func(s string) string { return strings.Replace(s, "id: conf-update", "id: vm-update", 1) },
			field:  "cron.jobs[3].id",
		},
		{
			name: "duplicate port",
			mutate: func(s string) string {
				return strings.Replace(s, "{port: 80, proto: tcp, service: httpd}", "{port: 5038, proto: tcp, service: httpd}", 1)
			},
			field: "ports[2]",
		},
		{
			name:   "bad os version",
			mutate: func(s string) string { return strings.Replace(s, `min_version: "9"`, `min_version: "nine"`, 1) },
			field:  "target.min_version",
		},
		{
			name: "duplicate identity target",
			mutate: func(s string) string {
				return strings.Replace(s, "{table: conferences, column: server_ip}", "{table: phones, column: server_ip}", 1)
			},
			field: "identity.columns[1]",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeProfile(t, tt.mutate))
			require.Error(t, err)

			var ve *dperrors.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %T: %v", err, err)
			require.Equal(t, tt.field, ve.Field)
			require.Equal(t, dperrors.ExitConfig, dperrors.ExitCode(err))
		})
	}
}

func TestLoadReportsYAMLLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ntarget:\n  os: [a\n"), 0o600))

	_, err := Load(path)
	var pe *dperrors.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, path, pe.Path)
	require.Positive(t, pe.Line)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := writeProfile(t, func(s string) string {
		return strings.Replace(s, "name: vicidial-el9", "name: vicidial-el9\ncolour: blue", 1)
	})
	_, err := Load(path)
	var pe *dperrors.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 3, pe.Line)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	var pe *dperrors.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, dperrors.ExitConfig, dperrors.ExitCode(err))
}

func TestVersionAtLeast(t *testing.T) {
	t.Parallel()

	require.Equal(t, "v22.4.0", CanonicalVersion("22.04"))
	require.Equal(t, "v9.0.0", CanonicalVersion("9"))
	require.Empty(t, CanonicalVersion("bookworm"))
	require.Empty(t, CanonicalVersion(""))

	require.True(t, VersionAtLeast("9.4", "9"))
	require.True(t, VersionAtLeast("22.04", "20.04"))
	require.False(t, VersionAtLeast("8.10", "9"))
	require.False(t, VersionAtLeast("9.4", "9.10"))
	require.False(t, VersionAtLeast("", "9"))
}

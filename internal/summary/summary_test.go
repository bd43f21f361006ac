package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/dialprov/internal/engine"
	"github.com/alexisbeaulieu97/dialprov/internal/model"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
	"github.com/alexisbeaulieu97/dialprov/internal/probes"
)

const path = "/root/dialprov-first-run.txt"

func newWriter(host *ports.FakeHost, applied *[]Credentials) *Writer {
	return &Writer{
		Host:      host,
		Path:      path,
		AdminUser: "6666",
		Database:  "asterisk",
		DBUser:    "cron",
		OpsURL:    "http://127.0.0.1:8000/health",
		Apply: func(_ context.Context, c Credentials) error {
			*applied = append(*applied, c)
			return nil
		},
		now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword(PasswordLength)
	require.NoError(t, err)
	b, err := GeneratePassword(PasswordLength)
	require.NoError(t, err)

	require.Len(t, a, PasswordLength)
	require.NotEqual(t, a, b)
	for _, r := range a {
		require.True(t, strings.ContainsRune(alphabet, r))
	}
}

func TestStageWritesOnceAndNeverOverwrites(t *testing.T) {
	host := ports.NewFakeHost()
	var applied []Credentials
	w := newWriter(host, &applied)

	env := model.NewFactSet(model.String(probes.IdentityKey, "10.0.0.5", true))
	exec := engine.NewExecutor(engine.Options{})

	res, err := exec.RunStage(context.Background(), env, w.Stage("first-run-summary"))
	require.NoError(t, err)
	require.Equal(t, model.StatusConverged, res.Status)

	content := string(host.Files[path])
	require.Contains(t, content, "Generated: 2026-01-02T03:04:05Z")
	require.Contains(t, content, "Admin URL: http://10.0.0.5/vicidial/admin.php\n")
	require.Contains(t, content, "Server IP: 10.0.0.5\n")
	require.Contains(t, content, "Ops API: http://127.0.0.1:8000/health\n")
	require.Contains(t, content, "Admin password: "+applied[0].AdminPassword+"\n")
	require.Len(t, applied, 1)

	res, err = exec.RunStage(context.Background(), env, w.Stage("first-run-summary"))
	require.NoError(t, err)
	require.Equal(t, model.StatusSatisfied, res.Status)
	require.Equal(t, 1, host.WriteCount(path))
	require.Len(t, applied, 1, "credentials must not be regenerated")
}

func TestWriteApplyFailureLeavesNoFile(t *testing.T) {
	host := ports.NewFakeHost()
	w := &Writer{Host: host, Path: path, Apply: func(context.Context, Credentials) error {
		return errors.New("access denied")
	}}

	err := w.Write(context.Background(), "10.0.0.5")
	require.ErrorContains(t, err, "apply credentials")
	_, ok := host.Files[path]
	require.False(t, ok)
}

func TestRenderWithoutOpsURL(t *testing.T) {
	out, err := Render(Data{Address: "10.0.0.5", AdminUser: "6666", AdminPassword: "x"})
	require.NoError(t, err)
	require.NotContains(t, string(out), "Ops API")
	require.Contains(t, string(out), "AMI endpoint: 10.0.0.5:5038\n")
}

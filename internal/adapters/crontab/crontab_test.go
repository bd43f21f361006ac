package crontab

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

func TestReadEmptyWhenNoCrontab(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("crontab", []string{"-l"}, ports.CommandResult{ExitCode: 1, Stderr: "no crontab for root\n"})

	content, err := New(runner, "").Read(context.Background())
	require.NoError(t, err)
	require.Empty(t, content)
}

func TestReadForUser(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("crontab", []string{"-u", "asterisk", "-l"}, ports.CommandResult{Stdout: "* * * * * /bin/true\n"})

	content, err := New(runner, "asterisk").Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, "* * * * * /bin/true\n", string(content))
}

func TestReadFailure(t *testing.T) {
	runner := ports.NewMockCommandRunner()
	runner.AddResult("crontab", []string{"-l"}, ports.CommandResult{ExitCode: 1, Stderr: "crontab: must be privileged\n"})

	_, err := New(runner, "").Read(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be privileged")
}

// capturingRunner snapshots the temp file handed to crontab before Replace
// removes it.
type capturingRunner struct {
	args    []string
	content string
}

func (c *capturingRunner) Run(_ context.Context, _ string, args ...string) (ports.CommandResult, error) {
	c.args = args
	data, err := os.ReadFile(args[len(args)-1])
	if err != nil {
		return ports.CommandResult{}, err
	}
	c.content = string(data)
	return ports.CommandResult{}, nil
}

func TestReplaceWritesTempFile(t *testing.T) {
	runner := &capturingRunner{}
	table := New(runner, "")
	table.tmpDir = t.TempDir()

	require.NoError(t, table.Replace(context.Background(), []byte("MAILTO=root\n")))
	require.Equal(t, "MAILTO=root\n", runner.content)

	_, err := os.Stat(runner.args[0])
	require.True(t, os.IsNotExist(err), "temp file must be removed")
	require.Equal(t, table.tmpDir, filepath.Dir(runner.args[0]))
}

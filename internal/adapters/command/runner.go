// Package command executes external commands for the other adapters.
package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/alexisbeaulieu97/dialprov/internal/logger"
	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// DefaultTimeout bounds a single command when the caller's context has no
// deadline of its own.
const DefaultTimeout = 15 * time.Minute

// Runner executes real commands with a C locale so output parsing does not
// depend on the operator's language settings.
type Runner struct {
	// Stream, when set, receives a live copy of stdout and stderr. Package
	// installs use it so long downloads are visible in verbose mode.
	Stream  io.Writer
	Timeout time.Duration
	Logger  *logger.Logger
}

// NewRunner creates a Runner with the default timeout.
func NewRunner(log *logger.Logger) *Runner {
	return &Runner{Timeout: DefaultTimeout, Logger: log}
}

// Streaming returns a copy of the runner that tees output to w.
func (r *Runner) Streaming(w io.Writer) *Runner {
	copied := *r
	copied.Stream = w
	return &copied
}

// Run executes command and returns its result. A non-zero exit status is
// not an error.
func (r *Runner) Run(ctx context.Context, command string, args ...string) (ports.CommandResult, error) {
	if _, ok := ctx.Deadline(); !ok && r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.Stream != nil {
		cmd.Stdout = io.MultiWriter(r.Stream, &stdout)
		cmd.Stderr = io.MultiWriter(r.Stream, &stderr)
	}

	start := time.Now()
	err := cmd.Run()

	result := ports.CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			err = nil
		} else if ctx.Err() != nil {
			err = ctx.Err()
		}
	}

	r.Logger.WithFields(map[string]any{
		"command":     command,
		"args":        args,
		"exit_code":   result.ExitCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("command finished")

	return result, err
}

var _ ports.CommandRunner = (*Runner)(nil)

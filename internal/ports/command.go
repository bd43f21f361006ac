// Package ports defines the narrow interfaces through which dialprov reaches
// external collaborators: the shell, the package and service managers, the
// relational store, the scheduler table, HTTP endpoints, routing and the ops
// queue. Adapters live under internal/adapters.
package ports

import (
	"context"
	"strings"
)

// CommandResult represents the result of executing a command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success returns true if the command exited with code 0.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// PrimaryOutput returns trimmed stderr if present, otherwise stdout.
func (r CommandResult) PrimaryOutput() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stdout)
}

// CommandCall records a command invocation.
type CommandCall struct {
	Command string
	Args    []string
}

// CommandRunner executes external commands. A non-zero exit status is
// reported through CommandResult.ExitCode, not as an error; err is reserved
// for commands that could not be started or were interrupted.
type CommandRunner interface {
	Run(ctx context.Context, command string, args ...string) (CommandResult, error)
}

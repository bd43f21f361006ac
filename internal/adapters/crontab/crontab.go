// Package crontab implements ports.SchedulerTable with the crontab(1)
// command.
package crontab

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// Table is one user's crontab.
type Table struct {
	runner ports.CommandRunner
	user   string
	tmpDir string
}

// New returns the crontab of user; an empty user means the invoking user.
func New(runner ports.CommandRunner, user string) *Table {
	return &Table{runner: runner, user: user}
}

func (t *Table) args(extra ...string) []string {
	if t.user == "" {
		return extra
	}
	return append([]string{"-u", t.user}, extra...)
}

// Read returns the current table. crontab exits 1 with "no crontab for"
// when the user has none; that is an empty table.
func (t *Table) Read(ctx context.Context) ([]byte, error) {
	res, err := t.runner.Run(ctx, "crontab", t.args("-l")...)
	if err != nil {
		return nil, fmt.Errorf("crontab -l: %w", err)
	}
	if !res.Success() {
		if strings.Contains(res.Stderr, "no crontab for") {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("crontab -l exited %d: %s", res.ExitCode, res.PrimaryOutput())
	}
	return []byte(res.Stdout), nil
}

// Replace installs content as the whole table. crontab(1) swaps the spool
// file in one step, so readers never see a half-written table.
func (t *Table) Replace(ctx context.Context, content []byte) error {
	f, err := os.CreateTemp(t.tmpDir, "dialprov-crontab-*")
	if err != nil {
		return fmt.Errorf("create temp crontab: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(content); err != nil {
		f.Close()
		return fmt.Errorf("write temp crontab: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp crontab: %w", err)
	}

	res, err := t.runner.Run(ctx, "crontab", t.args(path)...)
	if err != nil {
		return fmt.Errorf("crontab install: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("crontab install exited %d: %s", res.ExitCode, res.PrimaryOutput())
	}
	return nil
}

var _ ports.SchedulerTable = (*Table)(nil)

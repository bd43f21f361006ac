// Package systemd implements ports.ServiceManager on top of systemctl. It is
// the only place that interprets systemctl's text output.
package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/dialprov/internal/ports"
)

// Manager drives units through systemctl.
type Manager struct {
	runner ports.CommandRunner
}

// New creates a Manager.
func New(runner ports.CommandRunner) *Manager {
	return &Manager{runner: runner}
}

// IsActive reports whether the unit is in the "active" state. Inactive,
// failed and unknown units are all not active; only a runner failure is an
// error.
func (m *Manager) IsActive(ctx context.Context, unit string) (bool, error) {
	res, err := m.runner.Run(ctx, "systemctl", "is-active", unit)
	if err != nil {
		return false, fmt.Errorf("systemctl is-active %s: %w", unit, err)
	}
	return res.Success() && firstLine(res.Stdout) == "active", nil
}

// IsEnabled reports whether the unit starts at boot.
func (m *Manager) IsEnabled(ctx context.Context, unit string) (bool, error) {
	res, err := m.runner.Run(ctx, "systemctl", "is-enabled", unit)
	if err != nil {
		return false, fmt.Errorf("systemctl is-enabled %s: %w", unit, err)
	}
	switch firstLine(res.Stdout) {
	case "enabled", "enabled-runtime", "alias", "static":
		return res.Success(), nil
	default:
		return false, nil
	}
}

func (m *Manager) Start(ctx context.Context, unit string) error {
	return m.control(ctx, "start", unit)
}

func (m *Manager) Stop(ctx context.Context, unit string) error {
	return m.control(ctx, "stop", unit)
}

func (m *Manager) Restart(ctx context.Context, unit string) error {
	return m.control(ctx, "restart", unit)
}

func (m *Manager) Enable(ctx context.Context, unit string) error {
	return m.control(ctx, "enable", unit)
}

func (m *Manager) control(ctx context.Context, verb, unit string) error {
	res, err := m.runner.Run(ctx, "systemctl", verb, unit)
	if err != nil {
		return fmt.Errorf("systemctl %s %s: %w", verb, unit, err)
	}
	if !res.Success() {
		return fmt.Errorf("systemctl %s %s exited %d: %s", verb, unit, res.ExitCode, res.PrimaryOutput())
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

var _ ports.ServiceManager = (*Manager)(nil)

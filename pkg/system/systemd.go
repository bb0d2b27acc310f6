package system

import (
	"context"
	"strings"
)

// Systemd controls units through systemctl. Implements ServiceManager.
type Systemd struct {
	run Runner
}

// NewSystemd creates a systemctl-backed service manager.
func NewSystemd(run Runner) *Systemd {
	return &Systemd{run: run}
}

// Enable enables a unit at boot.
func (s *Systemd) Enable(ctx context.Context, unit string) error {
	return s.run.Run(ctx, "systemctl", "enable", unit)
}

// Start starts a unit now.
func (s *Systemd) Start(ctx context.Context, unit string) error {
	return s.run.Run(ctx, "systemctl", "start", unit)
}

// Restart restarts a unit.
func (s *Systemd) Restart(ctx context.Context, unit string) error {
	return s.run.Run(ctx, "systemctl", "restart", unit)
}

// IsActive reports whether the unit is currently running. systemctl
// exits nonzero for inactive units, which is a state, not an error.
func (s *Systemd) IsActive(ctx context.Context, unit string) (bool, error) {
	out, err := s.run.Output(ctx, "systemctl", "is-active", unit)
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(out) == "active", nil
}

// DaemonReload re-reads unit files after one was written or changed.
func (s *Systemd) DaemonReload(ctx context.Context) error {
	return s.run.Run(ctx, "systemctl", "daemon-reload")
}

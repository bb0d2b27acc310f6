package system

import (
	"context"
	"strings"
)

// UFW manages firewall allow rules through the ufw CLI. Implements
// Firewall.
type UFW struct {
	run Runner
}

// NewUFW creates a ufw-backed firewall manager.
func NewUFW(run Runner) *UFW {
	return &UFW{run: run}
}

// RulePresent reports whether `ufw status` already lists an allow rule
// for the given signature (e.g. "6443/tcp").
func (u *UFW) RulePresent(ctx context.Context, rule string) (bool, error) {
	out, err := u.run.Output(ctx, "ufw", "status")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == rule && strings.HasPrefix(fields[1], "ALLOW") {
			return true, nil
		}
	}
	return false, nil
}

// Allow inserts an allow rule.
func (u *UFW) Allow(ctx context.Context, rule string) error {
	return u.run.Run(ctx, "ufw", "allow", rule)
}

// Enable activates the firewall without the interactive prompt.
func (u *UFW) Enable(ctx context.Context) error {
	return u.run.Run(ctx, "ufw", "--force", "enable")
}

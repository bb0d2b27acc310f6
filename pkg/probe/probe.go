// Package probe holds the idempotence predicates steps consult before
// acting: read-only queries answering "is X already true on this host?".
//
// Every predicate is side-effect-free and safe to call repeatedly; they
// are what makes a step re-entrant. A query failure answers false — the
// worst case is redundant work by an idempotent sub-action, never a
// false skip of required work.
package probe

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/nodeprep/nodeprep/pkg/system"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

// Probes bundles predicates over the system collaborators.
type Probes struct {
	Packages system.PackageManager
	Services system.ServiceManager
	Firewall system.Firewall
	Kernel   system.Kernel
}

// PackageInstalled reports whether the package database lists name as
// installed.
func (p *Probes) PackageInstalled(ctx context.Context, name string) bool {
	installed, _, err := p.Packages.Installed(ctx, name)
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Debugf("package probe failed for %s", name)
		return false
	}
	return installed
}

// PackageVersion returns the installed version of name, or "".
func (p *Probes) PackageVersion(ctx context.Context, name string) string {
	installed, v, err := p.Packages.Installed(ctx, name)
	if err != nil || !installed {
		return ""
	}
	return v
}

// ServiceActive reports whether the unit is currently running (not
// merely enabled).
func (p *Probes) ServiceActive(ctx context.Context, unit string) bool {
	active, err := p.Services.IsActive(ctx, unit)
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Debugf("service probe failed for %s", unit)
		return false
	}
	return active
}

// FirewallRulePresent reports whether the current rule set contains rule.
func (p *Probes) FirewallRulePresent(ctx context.Context, rule string) bool {
	present, err := p.Firewall.RulePresent(ctx, rule)
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Debugf("firewall probe failed for %s", rule)
		return false
	}
	return present
}

// KernelModuleLoaded reports whether the named module is loaded.
func (p *Probes) KernelModuleLoaded(ctx context.Context, name string) bool {
	loaded, err := p.Kernel.ModuleLoaded(ctx, name)
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Debugf("module probe failed for %s", name)
		return false
	}
	return loaded
}

// SwapActive reports whether any swap device is in use.
func (p *Probes) SwapActive(ctx context.Context) bool {
	active, err := p.Kernel.SwapActive(ctx)
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Debug("swap probe failed")
		return false
	}
	return active
}

// BinaryPresent reports whether an executable of that name exists at
// one of the given fixed install locations. PATH is deliberately not
// consulted: a same-named distro tool elsewhere (iproute2 ships a
// `bridge`) must not satisfy a probe for a binary this tool installs.
func BinaryPresent(name string, locations ...string) bool {
	for _, dir := range locations {
		info, err := os.Stat(filepath.Join(dir, name))
		if err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return true
		}
	}
	return false
}

// SocketPresent reports whether a socket (or any file) exists at path.
func SocketPresent(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FileContains reports whether the file at path exists and contains
// needle.
func FileContains(path, needle string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), needle)
}

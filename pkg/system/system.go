// Package system wraps the external managers a provisioning step shells
// out to: the package manager, the service manager, the firewall, the
// container runtime CLI, and the cluster bootstrap CLI.
//
// Each collaborator is a narrow interface with "apply", "query current
// state", and "restart/reload" primitives, so the engine and step logic
// can be tested against fakes without touching a real OS.
package system

import "context"

// PackageManager installs and queries OS packages.
type PackageManager interface {
	// Update refreshes the package index.
	Update(ctx context.Context) error

	// Installed reports whether name is in an installed state (not merely
	// downloaded or staged) and, if so, its version.
	Installed(ctx context.Context, name string) (bool, string, error)

	// AvailableVersions lists the versions the repository offers for
	// name, ordered newest-first.
	AvailableVersions(ctx context.Context, name string) ([]string, error)

	// Install installs name at version. An empty version installs the
	// repository default.
	Install(ctx context.Context, name, version string) error

	// Hold pins the named packages against unattended upgrades.
	Hold(ctx context.Context, names ...string) error
}

// RepositoryManager configures additional package repositories.
type RepositoryManager interface {
	// EnsureRepository imports the signing key at keyPath under name and
	// writes the repository source line. Idempotent.
	EnsureRepository(ctx context.Context, name, keyPath, repoLine string) error

	// KeyringPath returns where EnsureRepository places the keyring for
	// name, for signed-by clauses in the repo line.
	KeyringPath(name string) string
}

// ServiceManager controls systemd units.
type ServiceManager interface {
	Enable(ctx context.Context, unit string) error
	Start(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	// IsActive reports whether the unit is currently running, not merely
	// enabled.
	IsActive(ctx context.Context, unit string) (bool, error)
	DaemonReload(ctx context.Context) error
}

// Firewall queries and inserts allow rules.
type Firewall interface {
	// RulePresent reports whether the current rule set contains rule.
	RulePresent(ctx context.Context, rule string) (bool, error)
	// Allow inserts an allow rule (e.g. "6443/tcp").
	Allow(ctx context.Context, rule string) error
	// Enable activates the firewall.
	Enable(ctx context.Context) error
}

// RuntimeCLI talks to the container runtime over its CRI socket.
type RuntimeCLI interface {
	// Info queries runtime status; a nil error means the runtime answers.
	Info(ctx context.Context) error
	// PullImage pulls an image through the runtime.
	PullImage(ctx context.Context, ref string) error
}

// Bootstrap is the cluster-bootstrap CLI (kubeadm).
type Bootstrap interface {
	// ImageList returns the control-plane images required for the given
	// Kubernetes version.
	ImageList(ctx context.Context, kubernetesVersion string) ([]string, error)
}

// Kernel adjusts kernel-level host state.
type Kernel interface {
	ModuleLoaded(ctx context.Context, name string) (bool, error)
	LoadModule(ctx context.Context, name string) error
	// ApplySysctl re-reads all sysctl configuration files.
	ApplySysctl(ctx context.Context) error
	// SwapActive reports whether any swap device is in use.
	SwapActive(ctx context.Context) (bool, error)
	// DisableSwap turns off all swap devices.
	DisableSwap(ctx context.Context) error
}

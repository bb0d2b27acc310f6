package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nodeprep/nodeprep/pkg/version"
)

// Apt manages Debian packages through apt-get, dpkg-query, apt-cache and
// apt-mark. It implements PackageManager and RepositoryManager.
type Apt struct {
	run Runner

	// Root prefixes filesystem paths written by EnsureRepository.
	// Defaults to "/".
	Root string
}

// NewApt creates an apt-backed package manager.
func NewApt(run Runner) *Apt {
	return &Apt{run: run, Root: "/"}
}

// Update refreshes the package index.
func (a *Apt) Update(ctx context.Context) error {
	return a.run.Run(ctx, "apt-get", "update")
}

// Installed reports the package's installed state via the dpkg database.
func (a *Apt) Installed(ctx context.Context, name string) (bool, string, error) {
	out, err := a.run.Output(ctx, "dpkg-query", "-W", "-f=${db:Status-Status} ${Version}", name)
	if err != nil {
		// dpkg-query exits nonzero for unknown packages
		return false, "", nil
	}
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "installed" {
		return false, "", nil
	}
	return true, fields[1], nil
}

// AvailableVersions lists repository versions newest-first, parsed from
// apt-cache madison output lines of the form "name | version | source".
func (a *Apt) AvailableVersions(ctx context.Context, name string) ([]string, error) {
	out, err := a.run.Output(ctx, "apt-cache", "madison", name)
	if err != nil {
		return nil, fmt.Errorf("failed to list available versions for %s: %w", name, err)
	}

	var versions []string
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		v := strings.TrimSpace(parts[1])
		if v != "" {
			versions = append(versions, v)
		}
	}

	version.SortDescending(versions)
	return versions, nil
}

// Install installs name, pinned to version when one is given.
func (a *Apt) Install(ctx context.Context, name, pkgVersion string) error {
	spec := name
	if pkgVersion != "" {
		spec = name + "=" + pkgVersion
	}
	return a.run.Run(ctx, "apt-get", "install", "-y", spec)
}

// Hold pins packages against unattended upgrades.
func (a *Apt) Hold(ctx context.Context, names ...string) error {
	args := append([]string{"hold"}, names...)
	return a.run.Run(ctx, "apt-mark", args...)
}

// EnsureRepository imports the GPG key at keyPath into
// /etc/apt/keyrings/<name>.gpg, writes the source list, and refreshes
// the index. Existing key and list files are left untouched.
func (a *Apt) EnsureRepository(ctx context.Context, name, keyPath, repoLine string) error {
	keyringDir := filepath.Join(a.Root, "etc/apt/keyrings")
	keyring := filepath.Join(keyringDir, name+".gpg")
	list := filepath.Join(a.Root, "etc/apt/sources.list.d", name+".list")

	if err := os.MkdirAll(keyringDir, 0755); err != nil {
		return fmt.Errorf("failed to create keyring directory: %w", err)
	}

	changed := false
	if _, err := os.Stat(keyring); os.IsNotExist(err) {
		if err := a.run.Run(ctx, "gpg", "--batch", "--yes", "--dearmor", "-o", keyring, keyPath); err != nil {
			return fmt.Errorf("failed to import repository key: %w", err)
		}
		changed = true
	}

	if current, err := os.ReadFile(list); err != nil || strings.TrimSpace(string(current)) != repoLine {
		if err := os.WriteFile(list, []byte(repoLine+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write source list: %w", err)
		}
		changed = true
	}

	if changed {
		return a.Update(ctx)
	}
	return nil
}

// KeyringPath returns where EnsureRepository places the keyring for
// name, for use in signed-by clauses of the repo line.
func (a *Apt) KeyringPath(name string) string {
	return filepath.Join(a.Root, "etc/apt/keyrings", name+".gpg")
}

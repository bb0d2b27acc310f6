package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
	"github.com/nodeprep/nodeprep/pkg/version"
)

// kubeComponents must share a minor version; kubeadm refuses skewed
// nodes in surprising ways otherwise.
var kubeComponents = []string{"kubelet", "kubeadm", "kubectl"}

// NewKubernetesStep configures the package repository, resolves the
// requested version against what the repository offers, and installs
// and pins kubelet, kubeadm, and kubectl.
func NewKubernetesStep(cfg *config.Config, d Deps) engine.Step {
	return engine.Step{
		Name:        NameKubernetes,
		Description: "install Kubernetes components",
		Action: func(ctx context.Context) error {
			logger := telemetry.FromContext(ctx)

			spec, err := version.ParseSpecifier(cfg.KubernetesVersion)
			if err != nil {
				return engine.Fatal("invalid kubernetes version", err)
			}

			if err := ensureKubernetesRepo(ctx, cfg, d); err != nil {
				return err
			}

			available, err := d.Packages.AvailableVersions(ctx, "kubelet")
			if err != nil {
				return engine.Fatal("failed to query available kubelet versions", err)
			}
			resolved, err := spec.Resolve(available)
			if err != nil {
				// Resolution failure is fatal, never a silent fallback.
				return engine.Fatal(fmt.Sprintf("cannot satisfy version %q", spec), err)
			}
			logger.Infof("resolved kubernetes version %s -> %s", spec, resolved)

			for _, comp := range kubeComponents {
				if d.Probes.PackageInstalled(ctx, comp) {
					logger.Debugf("%s already installed", comp)
					continue
				}
				if err := d.Packages.Install(ctx, comp, resolved); err != nil {
					return engine.Fatal(fmt.Sprintf("failed to install %s", comp), err)
				}
			}

			var warnings []string
			if err := d.Packages.Hold(ctx, kubeComponents...); err != nil {
				logger.WithError(err).Warn("failed to hold kubernetes packages")
				warnings = append(warnings, "failed to hold kubernetes packages: "+err.Error())
			}

			if err := d.Services.Enable(ctx, "kubelet"); err != nil {
				return engine.Fatal("failed to enable kubelet", err)
			}

			installed := make(map[string]string, len(kubeComponents))
			for _, comp := range kubeComponents {
				if v := d.Probes.PackageVersion(ctx, comp); v != "" {
					installed[comp] = v
				}
			}
			if mismatch := version.CheckConsistency(installed); mismatch != nil {
				// Skew is a risk flag, not a stop: operators may be
				// mid-upgrade on purpose.
				warnings = append(warnings, mismatch.String())
			}

			if len(warnings) > 0 {
				return engine.Soft(strings.Join(warnings, "; "), nil)
			}
			return nil
		},
	}
}

// ensureKubernetesRepo fetches the repository signing key and writes the
// apt source for the requested minor version.
func ensureKubernetesRepo(ctx context.Context, cfg *config.Config, d Deps) error {
	keyPath := filepath.Join(cfg.WorkDir, "kubernetes-release.key")
	if err := d.Fetcher.Fetch(ctx, cfg.RepoKeyDownloadURL(), keyPath); err != nil {
		return engine.Fatal("failed to download repository key", err)
	}

	repoLine := cfg.RenderRepoLine(d.Repo.KeyringPath("kubernetes"))
	if err := d.Repo.EnsureRepository(ctx, "kubernetes", keyPath, repoLine); err != nil {
		return engine.Fatal("failed to configure kubernetes repository", err)
	}
	return nil
}

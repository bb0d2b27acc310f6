// Package steps defines the ordered provisioning steps that turn a bare
// Ubuntu host into a Kubernetes node. Steps are registered in a fixed,
// explicit list; the declared order is the dependency order.
package steps

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/fetch"
	"github.com/nodeprep/nodeprep/pkg/probe"
	"github.com/nodeprep/nodeprep/pkg/system"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

// Step names, in execution order.
const (
	NameOSPrep        = "step1-os-prep"
	NameFirewall      = "step2-firewall"
	NameContainerd    = "step3-containerd"
	NameKubernetes    = "step4-kubernetes"
	NameCNI           = "step5-cni"
	NamePreloadImages = "step6-preload-images"
	NameMonitoring    = "step7-monitoring"
)

// Names returns the step names in execution order.
func Names() []string {
	return []string{
		NameOSPrep,
		NameFirewall,
		NameContainerd,
		NameKubernetes,
		NameCNI,
		NamePreloadImages,
		NameMonitoring,
	}
}

// Deps bundles the collaborators every step draws from. All state a
// step needs arrives here or in the config at construction time.
type Deps struct {
	Runner    system.Runner
	Fetcher   *fetch.Fetcher
	Packages  system.PackageManager
	Repo      system.RepositoryManager
	Services  system.ServiceManager
	Firewall  system.Firewall
	Runtime   system.RuntimeCLI
	Bootstrap system.Bootstrap
	Kernel    system.Kernel
	Probes    *probe.Probes
	Metrics   *telemetry.Metrics
}

// All returns the full provisioning sequence in execution order.
func All(cfg *config.Config, d Deps) []engine.Step {
	return []engine.Step{
		NewOSPrepStep(cfg, d),
		NewFirewallStep(cfg, d),
		NewContainerdStep(cfg, d),
		NewKubernetesStep(cfg, d),
		NewCNIStep(cfg, d),
		NewPreloadImagesStep(cfg, d),
		NewMonitoringStep(cfg, d),
	}
}

// writeFile writes content to path, creating parent directories.
func writeFile(path, content string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

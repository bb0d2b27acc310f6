package steps

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/fetch"
	"github.com/nodeprep/nodeprep/pkg/probe"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

// NewCNIStep installs the CNI plugin binaries into /opt/cni/bin. The
// download is optional: an offline build completes with a warning and
// the plugins are installed later by the cluster's CNI add-on.
func NewCNIStep(cfg *config.Config, d Deps) engine.Step {
	return engine.Step{
		Name:        NameCNI,
		Description: "install CNI plugins",
		Action: func(ctx context.Context) error {
			logger := telemetry.FromContext(ctx)

			cniDir := filepath.Join(cfg.RootDir, "opt/cni/bin")
			if probe.BinaryPresent("bridge", cniDir) {
				logger.Info("CNI plugins already present")
				return nil
			}

			artifact := filepath.Join(cfg.WorkDir, "cni-plugins.tgz")
			if err := d.Fetcher.Fetch(ctx, cfg.CNIPluginsDownloadURL(), artifact); err != nil {
				return engine.Soft("skipping CNI plugins, download failed", err)
			}
			if err := fetch.ValidateArchive(artifact); err != nil {
				return engine.Soft("skipping CNI plugins, archive failed validation", err)
			}

			if err := os.MkdirAll(cniDir, 0755); err != nil {
				return engine.Fatal("failed to create CNI directory", err)
			}
			if err := d.Runner.Run(ctx, "tar", "-C", cniDir, "-xzf", artifact); err != nil {
				return engine.Fatal("failed to extract CNI plugins", err)
			}
			_ = os.Remove(artifact)

			return nil
		},
	}
}

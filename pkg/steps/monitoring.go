package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/fetch"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

const nodeExporterUnit = `[Unit]
Description=Prometheus Node Exporter
After=network-online.target

[Service]
User=nobody
ExecStart=/usr/local/bin/node_exporter
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

// NewMonitoringStep installs node_exporter and runs it as a systemd
// service. Monitoring is not on the critical path to a working node, so
// service failures degrade to warnings; a broken exporter never blocks
// the node from joining a cluster.
func NewMonitoringStep(cfg *config.Config, d Deps) engine.Step {
	return engine.Step{
		Name:        NameMonitoring,
		Description: "install node_exporter monitoring agent",
		Action: func(ctx context.Context) error {
			logger := telemetry.FromContext(ctx)

			binDir := filepath.Join(cfg.RootDir, "usr/local/bin")
			binPath := filepath.Join(binDir, "node_exporter")

			if _, err := os.Stat(binPath); err != nil {
				artifact := filepath.Join(cfg.WorkDir, "node_exporter.tar.gz")
				if err := d.Fetcher.Fetch(ctx, cfg.NodeExporterDownloadURL(), artifact); err != nil {
					return engine.Soft("skipping monitoring agent, download failed", err)
				}
				if err := fetch.ValidateArchive(artifact); err != nil {
					return engine.Soft("skipping monitoring agent, archive failed validation", err)
				}

				if err := os.MkdirAll(binDir, 0755); err != nil {
					return engine.Fatal("failed to create install directory", err)
				}
				// The release tarball nests the binary one directory deep.
				member := fmt.Sprintf("node_exporter-%s.linux-%s/node_exporter", cfg.NodeExporterVersion, cfg.Arch())
				if err := d.Runner.Run(ctx, "tar", "-C", binDir, "--strip-components=1", "-xzf", artifact, member); err != nil {
					return engine.Fatal("failed to extract node_exporter", err)
				}
				_ = os.Remove(artifact)
			} else {
				logger.Info("node_exporter binary already installed")
			}

			unitPath := filepath.Join(cfg.RootDir, "etc/systemd/system/node_exporter.service")
			if err := writeFile(unitPath, nodeExporterUnit, 0644); err != nil {
				return engine.Fatal("failed to write node_exporter unit", err)
			}
			if err := d.Services.DaemonReload(ctx); err != nil {
				return engine.Soft("failed to reload systemd for node_exporter", err)
			}
			if err := d.Services.Enable(ctx, "node_exporter"); err != nil {
				return engine.Soft("failed to enable node_exporter", err)
			}
			if !d.Probes.ServiceActive(ctx, "node_exporter") {
				if err := d.Services.Start(ctx, "node_exporter"); err != nil {
					return engine.Soft("failed to start node_exporter", err)
				}
			}

			return nil
		},
	}
}

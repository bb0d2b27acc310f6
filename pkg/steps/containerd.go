package steps

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/fetch"
	"github.com/nodeprep/nodeprep/pkg/probe"
	"github.com/nodeprep/nodeprep/pkg/readiness"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

const containerdConfig = `version = 2

[plugins."io.containerd.grpc.v1.cri"]
  sandbox_image = "registry.k8s.io/pause:3.10"

  [plugins."io.containerd.grpc.v1.cri".containerd.runtimes.runc]
    runtime_type = "io.containerd.runc.v2"

    [plugins."io.containerd.grpc.v1.cri".containerd.runtimes.runc.options]
      SystemdCgroup = true
`

const containerdUnit = `[Unit]
Description=containerd container runtime
Documentation=https://containerd.io
After=network.target local-fs.target

[Service]
ExecStartPre=-/sbin/modprobe overlay
ExecStart=/usr/local/bin/containerd
Type=notify
Delegate=yes
KillMode=process
Restart=always
RestartSec=5
LimitNPROC=infinity
LimitCORE=infinity
TasksMax=infinity
OOMScoreAdjust=-999

[Install]
WantedBy=multi-user.target
`

// NewContainerdStep installs and configures the container runtime, then
// gates on its socket appearing before the step is declared complete.
func NewContainerdStep(cfg *config.Config, d Deps) engine.Step {
	return engine.Step{
		Name:        NameContainerd,
		Description: "install and start containerd",
		Action: func(ctx context.Context) error {
			logger := telemetry.FromContext(ctx)

			if d.Probes.ServiceActive(ctx, "containerd") && probe.SocketPresent(cfg.RuntimeSocket) {
				logger.Info("containerd already running")
				return nil
			}

			binDir := filepath.Join(cfg.RootDir, "usr/local/bin")
			if !probe.BinaryPresent("containerd", binDir) {
				artifact := filepath.Join(cfg.WorkDir, "containerd.tar.gz")
				if err := d.Fetcher.Fetch(ctx, cfg.ContainerdDownloadURL(), artifact); err != nil {
					return engine.Fatal("failed to download containerd", err)
				}
				if err := fetch.ValidateArchive(artifact); err != nil {
					return engine.Fatal("containerd archive failed validation", err)
				}
				if err := d.Runner.Run(ctx, "tar", "-C", filepath.Join(cfg.RootDir, "usr/local"), "-xzf", artifact); err != nil {
					return engine.Fatal("failed to extract containerd", err)
				}
				// Artifacts are transient; removal failure is tolerated.
				_ = os.Remove(artifact)
			} else {
				logger.Debug("containerd binary already present")
			}

			configPath := filepath.Join(cfg.RootDir, "etc/containerd/config.toml")
			if !probe.FileContains(configPath, "SystemdCgroup = true") {
				if err := writeFile(configPath, containerdConfig, 0644); err != nil {
					return engine.Fatal("failed to write containerd config", err)
				}
			}

			unitPath := filepath.Join(cfg.RootDir, "etc/systemd/system/containerd.service")
			if !probe.FileContains(unitPath, "ExecStart=/usr/local/bin/containerd") {
				if err := writeFile(unitPath, containerdUnit, 0644); err != nil {
					return engine.Fatal("failed to write containerd unit", err)
				}
				if err := d.Services.DaemonReload(ctx); err != nil {
					return engine.Fatal("failed to reload systemd", err)
				}
			}

			if err := d.Services.Enable(ctx, "containerd"); err != nil {
				return engine.Fatal("failed to enable containerd", err)
			}
			if err := d.Services.Restart(ctx, "containerd"); err != nil {
				return engine.Fatal("failed to start containerd", err)
			}

			// The runtime is installed only once its socket answers.
			started := time.Now()
			err := readiness.Wait(ctx, readiness.SocketProbe(cfg.RuntimeSocket),
				cfg.ReadinessTimeout, cfg.ReadinessInterval)
			if d.Metrics != nil {
				d.Metrics.RecordReadinessWait("containerd-socket", time.Since(started))
			}
			if err != nil {
				return engine.Fatal("containerd socket never appeared", err)
			}

			return nil
		},
	}
}

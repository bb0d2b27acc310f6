package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nodeprep/nodeprep/pkg/checkpoint"
	"github.com/nodeprep/nodeprep/pkg/config"
	"github.com/nodeprep/nodeprep/pkg/engine"
	"github.com/nodeprep/nodeprep/pkg/fetch"
	"github.com/nodeprep/nodeprep/pkg/journal"
	"github.com/nodeprep/nodeprep/pkg/probe"
	"github.com/nodeprep/nodeprep/pkg/steps"
	"github.com/nodeprep/nodeprep/pkg/system"
	"github.com/nodeprep/nodeprep/pkg/telemetry"
)

func newUpCommand(version string) *cobra.Command {
	var (
		metricsListen string
		traceExporter string
		logFormat     string
	)

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Provision this host into a Kubernetes node",
		Long: `Run the provisioning sequence on this host.

Each step checks its checkpoint first and is skipped when already
complete, so the command is safe to re-run after an interruption or a
failure. A failed step aborts the run; fix the cause and run up again
to resume from that step.`,
		Example: `  # Provision with defaults
  sudo nodeprep up

  # Provision a specific Kubernetes minor, exposing metrics
  sudo NODEPREP_KUBERNETES_VERSION=1.30 nodeprep up --metrics-listen :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Geteuid() != 0 {
				return fmt.Errorf("nodeprep up must run as root")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tcfg := telemetry.DefaultConfig()
			tcfg.ServiceVersion = version
			tcfg.Logging.Format = logFormat
			if debug {
				tcfg.Logging.Level = "debug"
			}
			tcfg.Metrics.ListenAddress = metricsListen
			if traceExporter != "" {
				tcfg.Tracing.Enabled = true
				tcfg.Tracing.Exporter = traceExporter
			}

			tel, err := telemetry.NewTelemetry(tcfg)
			if err != nil {
				return err
			}
			ctx := tel.WithContext(cmd.Context())
			defer func() {
				if err := tel.Shutdown(context.Background()); err != nil {
					log.Warn().Err(err).Msg("telemetry shutdown failed")
				}
			}()

			if metricsListen != "" {
				if err := tel.Metrics.StartMetricsServer(); err != nil {
					tel.Logger.WithError(err).Warn("metrics server failed to start")
				}
			}

			store := checkpoint.NewStore(cfg.CheckpointDir)
			if err := store.Init(); err != nil {
				// An unavailable store degrades to "re-run everything":
				// Exists answers false and failed marks are warned past,
				// so the run stays correct, only slower.
				tel.Logger.WithError(err).Warn("checkpoint store unavailable, all steps will run")
			}
			if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
				return fmt.Errorf("failed to create work directory: %w", err)
			}

			opts := []engine.Option{
				engine.WithMetrics(tel.Metrics),
				engine.WithTracer(tel.Tracer),
			}

			// The journal is an audit trail; a host where SQLite cannot
			// open still gets provisioned.
			if cfg.JournalPath != "" {
				j, err := journal.Open(ctx, cfg.JournalPath)
				if err != nil {
					tel.Logger.WithError(err).Warn("run journal unavailable")
				} else {
					defer j.Close()
					opts = append(opts, engine.WithRecorder(j))
				}
			}

			run := system.NewRunner()
			apt := system.NewApt(run)
			services := system.NewSystemd(run)
			firewall := system.NewUFW(run)
			kernel := system.NewKernel(run)
			deps := steps.Deps{
				Runner:    run,
				Fetcher:   fetch.New(fetch.WithMaxAttempts(cfg.FetchMaxAttempts), fetch.WithBaseBackoff(cfg.FetchBaseBackoff), fetch.WithMetrics(tel.Metrics)),
				Packages:  apt,
				Repo:      apt,
				Services:  services,
				Firewall:  firewall,
				Runtime:   system.NewCrictl(run, cfg.RuntimeSocket),
				Bootstrap: system.NewKubeadm(run),
				Kernel:    kernel,
				Probes: &probe.Probes{
					Packages: apt,
					Services: services,
					Firewall: firewall,
					Kernel:   kernel,
				},
				Metrics: tel.Metrics,
			}

			started := time.Now()
			if err := engine.NewRunner(store, opts...).Run(ctx, steps.All(cfg, deps)); err != nil {
				return err
			}
			tel.Logger.Infof("host provisioned in %s", time.Since(started).Round(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "address to serve Prometheus metrics on (e.g. :9090)")
	cmd.Flags().StringVar(&traceExporter, "trace-exporter", "", "enable tracing with this exporter (otlp, stdout)")
	cmd.Flags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	return cmd
}

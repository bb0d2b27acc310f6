package steps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nodeprep/nodeprep/pkg/engine"
)

func TestMonitoringInstallsAndStartsExporter(t *testing.T) {
	srv := archiveServer(t)
	defer srv.Close()

	env := newTestEnv(t, srv)

	step := NewMonitoringStep(env.cfg, env.deps)
	if err := step.Action(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}

	binDir := filepath.Join(env.cfg.RootDir, "usr/local/bin")
	if !env.runner.ran("tar -C " + binDir + " --strip-components=1") {
		t.Errorf("expected binary extraction, ran %v", env.runner.commands)
	}

	unitPath := filepath.Join(env.cfg.RootDir, "etc/systemd/system/node_exporter.service")
	data, err := os.ReadFile(unitPath)
	if err != nil {
		t.Fatalf("failed to read unit: %v", err)
	}
	if !strings.Contains(string(data), "ExecStart=/usr/local/bin/node_exporter") {
		t.Errorf("unexpected unit contents:\n%s", data)
	}

	if env.services.reloads != 1 {
		t.Errorf("expected one daemon-reload, got %d", env.services.reloads)
	}
	if len(env.services.enabled) != 1 || env.services.enabled[0] != "node_exporter" {
		t.Errorf("expected node_exporter enabled, got %v", env.services.enabled)
	}
	if len(env.services.started) != 1 || env.services.started[0] != "node_exporter" {
		t.Errorf("expected node_exporter started, got %v", env.services.started)
	}
}

func TestMonitoringSkipsDownloadWhenBinaryPresent(t *testing.T) {
	env := newTestEnv(t, nil)

	binPath := filepath.Join(env.cfg.RootDir, "usr/local/bin/node_exporter")
	if err := writeFile(binPath, "#!/bin/sh\n", 0755); err != nil {
		t.Fatalf("failed to plant binary: %v", err)
	}

	step := NewMonitoringStep(env.cfg, env.deps)
	if err := step.Action(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if env.runner.ran("tar") {
		t.Errorf("present binary must not be re-extracted, ran %v", env.runner.commands)
	}
}

func TestMonitoringDownloadFailureIsSoft(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cfg.NodeExporterURL = "http://127.0.0.1:0/unreachable-%s-%s.tar.gz"

	step := NewMonitoringStep(env.cfg, env.deps)
	err := step.Action(context.Background())
	if err == nil {
		t.Fatal("expected a soft error")
	}
	if !engine.IsSoft(err) {
		t.Errorf("monitoring download failure must be soft, got %v", err)
	}
}

func TestMonitoringStartFailureIsSoft(t *testing.T) {
	env := newTestEnv(t, nil)

	binPath := filepath.Join(env.cfg.RootDir, "usr/local/bin/node_exporter")
	if err := writeFile(binPath, "#!/bin/sh\n", 0755); err != nil {
		t.Fatalf("failed to plant binary: %v", err)
	}
	env.services.startErr = errors.New("unit refused to start")

	step := NewMonitoringStep(env.cfg, env.deps)
	err := step.Action(context.Background())
	if err == nil {
		t.Fatal("expected a soft error")
	}
	if !engine.IsSoft(err) {
		t.Errorf("monitoring start failure must be soft, got %v", err)
	}
}

func TestMonitoringAlreadyActiveServiceIsNotRestarted(t *testing.T) {
	env := newTestEnv(t, nil)

	binPath := filepath.Join(env.cfg.RootDir, "usr/local/bin/node_exporter")
	if err := writeFile(binPath, "#!/bin/sh\n", 0755); err != nil {
		t.Fatalf("failed to plant binary: %v", err)
	}
	env.services.active["node_exporter"] = true

	step := NewMonitoringStep(env.cfg, env.deps)
	if err := step.Action(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if len(env.services.started) != 0 {
		t.Errorf("active exporter must not be started again, got %v", env.services.started)
	}
}

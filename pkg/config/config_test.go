package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.KubernetesVersion != Default().KubernetesVersion {
		t.Errorf("expected default version, got %s", cfg.KubernetesVersion)
	}
}

func TestLoadExplicitMissingFileIsAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("explicitly named missing file must fail")
	}
}

func TestLoadAppliesYAMLAndEnvInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(`
kubernetes_version: "1.29"
containerd_version: "1.7.20"
hostname: node-a
`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// Environment outranks the file.
	t.Setenv("NODEPREP_KUBERNETES_VERSION", "1.30.2")
	t.Setenv("NODEPREP_FETCH_MAX_ATTEMPTS", "5")
	t.Setenv("NODEPREP_READINESS_TIMEOUT", "30s")
	t.Setenv("NODEPREP_FIREWALL_PORTS", "6443/tcp, 10250/tcp")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.KubernetesVersion != "1.30.2" {
		t.Errorf("env must outrank the file, got %s", cfg.KubernetesVersion)
	}
	if cfg.ContainerdVersion != "1.7.20" {
		t.Errorf("file must outrank defaults, got %s", cfg.ContainerdVersion)
	}
	if cfg.Hostname != "node-a" {
		t.Errorf("expected hostname from file, got %s", cfg.Hostname)
	}
	if cfg.FetchMaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.FetchMaxAttempts)
	}
	if cfg.ReadinessTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.ReadinessTimeout)
	}
	if len(cfg.FirewallPorts) != 2 || cfg.FirewallPorts[0] != "6443/tcp" || cfg.FirewallPorts[1] != "10250/tcp" {
		t.Errorf("unexpected firewall ports: %v", cfg.FirewallPorts)
	}
}

func TestLoadRejectsInvalidVersion(t *testing.T) {
	t.Setenv("NODEPREP_KUBERNETES_VERSION", "   ")
	if _, err := Load(""); err == nil {
		t.Fatal("blank version must fail validation")
	}
}

func TestValidateRejectsEmptyRequiredFields(t *testing.T) {
	cfg := Default()
	cfg.CheckpointDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty checkpoint dir must fail validation")
	}
}

func TestDownloadURLRendering(t *testing.T) {
	cfg := Default()
	cfg.ContainerdVersion = "1.7.22"
	cfg.CNIPluginsVersion = "1.5.1"
	cfg.NodeExporterVersion = "1.8.2"

	arch := cfg.Arch()
	if got := cfg.ContainerdDownloadURL(); !strings.Contains(got, "v1.7.22/containerd-1.7.22-linux-"+arch) {
		t.Errorf("unexpected containerd URL: %s", got)
	}
	if got := cfg.CNIPluginsDownloadURL(); !strings.Contains(got, "cni-plugins-linux-"+arch+"-v1.5.1") {
		t.Errorf("unexpected CNI URL: %s", got)
	}
	if got := cfg.NodeExporterDownloadURL(); !strings.Contains(got, "node_exporter-1.8.2.linux-"+arch) {
		t.Errorf("unexpected node_exporter URL: %s", got)
	}
}

func TestKubernetesMinorAndRepoLine(t *testing.T) {
	cfg := Default()

	cfg.KubernetesVersion = "1.28.5"
	if got := cfg.KubernetesMinor(); got != "1.28" {
		t.Errorf("expected minor 1.28, got %s", got)
	}

	cfg.KubernetesVersion = "1.28"
	if got := cfg.KubernetesMinor(); got != "1.28" {
		t.Errorf("expected minor 1.28, got %s", got)
	}

	if got := cfg.RepoKeyDownloadURL(); !strings.Contains(got, "v1.28") {
		t.Errorf("expected key URL for v1.28, got %s", got)
	}

	line := cfg.RenderRepoLine("/etc/apt/keyrings/kubernetes.gpg")
	if !strings.Contains(line, "signed-by=/etc/apt/keyrings/kubernetes.gpg") {
		t.Errorf("expected signed-by clause, got %s", line)
	}
	if !strings.Contains(line, "v1.28") {
		t.Errorf("expected v1.28 repo, got %s", line)
	}
}

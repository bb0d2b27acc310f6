// Package config holds the explicit configuration struct threaded into
// every step at construction time. There are no ambient lookups inside
// step bodies: defaults are defined here, optionally overridden by a
// YAML file and then by NODEPREP_* environment variables. Absence of an
// override is never an error.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nodeprep/nodeprep/pkg/version"
)

// DefaultPath is the optional config file location.
const DefaultPath = "/etc/nodeprep/config.yaml"

// Config is the full configuration of a provisioning run.
type Config struct {
	// KubernetesVersion is the desired kubelet/kubeadm/kubectl version,
	// exact ("1.28.3") or minor wildcard ("1.28").
	KubernetesVersion string `yaml:"kubernetes_version" validate:"required"`

	// ContainerdVersion is the exact containerd release to install.
	ContainerdVersion string `yaml:"containerd_version" validate:"required"`

	// CNIPluginsVersion is the CNI plugins release to install.
	CNIPluginsVersion string `yaml:"cni_plugins_version" validate:"required"`

	// NodeExporterVersion is the node_exporter release to install.
	NodeExporterVersion string `yaml:"node_exporter_version" validate:"required"`

	// Hostname, when set, is applied to the host during OS preparation.
	Hostname string `yaml:"hostname"`

	// Timezone, when set, is applied to the host during OS preparation.
	Timezone string `yaml:"timezone"`

	// RootDir prefixes every filesystem path the steps write. "/" on a
	// real host; a scratch directory in tests.
	RootDir string `yaml:"root_dir" validate:"required"`

	// CheckpointDir is the checkpoint store root.
	CheckpointDir string `yaml:"checkpoint_dir" validate:"required"`

	// JournalPath is the run-history database. Empty disables the journal.
	JournalPath string `yaml:"journal_path"`

	// WorkDir receives downloaded artifacts before extraction.
	WorkDir string `yaml:"work_dir" validate:"required"`

	// RuntimeSocket is the containerd CRI socket path.
	RuntimeSocket string `yaml:"runtime_socket" validate:"required"`

	// FirewallPorts are the ufw allow-rule signatures for a node.
	FirewallPorts []string `yaml:"firewall_ports" validate:"min=1"`

	// Download URL templates; %s receives version and architecture.
	ContainerdURL   string `yaml:"containerd_url" validate:"required"`
	CNIPluginsURL   string `yaml:"cni_plugins_url" validate:"required"`
	NodeExporterURL string `yaml:"node_exporter_url" validate:"required"`

	// RepoKeyURL and RepoLine template the Kubernetes apt repository;
	// %s receives the minor version (and keyring path for the line).
	RepoKeyURL string `yaml:"repo_key_url" validate:"required"`
	RepoLine   string `yaml:"repo_line" validate:"required"`

	// ReadinessTimeout and ReadinessInterval bound the runtime
	// readiness gate.
	ReadinessTimeout  time.Duration `yaml:"-"`
	ReadinessInterval time.Duration `yaml:"-"`

	// FetchMaxAttempts and FetchBaseBackoff bound artifact downloads.
	FetchMaxAttempts int           `yaml:"fetch_max_attempts" validate:"gte=1"`
	FetchBaseBackoff time.Duration `yaml:"-"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		KubernetesVersion:   "1.31",
		ContainerdVersion:   "1.7.22",
		CNIPluginsVersion:   "1.5.1",
		NodeExporterVersion: "1.8.2",
		RootDir:             "/",
		CheckpointDir:       "/var/lib/nodeprep/checkpoints",
		JournalPath:         "/var/lib/nodeprep/journal.db",
		WorkDir:             "/var/lib/nodeprep/downloads",
		RuntimeSocket:       "/run/containerd/containerd.sock",
		FirewallPorts: []string{
			"6443/tcp",       // API server
			"2379:2380/tcp",  // etcd
			"10250/tcp",      // kubelet
			"10256/tcp",      // kube-proxy health
			"30000:32767/tcp", // NodePort range
		},
		ContainerdURL:     "https://github.com/containerd/containerd/releases/download/v%[1]s/containerd-%[1]s-linux-%[2]s.tar.gz",
		CNIPluginsURL:     "https://github.com/containernetworking/plugins/releases/download/v%[1]s/cni-plugins-linux-%[2]s-v%[1]s.tgz",
		NodeExporterURL:   "https://github.com/prometheus/node_exporter/releases/download/v%[1]s/node_exporter-%[1]s.linux-%[2]s.tar.gz",
		RepoKeyURL:        "https://pkgs.k8s.io/core:/stable:/v%s/deb/Release.key",
		RepoLine:          "deb [signed-by=%s] https://pkgs.k8s.io/core:/stable:/v%s/deb/ /",
		ReadinessTimeout:  90 * time.Second,
		ReadinessInterval: 2 * time.Second,
		FetchMaxAttempts:  3,
		FetchBaseBackoff:  2 * time.Second,
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (or DefaultPath when path is empty; a missing file is not an error),
// then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Optional default file
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := version.ParseSpecifier(c.KubernetesVersion); err != nil {
		return fmt.Errorf("invalid kubernetes version: %w", err)
	}
	return nil
}

// applyEnv overlays NODEPREP_* environment variables.
func (c *Config) applyEnv() {
	envString("NODEPREP_KUBERNETES_VERSION", &c.KubernetesVersion)
	envString("NODEPREP_CONTAINERD_VERSION", &c.ContainerdVersion)
	envString("NODEPREP_CNI_PLUGINS_VERSION", &c.CNIPluginsVersion)
	envString("NODEPREP_NODE_EXPORTER_VERSION", &c.NodeExporterVersion)
	envString("NODEPREP_HOSTNAME", &c.Hostname)
	envString("NODEPREP_TIMEZONE", &c.Timezone)
	envString("NODEPREP_ROOT_DIR", &c.RootDir)
	envString("NODEPREP_CHECKPOINT_DIR", &c.CheckpointDir)
	envString("NODEPREP_JOURNAL_PATH", &c.JournalPath)
	envString("NODEPREP_WORK_DIR", &c.WorkDir)
	envString("NODEPREP_RUNTIME_SOCKET", &c.RuntimeSocket)
	envInt("NODEPREP_FETCH_MAX_ATTEMPTS", &c.FetchMaxAttempts)
	envDuration("NODEPREP_FETCH_BASE_BACKOFF", &c.FetchBaseBackoff)
	envDuration("NODEPREP_READINESS_TIMEOUT", &c.ReadinessTimeout)
	envDuration("NODEPREP_READINESS_INTERVAL", &c.ReadinessInterval)

	if v := os.Getenv("NODEPREP_FIREWALL_PORTS"); v != "" {
		var ports []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				ports = append(ports, p)
			}
		}
		if len(ports) > 0 {
			c.FirewallPorts = ports
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Arch returns the artifact architecture suffix for this host.
func (c *Config) Arch() string {
	return runtime.GOARCH
}

// ContainerdDownloadURL renders the containerd artifact URL.
func (c *Config) ContainerdDownloadURL() string {
	return fmt.Sprintf(c.ContainerdURL, c.ContainerdVersion, c.Arch())
}

// CNIPluginsDownloadURL renders the CNI plugins artifact URL.
func (c *Config) CNIPluginsDownloadURL() string {
	return fmt.Sprintf(c.CNIPluginsURL, c.CNIPluginsVersion, c.Arch())
}

// NodeExporterDownloadURL renders the node_exporter artifact URL.
func (c *Config) NodeExporterDownloadURL() string {
	return fmt.Sprintf(c.NodeExporterURL, c.NodeExporterVersion, c.Arch())
}

// KubernetesMinor returns the major.minor of the desired version, which
// selects the package repository.
func (c *Config) KubernetesMinor() string {
	if version.Minor(c.KubernetesVersion) != "" {
		return version.Minor(c.KubernetesVersion)
	}
	return c.KubernetesVersion
}

// RepoKeyDownloadURL renders the repository signing key URL.
func (c *Config) RepoKeyDownloadURL() string {
	return fmt.Sprintf(c.RepoKeyURL, c.KubernetesMinor())
}

// RenderRepoLine renders the apt source line for the given keyring path.
func (c *Config) RenderRepoLine(keyringPath string) string {
	return fmt.Sprintf(c.RepoLine, keyringPath, c.KubernetesMinor())
}

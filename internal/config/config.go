// Package config loads the asyncload daemon configuration from a YAML
// file. A missing file yields the defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/warpdl/asyncload/common"
	"github.com/warpdl/asyncload/internal/timer"
	"github.com/warpdl/asyncload/pkg/loadlib"
	"gopkg.in/yaml.v3"
)

const (
	// AppDir is the directory under the user config dir holding asyncload files.
	AppDir = "asyncload"
	// FileName is the configuration file name.
	FileName = "config.yaml"

	DefaultMaxInflight = 64
)

const defaultConfigYAML = `# asyncload daemon configuration
scheduler:
  max_concurrent_loads: 3
  load_timeout: 30s
  cleanup_interval: 5s
  max_cancelled_ids: 100
  # Run compaction on a cron schedule instead of cleanup_interval.
  # compaction_cron: "*/1 * * * *"

loader:
  # root: /path/to/views          # file:// descriptors
  # script_root: /path/to/scripts # script:// classes
  # catalog_path: /path/to/catalog.db
  max_inflight: 64
  # proxy: socks5://127.0.0.1:1080
  # ssh_key_path: ~/.ssh/id_ed25519

rpc:
  listen: 127.0.0.1:7490
  # socket: /tmp/asyncload.sock
`

// SchedulerConfig configures the load scheduler.
type SchedulerConfig struct {
	MaxConcurrentLoads int           `yaml:"max_concurrent_loads"`
	LoadTimeout        time.Duration `yaml:"load_timeout"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`
	MaxCancelledIDs    int           `yaml:"max_cancelled_ids"`
	CompactionCron     string        `yaml:"compaction_cron,omitempty"`
}

// LoaderConfig configures the loader backends.
type LoaderConfig struct {
	Root        string `yaml:"root,omitempty"`
	ScriptRoot  string `yaml:"script_root,omitempty"`
	CatalogPath string `yaml:"catalog_path,omitempty"`
	MaxInflight int64  `yaml:"max_inflight"`
	Proxy       string `yaml:"proxy,omitempty"`
	SSHKeyPath  string `yaml:"ssh_key_path,omitempty"`
	KnownHosts  string `yaml:"known_hosts,omitempty"`
}

// RPCConfig configures the daemon's RPC endpoints.
type RPCConfig struct {
	Listen string `yaml:"listen"`
	Socket string `yaml:"socket,omitempty"`
	// Secret is the bearer token. Empty means keyring or generated.
	Secret string `yaml:"secret,omitempty"`
}

// Config models config.yaml.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Loader    LoaderConfig    `yaml:"loader"`
	RPC       RPCConfig       `yaml:"rpc"`
	LogLevel  string          `yaml:"log_level,omitempty"`

	// Path is the file the config was read from, if any.
	Path string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrentLoads: loadlib.DefaultMaxConcurrentLoads,
			LoadTimeout:        loadlib.DefaultLoadTimeout,
			CleanupInterval:    loadlib.DefaultCleanupInterval,
			MaxCancelledIDs:    loadlib.DefaultMaxCancelledIDs,
		},
		Loader: LoaderConfig{
			MaxInflight: DefaultMaxInflight,
		},
		RPC: RPCConfig{
			Listen: common.DefaultListenAddr,
		},
	}
}

// Dir returns the asyncload configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppDir), nil
}

// DefaultPath returns $ASYNCLOAD_CONFIG or <user config dir>/asyncload/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(common.ConfigPathEnv); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the configuration at path over the defaults. An empty path
// selects DefaultPath. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg.applyDerived()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDerived fills values that depend on other settings.
func (c *Config) applyDerived() {
	if c.Loader.KnownHosts == "" {
		if dir, err := Dir(); err == nil {
			c.Loader.KnownHosts = filepath.Join(dir, "known_hosts")
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	s := c.Scheduler
	if s.MaxConcurrentLoads < 1 {
		return fmt.Errorf("scheduler.max_concurrent_loads must be at least 1, got %d", s.MaxConcurrentLoads)
	}
	if s.LoadTimeout < loadlib.MinLoadTimeout {
		return fmt.Errorf("scheduler.load_timeout must be at least %s, got %s", loadlib.MinLoadTimeout, s.LoadTimeout)
	}
	if s.CleanupInterval <= 0 && s.CompactionCron == "" {
		return fmt.Errorf("scheduler.cleanup_interval must be positive, got %s", s.CleanupInterval)
	}
	if s.MaxCancelledIDs < 2 {
		return fmt.Errorf("scheduler.max_cancelled_ids must be at least 2, got %d", s.MaxCancelledIDs)
	}
	if s.CompactionCron != "" {
		if err := timer.ValidateCron(s.CompactionCron); err != nil {
			return fmt.Errorf("scheduler.compaction_cron: %w", err)
		}
	}
	if c.Loader.MaxInflight < 1 {
		return fmt.Errorf("loader.max_inflight must be at least 1, got %d", c.Loader.MaxInflight)
	}
	if c.RPC.Listen == "" && c.RPC.Socket == "" {
		return errors.New("rpc.listen or rpc.socket is required")
	}
	return nil
}

// WriteDefault writes a commented default configuration to path unless a
// file already exists there. Returns true if the file was created.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0600); err != nil {
		return false, err
	}
	return true, nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"git.sr.ht/~jakintosh/authclient/pkg/client"
)

const (
	VersionV1 = "v1"

	defaultConfigDirName = "authctl"
	defaultConfigFile    = "config.yaml"
	defaultTokenFile     = "tokens.json"
	defaultTokenDB       = "tokens.sqlite"
)

// Store kinds accepted by --store.
const (
	StoreFile    = "file"
	StoreKeyring = "keyring"
	StoreSQLite  = "sqlite"
	StoreRedis   = "redis"
	StoreMemory  = "memory"
)

type Config struct {
	Version string        `yaml:"version"`
	Client  client.Config `yaml:",inline"`
	Store   StoreConfig   `yaml:"store,omitempty"`
}

type StoreConfig struct {
	Kind      string `yaml:"kind,omitempty"`
	Path      string `yaml:"path,omitempty"`
	RedisAddr string `yaml:"redis_addr,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Client:  client.DefaultConfig(),
		Store:   StoreConfig{Kind: StoreFile},
	}
}

// Load reads the YAML config at path. Fields the file leaves out keep
// their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func DefaultConfigPath() string {
	if env := os.Getenv("AUTHCTL_CONFIG"); env != "" {
		return env
	}
	return configFile(defaultConfigFile)
}

// DefaultStorePath is where the file and sqlite stores keep tokens when
// no path is configured.
func DefaultStorePath(kind string) string {
	if kind == StoreSQLite {
		return configFile(defaultTokenDB)
	}
	return configFile(defaultTokenFile)
}

func configFile(name string) string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, name)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".authctl", name)
}

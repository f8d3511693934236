package client

import (
	"strings"
	"time"
)

const (
	DefaultStorageKey    = "authToken"
	DefaultApplication   = "default"
	DefaultStorageTTL    = 24 * time.Hour
	DefaultRefreshMargin = 600 * time.Second
)

// Config is supplied once at construction. AuthURL and APIURL are
// required.
type Config struct {
	AuthURL          string        `yaml:"auth_url"`
	APIURL           string        `yaml:"api_url"`
	StorageKey       string        `yaml:"storage_key"`
	DisableAutoLogin bool          `yaml:"disable_auto_login"`
	Database         string        `yaml:"database"`
	Application      string        `yaml:"application"`
	StorageTTL       time.Duration `yaml:"storage_ttl"`
	RefreshMargin    time.Duration `yaml:"refresh_margin"`
}

func DefaultConfig() Config {
	return Config{
		StorageKey:    DefaultStorageKey,
		Application:   DefaultApplication,
		StorageTTL:    DefaultStorageTTL,
		RefreshMargin: DefaultRefreshMargin,
	}
}

// MergeConfig overlays the non-zero fields of cfg on [DefaultConfig],
// strips one trailing slash from the URLs, and fails with a
// [*MissingConfigError] when AuthURL or APIURL is empty.
func MergeConfig(cfg Config) (Config, error) {
	var missing []string
	if cfg.AuthURL == "" {
		missing = append(missing, "AuthURL")
	}
	if cfg.APIURL == "" {
		missing = append(missing, "APIURL")
	}
	if len(missing) > 0 {
		return Config{}, &MissingConfigError{Fields: missing}
	}

	merged := DefaultConfig()
	merged.AuthURL = strings.TrimSuffix(cfg.AuthURL, "/")
	merged.APIURL = strings.TrimSuffix(cfg.APIURL, "/")
	merged.DisableAutoLogin = cfg.DisableAutoLogin
	merged.Database = cfg.Database
	if cfg.StorageKey != "" {
		merged.StorageKey = cfg.StorageKey
	}
	if cfg.Application != "" {
		merged.Application = cfg.Application
	}
	if cfg.StorageTTL > 0 {
		merged.StorageTTL = cfg.StorageTTL
	}
	if cfg.RefreshMargin > 0 {
		merged.RefreshMargin = cfg.RefreshMargin
	}
	return merged, nil
}

func (c Config) refreshKey() string {
	return c.StorageKey + "_refresh"
}

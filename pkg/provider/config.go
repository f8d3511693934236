package provider

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is read from an optional YAML file, then overlaid with the
// environment. A .env file in the working directory is loaded first.
type Config struct {
	ListenAddr      string        `yaml:"listen" env:"PROVIDER_LISTEN" env-default:"127.0.0.1:8080"`
	IssuerDomain    string        `yaml:"issuer_domain" env:"PROVIDER_ISSUER_DOMAIN" env-default:"auth.localhost"`
	DataDir         string        `yaml:"data_dir" env:"PROVIDER_DATA_DIR" env-default:"./provider-data"`
	AccessLifetime  time.Duration `yaml:"access_lifetime" env:"PROVIDER_ACCESS_LIFETIME" env-default:"30m"`
	RefreshLifetime time.Duration `yaml:"refresh_lifetime" env:"PROVIDER_REFRESH_LIFETIME" env-default:"72h"`
	Debug           bool          `yaml:"debug" env:"PROVIDER_DEBUG" env-default:"false"`
}

func (c Config) DatabasePath() string   { return filepath.Join(c.DataDir, "db.sqlite") }
func (c Config) CatalogDir() string     { return filepath.Join(c.DataDir, "applications") }
func (c Config) SigningKeyPath() string { return filepath.Join(c.DataDir, "credentials", "signing_key") }

// LoadConfig reads path when non-empty and always applies the
// environment on top.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}
	return &cfg, nil
}

// LoadOrCreateSigningKey reads a DER encoded EC private key, generating
// and writing a new P-256 key when the file does not exist.
func LoadOrCreateSigningKey(path string) (*ecdsa.PrivateKey, error) {
	der, err := os.ReadFile(path)
	if err == nil {
		key, err := x509.ParseECPrivateKey(der)
		if err != nil {
			return nil, fmt.Errorf("failed to parse signing key '%s': %w", path, err)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	der, err = x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}
	if err := os.WriteFile(path, der, 0o600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	return key, nil
}

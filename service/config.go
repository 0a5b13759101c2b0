package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/viant/kdb/digest"
	"github.com/viant/scy/cred/secret"
	"gopkg.in/yaml.v3"
)

// Config holds persistent settings, usually loaded from ~/.config/kdb/config.yaml.
type Config struct {
	CacheDir  string `yaml:"cacheDir"`
	Threads   int    `yaml:"threads"`
	BatchSize int    `yaml:"batchSize"`
	// Algorithm is the content digest algorithm; changing it voids existing ledgers.
	Algorithm string `yaml:"algorithm"`
	// Datasets maps a data-set type to its organism groups.
	Datasets map[string][]string `yaml:"datasets"`
	Include  []string            `yaml:"include"`
	Exclude  []string            `yaml:"exclude"`
	// IgnoreFile adds exclusion patterns from a .gitignore style file.
	IgnoreFile string `yaml:"ignoreFile"`
	// MinFileSize skips genome files smaller than this many bytes.
	MinFileSize int64       `yaml:"minFileSize"`
	History     StoreConfig `yaml:"history"`
	MetricsFile string      `yaml:"metricsFile"`
	Kraken2     string      `yaml:"kraken2"`
	NCBIServer  string      `yaml:"ncbiServer"`
	// LockTimeoutSeconds bounds the wait for another writer; 0 fails immediately.
	LockTimeoutSeconds int `yaml:"lockTimeoutSeconds"`
}

// StoreConfig defines the pass history store.
type StoreConfig struct {
	DSN      string `yaml:"dsn"`
	Driver   string `yaml:"driver"`
	Secret   string `yaml:"secret,omitempty"`
	Disabled bool   `yaml:"disabled"`
}

// DefaultConfigPath returns ~/.config/kdb/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "kdb", "config.yaml")
}

// DefaultCacheDir returns the per platform cache location.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kdb")
	}
	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Caches", "kdb")
	}
	return filepath.Join(home, ".cache", "kdb")
}

// DefaultConfig returns settings used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a YAML config. An empty path loads the default location and
// falls back to defaults when that file does not exist.
func LoadConfig(path string) (*Config, error) {
	optional := path == ""
	if optional {
		path = DefaultConfigPath()
	}
	path, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if cfg.CacheDir, err = expandUserPath(cfg.CacheDir); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = expandUserPath(cfg.MetricsFile); err != nil {
		return nil, err
	}
	if cfg.IgnoreFile, err = expandUserPath(cfg.IgnoreFile); err != nil {
		return nil, err
	}
	if cfg.History.DSN != "" {
		if expanded, err := expandStoreDSN(cfg.History.DSN, cfg.History.Driver); err == nil {
			cfg.History.DSN = expanded
		} else {
			return nil, err
		}
	}
	if cfg.History.Secret != "" {
		if expanded, err := ExpandDSNWithSecret(context.Background(), cfg.History.DSN, cfg.History.Secret); err == nil {
			cfg.History.DSN = expanded
		} else {
			return nil, err
		}
	}
	cfg.applyDefaults()
	if !digest.Supported(cfg.Algorithm) {
		return nil, fmt.Errorf("config: unsupported algorithm %q", cfg.Algorithm)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir()
	}
	if c.Threads <= 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.Algorithm == "" {
		c.Algorithm = digest.Highway256
	}
}

func (c *Config) lockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

func expandUserPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed[0] != '~' {
		return path, nil
	}
	if trimmed != "~" && !strings.HasPrefix(trimmed, "~/") {
		return "", fmt.Errorf("config: unsupported ~user path: %s", path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~")), nil
}

func expandStoreDSN(dsn, driver string) (string, error) {
	if dsn == "" {
		return dsn, nil
	}
	// Expand user path only for sqlite-like DSNs or plain paths.
	if driver == "sqlite" || dsn[0] == '~' {
		return expandUserPath(dsn)
	}
	return dsn, nil
}

// ExpandDSNWithSecret loads a secret and expands placeholders in the DSN.
func ExpandDSNWithSecret(ctx context.Context, dsn, secretRef string) (string, error) {
	secretRef = strings.TrimSpace(secretRef)
	if secretRef == "" {
		return dsn, nil
	}
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("secret %q provided but dsn is empty", secretRef)
	}
	svc := secret.New()
	sec, err := svc.Lookup(ctx, secret.Resource(secretRef))
	if err != nil {
		return "", err
	}
	return sec.Expand(dsn), nil
}

// Package config loads the host-side configuration: where the two
// storage roots live, how chatty logging is, and whether the audit log
// is written.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside the config directory.
const FileName = "config.yaml"

// ErrConfigNotFound is returned when no config file exists.
var ErrConfigNotFound = errors.New("config file not found")

// Config holds the host configuration. On the hardware device the two
// roots are fixed by the platform; on a host they are plain directories.
type Config struct {
	// InternalPath is the always-available storage root and also holds
	// the device salt.
	InternalPath string `yaml:"internal_path"`
	// RemovablePath is the removable storage root. It may be absent;
	// absence is treated as "no card inserted".
	RemovablePath string `yaml:"removable_path"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// AuditEnabled controls the HMAC-chained operation log.
	AuditEnabled bool `yaml:"audit_enabled"`
	// AuditPath overrides where audit logs are written. Empty means
	// <config dir>/audit.
	AuditPath string `yaml:"audit_path,omitempty"`
}

// Dir returns the config directory, honoring SPECTERKEY_HOME.
func Dir() (string, error) {
	if home := os.Getenv("SPECTERKEY_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".specterkey"), nil
}

// Default returns the configuration used when no file exists.
func Default(dir string) *Config {
	return &Config{
		InternalPath:  filepath.Join(dir, "internal"),
		RemovablePath: filepath.Join(dir, "sdcard"),
		LogLevel:      "info",
		AuditEnabled:  true,
	}
}

// Load reads the config file under dir. A missing file returns
// ErrConfigNotFound so callers can fall back to Default.
func Load(dir string) (*Config, error) {
	content, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default(dir)
	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.InternalPath == "" {
		return nil, errors.New("config: internal_path must not be empty")
	}
	return cfg, nil
}

// Save writes cfg under dir with owner-only permissions, creating the
// directory if needed.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadOrDefault loads the config under dir, falling back to Default when
// no file exists.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if errors.Is(err, ErrConfigNotFound) {
		return Default(dir), nil
	}
	return cfg, err
}

// AuditDir returns the directory audit logs are written to.
func (c *Config) AuditDir(dir string) string {
	if c.AuditPath != "" {
		return c.AuditPath
	}
	return filepath.Join(dir, "audit")
}

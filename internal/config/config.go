// Package config loads daemon configuration: defaults, then an optional
// TOML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds runtime configuration for the orchestration daemon.
type Config struct {
	LogLevel string `env:"STATECORE_LOG_LEVEL"`

	// StorageDriver selects the persistence adapter: "sqlite", "file", or
	// "memory".
	StorageDriver string `env:"STATECORE_STORAGE_DRIVER"`
	// StoragePath is the database file (sqlite) or snapshot directory (file).
	StoragePath string `env:"STATECORE_STORAGE_PATH"`

	CleanupInterval     time.Duration `env:"STATECORE_CLEANUP_INTERVAL"`
	InactivityThreshold time.Duration `env:"STATECORE_INACTIVITY_THRESHOLD"`

	CoordinatorWorkers  int           `env:"STATECORE_COORDINATOR_WORKERS"`
	CoordinatorMaxTries uint          `env:"STATECORE_COORDINATOR_MAX_TRIES"`
	CoordinatorMaxDelay time.Duration `env:"STATECORE_COORDINATOR_MAX_DELAY"`
}

// fileConfig mirrors Config but uses strings for durations to keep the TOML
// file human-friendly ("5m" instead of nanosecond integers).
type fileConfig struct {
	LogLevel            string `toml:"log_level"`
	StorageDriver       string `toml:"storage_driver"`
	StoragePath         string `toml:"storage_path"`
	CleanupInterval     string `toml:"cleanup_interval"`
	InactivityThreshold string `toml:"inactivity_threshold"`
	CoordinatorWorkers  int    `toml:"coordinator_workers"`
	CoordinatorMaxTries uint   `toml:"coordinator_max_tries"`
	CoordinatorMaxDelay string `toml:"coordinator_max_delay"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		LogLevel:            "info",
		StorageDriver:       "sqlite",
		StoragePath:         "statecore.db",
		CleanupInterval:     5 * time.Minute,
		InactivityThreshold: 30 * time.Minute,
		CoordinatorWorkers:  2,
		CoordinatorMaxTries: 5,
		CoordinatorMaxDelay: 5 * time.Second,
	}
}

// DefaultPath returns the conventional config file location,
// $HOME/.statecore/config.toml, or "" when the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".statecore", "config.toml")
}

// Load builds the effective configuration. A missing file at path is only
// an error when the path was explicitly provided.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			var fc fileConfig
			if err := toml.Unmarshal(b, &fc); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
			if err := applyFile(&cfg, fc); err != nil {
				return cfg, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// fall through to env
		default:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) error {
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.StorageDriver != "" {
		cfg.StorageDriver = fc.StorageDriver
	}
	if fc.StoragePath != "" {
		cfg.StoragePath = fc.StoragePath
	}
	if fc.CoordinatorWorkers != 0 {
		cfg.CoordinatorWorkers = fc.CoordinatorWorkers
	}
	if fc.CoordinatorMaxTries != 0 {
		cfg.CoordinatorMaxTries = fc.CoordinatorMaxTries
	}
	if err := setDuration(fc.CleanupInterval, &cfg.CleanupInterval); err != nil {
		return fmt.Errorf("cleanup_interval: %w", err)
	}
	if err := setDuration(fc.InactivityThreshold, &cfg.InactivityThreshold); err != nil {
		return fmt.Errorf("inactivity_threshold: %w", err)
	}
	if err := setDuration(fc.CoordinatorMaxDelay, &cfg.CoordinatorMaxDelay); err != nil {
		return fmt.Errorf("coordinator_max_delay: %w", err)
	}
	return nil
}

func setDuration(raw string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "sqlite", "file", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.StorageDriver != "memory" && c.StoragePath == "" {
		return errors.New("storage_path is required")
	}
	if c.CleanupInterval <= 0 {
		return errors.New("cleanup_interval must be positive")
	}
	if c.InactivityThreshold <= 0 {
		return errors.New("inactivity_threshold must be positive")
	}
	if c.CoordinatorWorkers <= 0 {
		return errors.New("coordinator_workers must be positive")
	}
	return nil
}

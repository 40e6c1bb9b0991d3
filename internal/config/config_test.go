package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", false)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StorageDriver != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", cfg.StorageDriver)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("expected 5m cleanup interval, got %v", cfg.CleanupInterval)
	}
	if cfg.InactivityThreshold != 30*time.Minute {
		t.Errorf("expected 30m inactivity threshold, got %v", cfg.InactivityThreshold)
	}
	if cfg.CoordinatorWorkers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.CoordinatorWorkers)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
storage_driver = "file"
storage_path = "/tmp/statecore"
cleanup_interval = "90s"
coordinator_workers = 4
`)
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug, got %q", cfg.LogLevel)
	}
	if cfg.StorageDriver != "file" || cfg.StoragePath != "/tmp/statecore" {
		t.Errorf("unexpected storage config: %s %s", cfg.StorageDriver, cfg.StoragePath)
	}
	if cfg.CleanupInterval != 90*time.Second {
		t.Errorf("expected 90s cleanup interval, got %v", cfg.CleanupInterval)
	}
	// Unset file keys keep their defaults.
	if cfg.InactivityThreshold != 30*time.Minute {
		t.Errorf("expected default inactivity threshold, got %v", cfg.InactivityThreshold)
	}
	if cfg.CoordinatorWorkers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.CoordinatorWorkers)
	}
}

func TestLoadFileBadDuration(t *testing.T) {
	path := writeConfig(t, `cleanup_interval = "soon"`)
	if _, err := Load(path, true); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")

	// An implicit default path may not exist.
	if _, err := Load(missing, false); err != nil {
		t.Errorf("expected missing implicit file to be tolerated: %v", err)
	}
	// An explicitly requested file must.
	if _, err := Load(missing, true); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `log_level = "warn"`)
	t.Setenv("STATECORE_LOG_LEVEL", "trace")
	t.Setenv("STATECORE_INACTIVITY_THRESHOLD", "1h")

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "trace" {
		t.Errorf("expected env to win over file, got %q", cfg.LogLevel)
	}
	if cfg.InactivityThreshold != time.Hour {
		t.Errorf("expected 1h inactivity threshold from env, got %v", cfg.InactivityThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"memory driver without path", func(c *Config) { c.StorageDriver = "memory"; c.StoragePath = "" }, true},
		{"unknown driver", func(c *Config) { c.StorageDriver = "postgres" }, false},
		{"sqlite without path", func(c *Config) { c.StoragePath = "" }, false},
		{"zero cleanup interval", func(c *Config) { c.CleanupInterval = 0 }, false},
		{"zero inactivity threshold", func(c *Config) { c.InactivityThreshold = 0 }, false},
		{"zero workers", func(c *Config) { c.CoordinatorWorkers = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid config: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enisyncd.conf")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `
[general]
interval_seconds = 15
debounce_ms = 250
grace_period_seconds = 120

[manifest]
endpoint = "http://169.254.169.254/v1/network/interfaces"
timeout_seconds = 3

[routing]
rule_priority_base = 2000
table_base = 20000
table_span = 500
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.General.IntervalSeconds != 15 {
		t.Errorf("IntervalSeconds = %d, want 15", cfg.General.IntervalSeconds)
	}
	if cfg.Manifest.Endpoint != "http://169.254.169.254/v1/network/interfaces" {
		t.Errorf("Endpoint = %q", cfg.Manifest.Endpoint)
	}
	if cfg.Routing.TableBase != 20000 {
		t.Errorf("TableBase = %d, want 20000", cfg.Routing.TableBase)
	}

	// Omitted sections keep their defaults.
	if cfg.Backoff == nil || cfg.Backoff.BaseMs != 1000 {
		t.Errorf("Backoff defaults not applied: %+v", cfg.Backoff)
	}
	if cfg.API == nil || cfg.API.Enabled {
		t.Errorf("API defaults not applied: %+v", cfg.API)
	}

	if err := cfg.ValidateConfig(); err != nil {
		t.Errorf("ValidateConfig() error = %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.conf")); err == nil {
		t.Errorf("LoadConfig() expected error for missing file")
	}
}

func TestLoadConfig_ParseError(t *testing.T) {
	path := writeTempConfig(t, "[general\ninterval_seconds = nope")
	if _, err := LoadConfig(path); err == nil {
		t.Errorf("LoadConfig() expected parse error")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "no manifest source",
			mutate:  func(cfg *Config) { cfg.Manifest.Endpoint = "" },
			wantErr: "must specify either endpoint or file",
		},
		{
			name: "both manifest sources",
			mutate: func(cfg *Config) {
				cfg.Manifest.File = "/tmp/manifest.json"
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "ceiling below base",
			mutate: func(cfg *Config) {
				cfg.Backoff.BaseMs = 5000
				cfg.Backoff.CeilingMs = 1000
			},
			wantErr: "ceiling",
		},
		{
			name:    "table base in reserved range",
			mutate:  func(cfg *Config) { cfg.Routing.TableBase = 254 },
			wantErr: "routing.table_base",
		},
		{
			name:    "zero interval",
			mutate:  func(cfg *Config) { cfg.General.IntervalSeconds = 0 },
			wantErr: "general.interval_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Manifest.Endpoint = "http://169.254.169.254/v1/network/interfaces"
			tt.mutate(cfg)

			err := cfg.ValidateConfig()
			if err == nil {
				t.Fatalf("ValidateConfig() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateConfig() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if cfg.General.Interval().Seconds() != 30 {
		t.Errorf("Interval() = %v, want 30s", cfg.General.Interval())
	}
	if cfg.General.Debounce().Milliseconds() != 500 {
		t.Errorf("Debounce() = %v, want 500ms", cfg.General.Debounce())
	}
	if cfg.Backoff.Ceiling() < cfg.Backoff.Base() {
		t.Errorf("default ceiling below base")
	}
}

package config

import "time"

// Config is the root of the enisyncd configuration file.
type Config struct {
	// General holds reconciliation loop settings.
	General *GeneralConfig `toml:"general" json:"general"`
	// Manifest configures where the attached-interface manifest comes from.
	Manifest *ManifestConfig `toml:"manifest" json:"manifest"`
	// Routing configures the managed table and rule-priority ranges.
	Routing *RoutingConfig `toml:"routing" json:"routing"`
	// Backoff configures per-interface retry backoff.
	Backoff *BackoffConfig `toml:"backoff" json:"backoff"`
	// API configures the read-only status/metrics HTTP listener.
	API *APIConfig `toml:"api" json:"api"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	// IntervalSeconds is the fixed reconciliation interval in seconds.
	IntervalSeconds int `toml:"interval_seconds" json:"interval_seconds" validate:"min=1"`
	// DebounceMs is the window in milliseconds within which kernel
	// notifications collapse into a single reconciliation trigger.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" validate:"min=1"`
	// GracePeriodSeconds is how long an interface must be absent from both
	// the manifest and the kernel before its convergence record is dropped.
	GracePeriodSeconds int `toml:"grace_period_seconds" json:"grace_period_seconds" validate:"min=0"`
}

type ManifestConfig struct {
	// Endpoint is the metadata API URL returning the attached-interface
	// manifest as JSON. Mutually exclusive with File.
	Endpoint string `toml:"endpoint" json:"endpoint" validate:"omitempty,url"`
	// File is a local JSON manifest path, mainly for development.
	File string `toml:"file,omitempty" json:"file,omitempty"`
	// TimeoutSeconds is the manifest fetch timeout in seconds.
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds" validate:"min=1"`
}

type RoutingConfig struct {
	// RulePriorityBase is the first policy-rule priority managed by enisyncd.
	RulePriorityBase int `toml:"rule_priority_base" json:"rule_priority_base" validate:"required,min=1"`
	// TableBase is the first route table number managed by enisyncd.
	// Must stay clear of the reserved tables (0, 253-255).
	TableBase int `toml:"table_base" json:"table_base" validate:"required,min=256"`
	// TableSpan is the number of tables (and rule priorities) in the managed
	// range. Hash-derived table ids are folded into this span.
	TableSpan int `toml:"table_span" json:"table_span" validate:"required,min=1,max=100000"`
}

type BackoffConfig struct {
	// BaseMs is the initial per-interface retry delay in milliseconds.
	BaseMs int `toml:"base_ms" json:"base_ms" validate:"min=1"`
	// CeilingMs is the maximum per-interface retry delay in milliseconds.
	CeilingMs int `toml:"ceiling_ms" json:"ceiling_ms" validate:"min=1"`
}

type APIConfig struct {
	// Enabled turns the HTTP status/metrics listener on.
	Enabled bool `toml:"enabled" json:"enabled"`
	// Listen is the bind address, e.g. "127.0.0.1:8734".
	Listen string `toml:"listen" json:"listen" validate:"required_if=Enabled true"`
}

// Default returns a configuration with the daemon defaults filled in.
// The rule priority and table bases match the historical enisync defaults.
func Default() *Config {
	return &Config{
		General: &GeneralConfig{
			IntervalSeconds:    30,
			DebounceMs:         500,
			GracePeriodSeconds: 60,
		},
		Manifest: &ManifestConfig{
			TimeoutSeconds: 5,
		},
		Routing: &RoutingConfig{
			RulePriorityBase: 1000,
			TableBase:        10000,
			TableSpan:        1000,
		},
		Backoff: &BackoffConfig{
			BaseMs:    1000,
			CeilingMs: 60000,
		},
		API: &APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8734",
		},
	}
}

func (g *GeneralConfig) Interval() time.Duration {
	return time.Duration(g.IntervalSeconds) * time.Second
}

func (g *GeneralConfig) Debounce() time.Duration {
	return time.Duration(g.DebounceMs) * time.Millisecond
}

func (g *GeneralConfig) GracePeriod() time.Duration {
	return time.Duration(g.GracePeriodSeconds) * time.Second
}

func (m *ManifestConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (b *BackoffConfig) Base() time.Duration {
	return time.Duration(b.BaseMs) * time.Millisecond
}

func (b *BackoffConfig) Ceiling() time.Duration {
	return time.Duration(b.CeilingMs) * time.Millisecond
}

package commands

import (
	"fmt"

	"github.com/kgroner/enisyncd/internal/config"
	"github.com/kgroner/enisyncd/internal/manifest"
	"github.com/kgroner/enisyncd/internal/netconf"
	"github.com/kgroner/enisyncd/internal/reconcile"
)

type Runner interface {
	Init(args []string, globalArgs *AppContext) error
	Run() error
	Name() string
}

type AppContext struct {
	ConfigPath string
	Verbose    bool
}

// loadAndValidateConfigOrFail loads configuration from file and validates it.
func loadAndValidateConfigOrFail(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	if err := cfg.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return cfg, nil
}

// engine bundles the wired reconciliation components for one
// configuration generation.
type engine struct {
	ranges netconf.Ranges
	nl     netconf.Netlinker
	reader *netconf.Reader
	loop   *reconcile.Loop
}

// buildEngine assembles the reconciliation pipeline from configuration:
// manifest provider, kernel reader, desired-state builder, applier, loop.
func buildEngine(cfg *config.Config) *engine {
	ranges := netconf.Ranges{
		TableBase:    cfg.Routing.TableBase,
		TableSpan:    cfg.Routing.TableSpan,
		PriorityBase: cfg.Routing.RulePriorityBase,
	}
	nl := netconf.NewNetlinker()
	reader := netconf.NewReader(nl, ranges)

	loopCfg := reconcile.LoopConfig{
		Interval:       cfg.General.Interval(),
		BackoffBase:    cfg.Backoff.Base(),
		BackoffCeiling: cfg.Backoff.Ceiling(),
		GracePeriod:    cfg.General.GracePeriod(),
	}
	loop := reconcile.NewLoop(loopCfg, ranges, newProvider(cfg.Manifest), reader,
		reconcile.NewBuilder(ranges), reconcile.NewApplier(nl))

	return &engine{ranges: ranges, nl: nl, reader: reader, loop: loop}
}

// newProvider picks the manifest source. Validation already guarantees
// exactly one of endpoint/file is set.
func newProvider(cfg *config.ManifestConfig) manifest.Provider {
	if cfg.File != "" {
		return manifest.NewFileProvider(cfg.File)
	}
	return manifest.NewHTTPProvider(cfg.Endpoint, cfg.Timeout())
}

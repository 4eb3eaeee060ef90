package commands

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kgroner/enisyncd/internal/api"
	"github.com/kgroner/enisyncd/internal/config"
	"github.com/kgroner/enisyncd/internal/log"
	"github.com/kgroner/enisyncd/internal/metrics"
	"github.com/kgroner/enisyncd/internal/netconf"
)

func CreateDaemonCommand() *DaemonCommand {
	dc := &DaemonCommand{
		fs:         flag.NewFlagSet("daemon", flag.ExitOnError),
		newEngine:  buildEngine,
		subscriber: netconf.NewSubscriber,
	}
	return dc
}

// DaemonCommand runs the reconciliation loop, the kernel event watcher
// and (if enabled) the status API until the process is signalled.
//
// Signals: SIGINT/SIGTERM stop the daemon, SIGUSR1 forces an immediate
// pass, SIGHUP reloads the configuration and restarts the components.
type DaemonCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
	ctx *AppContext

	// Swappable in tests.
	newEngine  func(*config.Config) *engine
	subscriber func() netconf.Subscriber
}

func (d *DaemonCommand) Name() string {
	return d.fs.Name()
}

func (d *DaemonCommand) Init(args []string, ctx *AppContext) error {
	d.ctx = ctx

	if err := d.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	d.cfg = cfg

	return nil
}

func (d *DaemonCommand) Run() error {
	log.Infof("Starting enisyncd...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	for {
		restart, err := d.runGeneration(sigChan)
		if err != nil {
			return err
		}
		if !restart {
			log.Infof("enisyncd stopped")
			return nil
		}
		log.Infof("Restarting components with reloaded configuration")
	}
}

// runGeneration runs all components under the current configuration until
// shutdown (restart=false) or a successful SIGHUP reload (restart=true).
// It returns only after every component goroutine of this generation has
// exited: the loop is the sole kernel writer, so the next generation must
// never start while a pass of this one is still in flight, and the
// process must not exit mid-sequence.
func (d *DaemonCommand) runGeneration(sigChan <-chan os.Signal) (restart bool, err error) {
	eng := d.newEngine(d.cfg)

	m := metrics.New()
	eng.loop.SetReportHook(m.ObserveReport)

	watcher := netconf.NewWatcher(d.subscriber(), d.cfg.General.Debounce(), eng.loop.Trigger)
	watcher.SetResubscribeHook(m.IncResubscribes)

	gen := startGeneration(eng.loop.Run, watcher.Run)
	defer gen.stop()

	var server *api.Server
	if d.cfg.API.Enabled {
		server = api.NewServer(d.cfg.API.Listen, eng.loop, eng.loop, m.Registry())
		go func() {
			if err := server.Start(); err != nil {
				log.Errorf("API server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := server.Stop(shutdownCtx); err != nil {
				log.Warnf("API server shutdown: %v", err)
			}
		}()
	}

	for {
		sig := <-sigChan
		switch sig {
		case syscall.SIGUSR1:
			log.Infof("Received SIGUSR1, forcing reconciliation pass")
			eng.loop.Trigger()

		case syscall.SIGHUP:
			log.Infof("Received SIGHUP, reloading configuration")
			cfg, err := loadAndValidateConfigOrFail(d.ctx.ConfigPath)
			if err != nil {
				// Keep running on the old configuration rather than dying
				// mid-flight on a bad edit.
				log.Errorf("Configuration reload failed, keeping previous configuration: %v", err)
				continue
			}
			d.cfg = cfg
			return true, nil

		case syscall.SIGINT, syscall.SIGTERM:
			log.Infof("Received %v, shutting down", sig)
			return false, nil
		}
	}
}

// generation tracks the goroutines of one configuration generation.
type generation struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// startGeneration launches each component under a shared context.
func startGeneration(components ...func(context.Context)) *generation {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &generation{cancel: cancel}

	for _, run := range components {
		run := run
		gen.wg.Add(1)
		go func() {
			defer gen.wg.Done()
			run(ctx)
		}()
	}

	return gen
}

// stop cancels the generation and blocks until every component has
// exited. Callers rely on this to hand over kernel ownership cleanly.
func (g *generation) stop() {
	g.cancel()
	g.wg.Wait()
}

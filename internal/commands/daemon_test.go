package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/kgroner/enisyncd/internal/config"
	"github.com/kgroner/enisyncd/internal/log"
	"github.com/kgroner/enisyncd/internal/netconf"
	"github.com/kgroner/enisyncd/internal/reconcile"
)

func TestMain(m *testing.M) {
	log.DisableLogs()
	m.Run()
}

// stubSubscriber subscribes successfully but never delivers events, so the
// watcher just parks until its context is cancelled.
type stubSubscriber struct{}

func (stubSubscriber) LinkSubscribe(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error {
	return nil
}

func (stubSubscriber) AddrSubscribe(ch chan<- netlink.AddrUpdate, done <-chan struct{}) error {
	return nil
}

func writeDaemonConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, []byte("[]"), 0644))

	cfgPath := filepath.Join(dir, "enisyncd.conf")
	content := fmt.Sprintf(`
[general]
interval_seconds = 1
debounce_ms = 10
grace_period_seconds = 60

[manifest]
file = %q

[routing]
rule_priority_base = 1001
table_base = 10000
table_span = 1000
`, manifestPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	return cfgPath
}

// testEngine is buildEngine with the kernel swapped for a fake.
func testEngine(cfg *config.Config) *engine {
	ranges := netconf.Ranges{
		TableBase:    cfg.Routing.TableBase,
		TableSpan:    cfg.Routing.TableSpan,
		PriorityBase: cfg.Routing.RulePriorityBase,
	}
	nl := netconf.NewFakeNetlinker()
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

type generationResult struct {
	restart bool
	err     error
}

// startTestDaemon initializes a daemon against a file-backed manifest and
// runs one generation in the background, handing back the wired engine,
// the injectable signal channel and the generation's result channel.
func startTestDaemon(t *testing.T) (*DaemonCommand, *engine, chan os.Signal, <-chan generationResult) {
	t.Helper()

	d := CreateDaemonCommand()
	require.NoError(t, d.Init(nil, &AppContext{ConfigPath: writeDaemonConfig(t)}))
	d.subscriber = func() netconf.Subscriber { return stubSubscriber{} }

	engCh := make(chan *engine, 1)
	d.newEngine = func(cfg *config.Config) *engine {
		eng := testEngine(cfg)
		engCh <- eng
		return eng
	}

	sigChan := make(chan os.Signal, 1)
	resCh := make(chan generationResult, 1)
	go func() {
		restart, err := d.runGeneration(sigChan)
		resCh <- generationResult{restart: restart, err: err}
	}()

	return d, <-engCh, sigChan, resCh
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func awaitResult(t *testing.T, resCh <-chan generationResult) generationResult {
	t.Helper()
	select {
	case res := <-resCh:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not finish")
		return generationResult{}
	}
}

func TestGenerationStopWaitsForComponents(t *testing.T) {
	var running atomic.Int32
	component := func(ctx context.Context) {
		running.Add(1)
		<-ctx.Done()
		// An in-flight action sequence finishes after cancellation.
		time.Sleep(50 * time.Millisecond)
		running.Add(-1)
	}

	gen := startGeneration(component, component)
	waitFor(t, func() bool { return running.Load() == 2 }, "components did not start")

	gen.stop()
	require.Equal(t, int32(0), running.Load(),
		"stop returned while a component was still running")
}

func TestDaemonShutdownSignal(t *testing.T) {
	_, eng, sigChan, resCh := startTestDaemon(t)

	waitFor(t, func() bool { return eng.loop.LastReport() != nil }, "no initial pass")

	sigChan <- syscall.SIGTERM
	res := awaitResult(t, resCh)
	require.NoError(t, res.err)
	require.False(t, res.restart)
}

func TestDaemonForcedPass(t *testing.T) {
	_, eng, sigChan, resCh := startTestDaemon(t)

	waitFor(t, func() bool { return eng.loop.LastReport() != nil }, "no initial pass")
	first := eng.loop.LastReport().StartedAt

	sigChan <- syscall.SIGUSR1
	waitFor(t, func() bool { return eng.loop.LastReport().StartedAt.After(first) },
		"SIGUSR1 did not force a pass")

	sigChan <- syscall.SIGINT
	res := awaitResult(t, resCh)
	require.NoError(t, res.err)
	require.False(t, res.restart)
}

func TestDaemonReloadStopsGenerationBeforeReturn(t *testing.T) {
	_, eng, sigChan, resCh := startTestDaemon(t)

	waitFor(t, func() bool { return eng.loop.LastReport() != nil }, "no initial pass")

	sigChan <- syscall.SIGHUP
	res := awaitResult(t, resCh)
	require.NoError(t, res.err)
	require.True(t, res.restart)

	// By the time runGeneration returns, the old loop must have exited:
	// the next generation takes over as the sole kernel writer, so a
	// trigger against the old loop must not start another pass.
	before := eng.loop.LastReport().StartedAt
	eng.loop.Trigger()
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, before, eng.loop.LastReport().StartedAt,
		"old generation's loop ran a pass after the reload handover")
}

func TestDaemonKeepsConfigOnBadReload(t *testing.T) {
	d, eng, sigChan, resCh := startTestDaemon(t)

	waitFor(t, func() bool { return eng.loop.LastReport() != nil }, "no initial pass")

	require.NoError(t, os.WriteFile(d.ctx.ConfigPath,
		[]byte("[general\ninterval_seconds = nope"), 0644))

	sigChan <- syscall.SIGHUP
	select {
	case res := <-resCh:
		t.Fatalf("generation ended on a failed reload: %+v", res)
	case <-time.After(300 * time.Millisecond):
	}

	sigChan <- syscall.SIGTERM
	res := awaitResult(t, resCh)
	require.NoError(t, res.err)
	require.False(t, res.restart)
}

package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kgroner/enisyncd/internal/log"
	"github.com/kgroner/enisyncd/internal/manifest"
	"github.com/kgroner/enisyncd/internal/netconf"
)

// minWake keeps the scheduler from spinning when a retry deadline is
// already due or in the past.
const minWake = 50 * time.Millisecond

// LoopConfig carries the loop's timing knobs.
type LoopConfig struct {
	Interval       time.Duration
	BackoffBase    time.Duration
	BackoffCeiling time.Duration
	GracePeriod    time.Duration
}

// Loop drives reconciliation passes. It is the only goroutine that
// mutates kernel state; watchers, timers and signal handlers feed it
// through Trigger. Each pass rebuilds desired and observed state from
// scratch, so the loop keeps no cache of kernel objects between passes.
type Loop struct {
	cfg      LoopConfig
	ranges   netconf.Ranges
	provider manifest.Provider
	reader   *netconf.Reader
	builder  *Builder
	applier  *Applier

	// records is touched only from Run/RunOnce's goroutine.
	records map[string]*Record

	// trigger has capacity one: a burst of wake-ups while a pass is in
	// flight collapses into a single follow-up pass.
	trigger chan struct{}

	mu         sync.RWMutex
	lastReport *Report

	onReport func(Report)
	now      func() time.Time
}

func NewLoop(cfg LoopConfig, ranges netconf.Ranges, provider manifest.Provider, reader *netconf.Reader, builder *Builder, applier *Applier) *Loop {
	return &Loop{
		cfg:      cfg,
		ranges:   ranges,
		provider: provider,
		reader:   reader,
		builder:  builder,
		applier:  applier,
		records:  make(map[string]*Record),
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

// SetReportHook installs a callback invoked after every pass with the
// pass report. Must be set before Run.
func (l *Loop) SetReportHook(f func(Report)) {
	l.onReport = f
}

// Trigger requests a reconciliation pass. Never blocks; requests that
// arrive while one is already queued coalesce with it.
func (l *Loop) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// LastReport returns the most recent pass report, or nil before the
// first pass completes.
func (l *Loop) LastReport() *Report {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastReport
}

// Run executes passes until the context is cancelled: one immediately,
// then on every trigger, and otherwise on a timer that fires at the
// periodic interval or at the earliest pending retry deadline,
// whichever comes first.
func (l *Loop) Run(ctx context.Context) {
	log.Infof("Reconciliation loop started (interval=%s)", l.cfg.Interval)
	l.RunOnce(ctx)

	for {
		timer := time.NewTimer(l.nextWake())
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Infof("Reconciliation loop stopped")
			return
		case <-l.trigger:
			timer.Stop()
		case <-timer.C:
		}
		l.RunOnce(ctx)
	}
}

// RunOnce executes a single pass, publishes its report and returns it.
func (l *Loop) RunOnce(ctx context.Context) Report {
	report := l.runPass(ctx)

	l.mu.Lock()
	l.lastReport = &report
	l.mu.Unlock()

	l.logReport(&report)
	if l.onReport != nil {
		l.onReport(report)
	}
	return report
}

func (l *Loop) runPass(ctx context.Context) Report {
	now := l.now()
	report := Report{StartedAt: now}

	descriptors, err := l.provider.Fetch(ctx)
	if err != nil {
		log.Warnf("Manifest fetch failed, keeping current kernel state: %v", err)
		report.Err = err.Error()
		report.Duration = l.now().Sub(now)
		return report
	}

	snap, err := l.reader.Read()
	if err != nil {
		log.Warnf("Kernel state read failed, skipping pass: %v", err)
		report.Err = err.Error()
		report.Duration = l.now().Sub(now)
		return report
	}

	desired, err := l.builder.Build(descriptors)
	if err != nil {
		// A build failure blocks convergence for every interface until the
		// manifest is fixed, so it is the loudest outcome a pass can have.
		log.Errorf("Manifest rejected, no changes applied: %v", err)
		report.Err = err.Error()
		report.Duration = l.now().Sub(now)
		return report
	}

	observed := BuildObserved(snap, l.ranges, desired)

	for _, id := range sortedIDs(desired) {
		report.Interfaces = append(report.Interfaces, l.reconcileOne(id, desired[id], observed[desired[id].Table], now))
	}
	report.Interfaces = append(report.Interfaces, l.teardownOrphans(desired, observed, now)...)

	l.expireRecords(desired, observed, now)

	report.Duration = l.now().Sub(now)
	return report
}

// reconcileOne converges a single manifest interface. A failure here is
// isolated: it marks this interface Failing and schedules its retry, but
// never prevents the caller from proceeding to the next interface.
func (l *Loop) reconcileOne(id string, d *DesiredState, obs *Observed, now time.Time) InterfaceReport {
	rec := l.ensureRecord(id, d.Table)
	rec.Table = d.Table
	rec.LastSeen = now

	if obs == nil || obs.Link == nil {
		rec.Status = StatusPending
		rec.LastError = ""
		return l.interfaceReport(rec, 0, "link not present in kernel")
	}

	if rec.backingOff(now) {
		return l.interfaceReport(rec, 0, "waiting for retry")
	}

	actions := Diff(d, obs)
	if len(actions) == 0 {
		rec.markConverged(now)
		return l.interfaceReport(rec, 0, "")
	}

	result := l.applier.Apply(id, actions)
	if result.Err != nil {
		rec.markFailed(now, result.Err, l.cfg.BackoffBase, l.cfg.BackoffCeiling)
		log.Warnf("[%s] Pass failed after %d action(s), retry in %s: %v",
			id, result.Applied, rec.Backoff, result.Err)
		return l.interfaceReport(rec, result.Applied, result.Err.Error())
	}

	rec.markConverged(now)
	log.Infof("[%s] Converged: %d action(s) applied", id, result.Applied)
	return l.interfaceReport(rec, result.Applied, "")
}

// teardownOrphans removes leftovers in managed tables no manifest
// interface claims anymore, one table at a time with the same fault
// isolation as forward reconciliation.
func (l *Loop) teardownOrphans(desired map[string]*DesiredState, observed map[int]*Observed, now time.Time) []InterfaceReport {
	owned := make(map[int]bool, len(desired))
	for _, d := range desired {
		owned[d.Table] = true
	}

	var tables []int
	for table, obs := range observed {
		if owned[table] || obs.IsEmpty() {
			continue
		}
		tables = append(tables, table)
	}
	sort.Ints(tables)

	var reports []InterfaceReport
	for _, table := range tables {
		obs := observed[table]
		id := l.orphanID(table)

		rec := l.ensureRecord(id, table)
		rec.LastSeen = now

		if rec.backingOff(now) {
			reports = append(reports, l.interfaceReport(rec, 0, "waiting for retry"))
			continue
		}

		actions := Diff(nil, obs)
		result := l.applier.Apply(id, actions)
		if result.Err != nil {
			rec.markFailed(now, result.Err, l.cfg.BackoffBase, l.cfg.BackoffCeiling)
			log.Warnf("[%s] Teardown failed after %d action(s), retry in %s: %v",
				id, result.Applied, rec.Backoff, result.Err)
			reports = append(reports, l.interfaceReport(rec, result.Applied, result.Err.Error()))
			continue
		}

		rec.markConverged(now)
		log.Infof("[%s] Torn down table %d: %d action(s) applied", id, table, result.Applied)
		reports = append(reports, l.interfaceReport(rec, result.Applied, "torn down"))
	}

	return reports
}

// orphanID names an unclaimed table's record. A record from when the
// interface was still in the manifest keeps its identifier so the report
// history stays attributable; a table first seen already orphaned gets a
// synthetic name.
func (l *Loop) orphanID(table int) string {
	for id, rec := range l.records {
		if rec.Table == table {
			return id
		}
	}
	return fmt.Sprintf("table-%d", table)
}

// expireRecords drops records for interfaces absent from both the
// manifest and the kernel for longer than the grace period. The grace
// period exists so a briefly flapping interface keeps its failure
// history and backoff position.
func (l *Loop) expireRecords(desired map[string]*DesiredState, observed map[int]*Observed, now time.Time) {
	for id, rec := range l.records {
		if _, ok := desired[id]; ok {
			continue
		}
		if obs, ok := observed[rec.Table]; ok && !obs.IsEmpty() {
			continue
		}
		if now.Sub(rec.LastSeen) > l.cfg.GracePeriod {
			log.Debugf("[%s] Forgetting record (gone for %s)", id, now.Sub(rec.LastSeen))
			delete(l.records, id)
		}
	}
}

func (l *Loop) ensureRecord(id string, table int) *Record {
	rec, ok := l.records[id]
	if !ok {
		rec = &Record{ID: id, Table: table, Status: StatusPending}
		l.records[id] = rec
	}
	return rec
}

func (l *Loop) interfaceReport(rec *Record, applied int, detail string) InterfaceReport {
	ir := InterfaceReport{
		ID:       rec.ID,
		Table:    rec.Table,
		Status:   rec.Status.String(),
		Failures: rec.Failures,
		Applied:  applied,
		Detail:   detail,
	}
	if !rec.RetryAt.IsZero() {
		retryAt := rec.RetryAt
		ir.RetryAt = &retryAt
	}
	return ir
}

// nextWake returns how long to sleep before the next unprompted pass:
// the periodic interval, shortened to the earliest pending retry.
func (l *Loop) nextWake() time.Duration {
	wake := l.cfg.Interval
	now := l.now()
	for _, rec := range l.records {
		if rec.Status != StatusFailing || rec.RetryAt.IsZero() {
			continue
		}
		if until := rec.RetryAt.Sub(now); until < wake {
			wake = until
		}
	}
	if wake < minWake {
		wake = minWake
	}
	return wake
}

func (l *Loop) logReport(report *Report) {
	converged, pending, failing := 0, 0, 0
	for _, iface := range report.Interfaces {
		switch iface.Status {
		case StatusConverged.String():
			converged++
		case StatusFailing.String():
			failing++
		default:
			pending++
		}
	}

	if report.Err != "" {
		log.Warnf("Pass finished in %s with error: %s", report.Duration, report.Err)
		return
	}
	if failing > 0 || pending > 0 {
		log.Warnf("Pass finished in %s: %d converged, %d pending, %d failing",
			report.Duration, converged, pending, failing)
		return
	}
	log.Debugf("Pass finished in %s: %d interface(s) converged", report.Duration, converged)
}

func sortedIDs(desired map[string]*DesiredState) []string {
	ids := make([]string, 0, len(desired))
	for id := range desired {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

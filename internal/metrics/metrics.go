// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kgroner/enisyncd/internal/reconcile"
)

// Metrics holds the daemon's collectors on a private registry, so tests
// never trip over duplicate registration in the global one.
type Metrics struct {
	registry *prometheus.Registry

	passes            *prometheus.CounterVec
	passDuration      prometheus.Histogram
	actionsApplied    prometheus.Counter
	interfaces        *prometheus.GaugeVec
	lastPassTimestamp prometheus.Gauge
	resubscribes      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enisyncd_passes_total",
			Help: "Reconciliation passes by outcome.",
		}, []string{"result"}),

		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "enisyncd_pass_duration_seconds",
			Help:    "Wall time of one reconciliation pass.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),

		actionsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enisyncd_actions_applied_total",
			Help: "Kernel mutations applied across all passes.",
		}),

		interfaces: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "enisyncd_interfaces",
			Help: "Managed interfaces by convergence status, as of the last pass.",
		}, []string{"status"}),

		lastPassTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "enisyncd_last_pass_timestamp_seconds",
			Help: "Unix time of the last completed pass.",
		}),

		resubscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enisyncd_watcher_resubscribes_total",
			Help: "Times the kernel notification stream was lost and re-established.",
		}),
	}

	m.registry.MustRegister(
		m.passes,
		m.passDuration,
		m.actionsApplied,
		m.interfaces,
		m.lastPassTimestamp,
		m.resubscribes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveReport records one pass outcome. Wired into the loop's report hook.
func (m *Metrics) ObserveReport(report reconcile.Report) {
	m.passDuration.Observe(report.Duration.Seconds())
	m.lastPassTimestamp.Set(float64(report.StartedAt.Unix()))

	switch {
	case report.Err != "":
		m.passes.WithLabelValues("error").Inc()
	case report.Failing():
		m.passes.WithLabelValues("degraded").Inc()
	default:
		m.passes.WithLabelValues("converged").Inc()
	}

	counts := map[string]float64{
		reconcile.StatusConverged.String(): 0,
		reconcile.StatusPending.String():   0,
		reconcile.StatusFailing.String():   0,
	}
	for _, iface := range report.Interfaces {
		counts[iface.Status]++
		m.actionsApplied.Add(float64(iface.Applied))
	}
	for status, count := range counts {
		m.interfaces.WithLabelValues(status).Set(count)
	}
}

// IncResubscribes is wired into the watcher's resubscribe hook.
func (m *Metrics) IncResubscribes() {
	m.resubscribes.Inc()
}

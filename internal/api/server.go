// Package api exposes the daemon's observability surface over HTTP: the
// latest reconciliation report, per-interface convergence state and
// Prometheus metrics. The API is read-only apart from a sync trigger.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kgroner/enisyncd/internal/log"
	"github.com/kgroner/enisyncd/internal/reconcile"
)

// StatusSource hands the API the latest pass report. Implemented by the
// reconciliation loop.
type StatusSource interface {
	LastReport() *reconcile.Report
}

// Syncer requests an out-of-schedule reconciliation pass.
type Syncer interface {
	Trigger()
}

// Server serves the status API on a private listener.
type Server struct {
	httpServer *http.Server
}

// NewServer wires the router. registry may be nil, in which case no
// /metrics endpoint is mounted.
func NewServer(bindAddr string, source StatusSource, syncer Syncer, registry *prometheus.Registry) *Server {
	r := chi.NewRouter()
	r.Use(Recovery)
	r.Use(Logger)

	h := &handler{source: source, syncer: syncer}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/interfaces", h.GetInterfaces)
		r.Post("/sync", h.TriggerSync)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:         bindAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	log.Infof("[API] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Infof("[API] Shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

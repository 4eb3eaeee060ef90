package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kgroner/enisyncd/internal/reconcile"
)

type handler struct {
	source StatusSource
	syncer Syncer
}

// StatusResponse summarizes the most recent reconciliation pass.
type StatusResponse struct {
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Error     string    `json:"error,omitempty"`
	Converged int       `json:"converged"`
	Pending   int       `json:"pending"`
	Failing   int       `json:"failing"`
}

// GetStatus returns the last pass summary, or 503 before the first pass
// has completed: "no data yet" must be distinguishable from "all good".
func (h *handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	report := h.source.LastReport()
	if report == nil {
		writeError(w, http.StatusServiceUnavailable, "no reconciliation pass has completed yet")
		return
	}

	resp := StatusResponse{
		StartedAt: report.StartedAt,
		Duration:  report.Duration.String(),
		Error:     report.Err,
	}
	for _, iface := range report.Interfaces {
		switch iface.Status {
		case reconcile.StatusConverged.String():
			resp.Converged++
		case reconcile.StatusFailing.String():
			resp.Failing++
		default:
			resp.Pending++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetInterfaces returns the per-interface detail of the last pass.
func (h *handler) GetInterfaces(w http.ResponseWriter, r *http.Request) {
	report := h.source.LastReport()
	if report == nil {
		writeError(w, http.StatusServiceUnavailable, "no reconciliation pass has completed yet")
		return
	}

	interfaces := report.Interfaces
	if interfaces == nil {
		interfaces = []reconcile.InterfaceReport{}
	}
	writeJSON(w, http.StatusOK, interfaces)
}

// TriggerSync requests an immediate pass. The pass runs asynchronously.
func (h *handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.syncer.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync requested"})
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

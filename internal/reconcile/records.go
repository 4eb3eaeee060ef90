package reconcile

import "time"

// Status is an interface's convergence state as of the last pass.
type Status int

const (
	// StatusPending means the interface was seen but has not converged
	// yet (first sighting, or its link is not present in the kernel).
	StatusPending Status = iota
	// StatusConverged means observed kernel state matches desired state.
	StatusConverged
	// StatusFailing means the last attempt to converge failed and the
	// interface is waiting out its backoff delay.
	StatusFailing
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "Converged"
	case StatusFailing:
		return "Failing"
	default:
		return "Pending"
	}
}

// Record tracks one interface's convergence across passes. Records are
// owned exclusively by the loop; nothing else mutates them.
type Record struct {
	ID            string
	Table         int
	Status        Status
	Failures      int
	Backoff       time.Duration
	RetryAt       time.Time
	LastConverged time.Time
	LastSeen      time.Time
	LastError     string
}

// markConverged resets failure tracking after a successful pass.
func (r *Record) markConverged(now time.Time) {
	r.Status = StatusConverged
	r.Failures = 0
	r.Backoff = 0
	r.RetryAt = time.Time{}
	r.LastConverged = now
	r.LastError = ""
}

// markFailed bumps the failure count and schedules the next retry with
// bounded exponential backoff.
func (r *Record) markFailed(now time.Time, err error, base, ceiling time.Duration) {
	r.Status = StatusFailing
	r.Failures++
	r.LastError = err.Error()

	backoff := base
	// Cap the shift; beyond the ceiling the exact exponent is irrelevant.
	for i := 1; i < r.Failures && backoff < ceiling; i++ {
		backoff *= 2
	}
	if backoff > ceiling {
		backoff = ceiling
	}
	r.Backoff = backoff
	r.RetryAt = now.Add(backoff)
}

// backingOff reports whether the interface is still inside its retry delay.
func (r *Record) backingOff(now time.Time) bool {
	return r.Status == StatusFailing && now.Before(r.RetryAt)
}

// InterfaceReport is the per-interface slice of a pass report.
// RetryAt is a pointer so interfaces without a pending retry omit the
// field entirely instead of serializing the zero time.
type InterfaceReport struct {
	ID       string     `json:"id"`
	Table    int        `json:"table"`
	Status   string     `json:"status"`
	Failures int        `json:"failures"`
	Applied  int        `json:"applied_actions"`
	Detail   string     `json:"detail,omitempty"`
	RetryAt  *time.Time `json:"retry_at,omitempty"`
}

// Report is the structured outcome of one reconciliation pass, the only
// externally observable output of the engine besides kernel mutations.
type Report struct {
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration_ns"`
	Err        string            `json:"error,omitempty"`
	Interfaces []InterfaceReport `json:"interfaces"`
}

// Failing reports whether any interface (or the pass itself) failed.
func (r *Report) Failing() bool {
	if r.Err != "" {
		return true
	}
	for _, iface := range r.Interfaces {
		if iface.Status == StatusFailing.String() {
			return true
		}
	}
	return false
}

package platform

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// HealthStatus is the liveness/readiness state a process reports.
type HealthStatus struct {
	Status     string  `json:"status"`
	Goroutines int     `json:"goroutines"`
	CPUPercent float64 `json:"cpu_percent"`
}

// HealthServer serves /healthz (liveness, always ok once the process is up)
// and /readyz (readiness, gated on an explicit ready flag the caller flips
// once its dependencies — broker, transport, persistence — are wired).
type HealthServer struct {
	monitor *ResourceMonitor
	ready   atomic.Bool
}

// NewHealthServer builds a HealthServer backed by the given ResourceMonitor.
func NewHealthServer(monitor *ResourceMonitor) *HealthServer {
	return &HealthServer{monitor: monitor}
}

// SetReady flips the readiness flag /readyz reports.
func (h *HealthServer) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Handler returns an http.Handler mounting /healthz and /readyz.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.HandleFunc("/readyz", h.handleReadyz)
	return mux
}

func (h *HealthServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := h.monitor.Latest()
	status := HealthStatus{
		Status:     "ok",
		Goroutines: snap.Goroutines,
		CPUPercent: snap.CPUPercent,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (h *HealthServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

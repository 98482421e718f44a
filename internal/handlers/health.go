package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"screen-recorder/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// pingTimeout bounds the database probe of the health endpoints.
const pingTimeout = 2 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
	Phase    string `json:"phase,omitempty"`
	Storage  string `json:"storage,omitempty"`

	// System info
	GoVersion      string  `json:"goVersion"`
	NumCPU         int     `json:"numCpu"`
	NumGoroutine   int     `json:"numGoroutine"`
	MemoryUsage    float64 `json:"memoryUsage,omitempty"`
	MemoryPressure bool    `json:"memoryPressure,omitempty"`

	// Stats summary
	TotalRecordings int `json:"totalRecordings,omitempty"`
}

func (h *Handlers) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.db.Ping(ctx)
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Database:     "ok",
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if err := h.ping(r.Context()); err != nil {
		response.Status = statusDegraded
		response.Ready = false
		response.Database = err.Error()
	} else {
		response.TotalRecordings = h.db.GetStats().TotalRecordings
	}
	if h.rec != nil {
		response.Phase = string(h.rec.Snapshot().Phase)
	}
	if h.remote != nil {
		response.Storage = h.remote.Store().Name()
	}
	if h.memory != nil {
		response.MemoryUsage = h.memory.Usage()
		response.MemoryPressure = h.memory.UnderPressure()
	}

	w.Header().Set("Content-Type", "application/json")

	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the database answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.ping(r.Context()); err == nil {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}

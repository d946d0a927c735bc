// Package handlers contains the HTTP handlers of the status server.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/blockedby/tgdown/internal/collector"
	"github.com/blockedby/tgdown/internal/telegram"
)

// StatsHandler serves health and counter snapshots.
type StatsHandler struct {
	pipeline PipelineStatus
	session  SessionStatus
}

// NewStatsHandler creates a new StatsHandler. session may be nil.
func NewStatsHandler(pipeline PipelineStatus, session SessionStatus) *StatsHandler {
	return &StatsHandler{pipeline: pipeline, session: session}
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status   string          `json:"status"`
	State    collector.State `json:"state"`
	Telegram telegram.Status `json:"telegram,omitempty"`
}

// Health reports ok while the pipeline runs on a ready session, and
// 503 otherwise.
func (h *StatsHandler) Health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		State:  h.pipeline.Status().State,
	}
	if h.session != nil {
		resp.Telegram = h.session.GetStatus()
	}

	code := http.StatusOK
	if resp.State != collector.StateRunning || (h.session != nil && resp.Telegram != telegram.StatusReady) {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetStats returns queue depth and counters.
func (h *StatsHandler) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = err // Client disconnected
	}
}

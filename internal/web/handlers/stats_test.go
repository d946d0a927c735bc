package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tgdown/internal/collector"
	"github.com/blockedby/tgdown/internal/telegram"
)

type mockPipeline struct {
	status collector.Status
}

func (m *mockPipeline) Status() collector.Status { return m.status }

type mockSession struct {
	status telegram.Status
}

func (m *mockSession) GetStatus() telegram.Status { return m.status }

func TestStatsHandler_GetStats(t *testing.T) {
	pipeline := &mockPipeline{status: collector.Status{
		State:      collector.StateRunning,
		Channel:    "News",
		QueueDepth: 3,
		QueueCap:   10,
		Counters:   collector.Stats{Downloaded: 4, SkippedSize: 2, SkippedFilter: 1},
	}}
	h := NewStatsHandler(pipeline, nil)

	req := httptest.NewRequest("GET", "/stats", nil)
	w := httptest.NewRecorder()
	h.GetStats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got collector.Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, pipeline.status, got)
}

func TestStatsHandler_Health(t *testing.T) {
	tests := []struct {
		name     string
		state    collector.State
		session  SessionStatus
		wantCode int
		wantBody string
	}{
		{name: "running", state: collector.StateRunning, session: &mockSession{telegram.StatusReady}, wantCode: http.StatusOK, wantBody: "ok"},
		{name: "running without session reporter", state: collector.StateRunning, wantCode: http.StatusOK, wantBody: "ok"},
		{name: "warming", state: collector.StateWarming, session: &mockSession{telegram.StatusReady}, wantCode: http.StatusServiceUnavailable, wantBody: "unavailable"},
		{name: "session lost", state: collector.StateRunning, session: &mockSession{telegram.StatusStopped}, wantCode: http.StatusServiceUnavailable, wantBody: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStatsHandler(&mockPipeline{status: collector.Status{State: tt.state}}, tt.session)

			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest("GET", "/health", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			var body HealthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body.Status)
			assert.Equal(t, tt.state, body.State)
		})
	}
}

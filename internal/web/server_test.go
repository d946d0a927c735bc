package web

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tgdown/internal/collector"
	"github.com/blockedby/tgdown/internal/web/handlers"
)

type fixedPipeline struct{}

func (fixedPipeline) Status() collector.Status {
	return collector.Status{
		State:      collector.StateRunning,
		QueueDepth: 2,
		QueueCap:   10,
		Counters:   collector.Stats{Downloaded: 5},
	}
}

func startServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(&Config{Port: 0}, nil)
	srv.RegisterStatsHandler(handlers.NewStatsHandler(fixedPipeline{}, nil))

	ln, err := srv.Listen()
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := startServer(t)

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get(srv.BaseURL() + "/health")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health handlers.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, collector.StateRunning, health.State)
}

func TestServer_StatsEndpoint(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Get(srv.BaseURL() + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status collector.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 2, status.QueueDepth)
	assert.Equal(t, int64(5), status.Counters.Downloaded)
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Get(srv.BaseURL() + "/api/v1/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := NewServer(&Config{Port: 0}, nil)
	assert.NoError(t, srv.Stop(context.Background()))
}

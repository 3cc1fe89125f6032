package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/itsDrac/e-auc-bidding/internal/dependency"
	"github.com/itsDrac/e-auc-bidding/internal/events"
	"github.com/itsDrac/e-auc-bidding/internal/realtime"
	"github.com/itsDrac/e-auc-bidding/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck_ReportsBackboneDrops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backbone := realtime.NewLocalBackbone(1)
	release := make(chan struct{})
	defer close(release)
	go func() {
		_ = backbone.Subscribe(ctx, func(realtime.Envelope) { <-release })
	}()
	require.Eventually(t, func() bool {
		_ = backbone.Publish(ctx, realtime.Envelope{})
		return backbone.Dropped() > 0
	}, time.Second, time.Millisecond)

	s := &Server{Dependencies: &dependency.Dependencies{
		Bus:      events.NewBus(1, 1, logger.NewNop()),
		Hub:      realtime.NewHub(1, logger.NewNop()),
		Backbone: backbone,
	}}
	rec := httptest.NewRecorder()
	s.healthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["message"])
	assert.Greater(t, body["backbone_dropped"], float64(0))
	assert.Contains(t, body, "viewers")
}

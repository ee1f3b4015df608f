package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/services/metrics"
)

func TestHandleSnapshot(t *testing.T) {
	agg := metrics.NewAggregator(100, 5*time.Minute, zap.NewNop())
	agg.RecordRequest("u1", "carousel", "10.0.0.1", 200*time.Millisecond, false)
	agg.RecordRevenue(49.90)
	h := NewMetricsHandler(agg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/snapshot", nil)
	rec := httptest.NewRecorder()

	h.HandleSnapshot(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			OnlineUsers    int     `json:"online_users"`
			ToolsUsedToday int64   `json:"tools_used_today"`
			RevenueToday   float64 `json:"revenue_today"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Data.OnlineUsers)
	assert.EqualValues(t, 1, envelope.Data.ToolsUsedToday)
	assert.InDelta(t, 49.90, envelope.Data.RevenueToday, 1e-9)
}

func TestHandleAlertsEmpty(t *testing.T) {
	agg := metrics.NewAggregator(100, 5*time.Minute, zap.NewNop())
	h := NewMetricsHandler(agg, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/alerts", nil)
	rec := httptest.NewRecorder()

	h.HandleAlerts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

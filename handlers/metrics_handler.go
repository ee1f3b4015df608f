package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/utils"
)

// MetricsSource provides the live dashboard views.
type MetricsSource interface {
	Snapshot() models.MetricsSnapshot
	Alerts() []models.MetricsAlert
}

// MetricsHandler exposes the live metrics aggregator over HTTP.
type MetricsHandler struct {
	source MetricsSource
	logger *zap.Logger
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(source MetricsSource, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		source: source,
		logger: logger,
	}
}

// HandleSnapshot handles GET /api/v1/metrics/snapshot.
func (h *MetricsHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	utils.WriteOK(w, h.source.Snapshot())
}

// HandleAlerts handles GET /api/v1/metrics/alerts.
func (h *MetricsHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.source.Alerts()
	if alerts == nil {
		alerts = []models.MetricsAlert{}
	}
	utils.WriteOK(w, alerts)
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/middleware"
	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/utils"
)

// CompletionRequest reports the outcome of an admitted tool call.
type CompletionRequest struct {
	UserID     string          `json:"user_id" validate:"required"`
	ToolType   models.ToolType `json:"tool_type" validate:"required"`
	Success    bool            `json:"success"`
	DurationMs int64           `json:"duration_ms" validate:"gte=0"`
	ClientIP   string          `json:"client_ip,omitempty"`
}

// CompletionReporter is the gate operation that settles usage counters.
type CompletionReporter interface {
	ReportCompletion(ctx context.Context, userID string, tool models.ToolType, success bool) error
}

// RequestRecorder feeds the live metrics window.
type RequestRecorder interface {
	RecordRequest(userID, tool, ip string, duration time.Duration, failed bool)
}

// GateHandler exposes the entitlement gate over HTTP.
type GateHandler struct {
	reporter CompletionReporter
	metrics  RequestRecorder
	logger   *zap.Logger
}

// NewGateHandler creates a new GateHandler
func NewGateHandler(reporter CompletionReporter, metrics RequestRecorder, logger *zap.Logger) *GateHandler {
	return &GateHandler{
		reporter: reporter,
		metrics:  metrics,
		logger:   logger,
	}
}

// HandleEvaluate handles POST /api/v1/gate/evaluate. The enforcement
// middleware has already run the gate; denied requests never reach here.
func (h *GateHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	decision := middleware.GetDecisionFromContext(r.Context())
	if decision == nil {
		h.logger.Error("gate decision missing from context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		utils.WriteInternalServerError(w)
		return
	}
	utils.WriteOK(w, decision)
}

// HandleComplete handles POST /api/v1/gate/complete. Successful completions
// consume quota; failed ones do not.
func (h *GateHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req CompletionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleValidationError(w, err)
		return
	}

	if err := h.reporter.ReportCompletion(r.Context(), req.UserID, req.ToolType, req.Success); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if req.ClientIP == "" {
		req.ClientIP = r.RemoteAddr
	}
	h.metrics.RecordRequest(req.UserID, string(req.ToolType), req.ClientIP,
		time.Duration(req.DurationMs)*time.Millisecond, !req.Success)

	utils.WriteNoContent(w)
}

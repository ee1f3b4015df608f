package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/middleware"
	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/services/gate"
)

type stubReporter struct {
	err     error
	userID  string
	tool    models.ToolType
	success bool
	calls   int
}

func (s *stubReporter) ReportCompletion(_ context.Context, userID string, tool models.ToolType, success bool) error {
	s.calls++
	s.userID = userID
	s.tool = tool
	s.success = success
	return s.err
}

type stubRecorder struct {
	userID   string
	tool     string
	ip       string
	duration time.Duration
	failed   bool
	calls    int
}

func (s *stubRecorder) RecordRequest(userID, tool, ip string, duration time.Duration, failed bool) {
	s.calls++
	s.userID = userID
	s.tool = tool
	s.ip = ip
	s.duration = duration
	s.failed = failed
}

func TestHandleEvaluateEchoesDecision(t *testing.T) {
	h := NewGateHandler(&stubReporter{}, &stubRecorder{}, zap.NewNop())

	decision := &gate.Decision{Allowed: true, UsageRemaining: models.Limit(7)}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/gate/evaluate", nil)
	req = req.WithContext(middleware.WithDecision(req.Context(), decision))
	rec := httptest.NewRecorder()

	h.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":true`)
}

func TestHandleEvaluateMissingDecision(t *testing.T) {
	h := NewGateHandler(&stubReporter{}, &stubRecorder{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/gate/evaluate", nil)
	rec := httptest.NewRecorder()

	h.HandleEvaluate(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleComplete(t *testing.T) {
	reporter := &stubReporter{}
	recorder := &stubRecorder{}
	h := NewGateHandler(reporter, recorder, zap.NewNop())

	body := `{"user_id":"u1","tool_type":"ai_generation","success":true,"duration_ms":340,"client_ip":"10.0.0.4"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/gate/complete", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleComplete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	require.Equal(t, 1, reporter.calls)
	assert.Equal(t, "u1", reporter.userID)
	assert.Equal(t, models.ToolAIGeneration, reporter.tool)
	assert.True(t, reporter.success)

	require.Equal(t, 1, recorder.calls)
	assert.Equal(t, "10.0.0.4", recorder.ip)
	assert.Equal(t, 340*time.Millisecond, recorder.duration)
	assert.False(t, recorder.failed)
}

func TestHandleCompleteFailedExecution(t *testing.T) {
	reporter := &stubReporter{}
	recorder := &stubRecorder{}
	h := NewGateHandler(reporter, recorder, zap.NewNop())

	body := `{"user_id":"u1","tool_type":"carousel","success":false,"duration_ms":120}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/gate/complete", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleComplete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, reporter.success)
	assert.True(t, recorder.failed)
	assert.NotEmpty(t, recorder.ip)
}

func TestHandleCompleteBadPayload(t *testing.T) {
	reporter := &stubReporter{}
	h := NewGateHandler(reporter, &stubRecorder{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/gate/complete",
		strings.NewReader(`{"tool_type":"carousel"}`))
	rec := httptest.NewRecorder()

	h.HandleComplete(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, reporter.calls)
}

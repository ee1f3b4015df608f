package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/services/gate"
)

type stubEvaluator struct {
	decision gate.Decision
	lastReq  gate.Request
}

func (s *stubEvaluator) Evaluate(_ context.Context, req gate.Request) gate.Decision {
	s.lastReq = req
	return s.decision
}

func enforce(t *testing.T, decision gate.Decision, body string) (*httptest.ResponseRecorder, *stubEvaluator, *gate.Decision) {
	t.Helper()
	stub := &stubEvaluator{decision: decision}
	mw := NewGateEnforcementMiddleware(stub, zap.NewNop())

	var ctxDecision *gate.Decision
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxDecision = GetDecisionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/gate/evaluate", strings.NewReader(body))
	req.Header.Set("User-Agent", "cria-app/2.1")
	rec := httptest.NewRecorder()
	mw.EnforceEntitlement(next).ServeHTTP(rec, req)
	return rec, stub, ctxDecision
}

func TestEnforceEntitlementAllows(t *testing.T) {
	allowed := gate.Decision{Allowed: true, UsageRemaining: models.Limit(12)}
	rec, stub, ctxDecision := enforce(t, allowed,
		`{"user_id":"u1","tool_type":"carousel","client_ip":"10.0.0.9"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ctxDecision)
	assert.True(t, ctxDecision.Allowed)
	assert.Equal(t, models.Limit(12), ctxDecision.UsageRemaining)
	assert.Equal(t, "u1", stub.lastReq.UserID)
	assert.Equal(t, "10.0.0.9", stub.lastReq.ClientIP)
}

func TestEnforceEntitlementFillsRequestMetadata(t *testing.T) {
	_, stub, _ := enforce(t, gate.Decision{Allowed: true},
		`{"user_id":"u1","tool_type":"carousel"}`)

	assert.NotEmpty(t, stub.lastReq.ClientIP)
	assert.Equal(t, "cria-app/2.1", stub.lastReq.UserAgent)
}

func TestEnforceEntitlementDenials(t *testing.T) {
	tests := []struct {
		name     string
		decision gate.Decision
		wantCode int
	}{
		{
			name:     "fraud detected",
			decision: gate.Decision{Code: gate.DenyFraudDetected, Details: "CRÍTICO"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "daily limit",
			decision: gate.Decision{Code: gate.DenyDailyLimitExceeded, Details: "daily limit of 20 reached"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown user",
			decision: gate.Decision{Code: gate.DenyUserNotFound, Details: "no entitlement record for user ghost"},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "store failure",
			decision: gate.Decision{Code: gate.DenyInternalError, Details: "entitlement store unavailable"},
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, ctxDecision := enforce(t, tt.decision,
				`{"user_id":"u1","tool_type":"carousel"}`)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Nil(t, ctxDecision)
		})
	}
}

func TestEnforceEntitlementBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"user_id":`},
		{name: "missing user", body: `{"tool_type":"carousel"}`},
		{name: "missing tool", body: `{"user_id":"u1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, ctxDecision := enforce(t, gate.Decision{Allowed: true}, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, ctxDecision)
		})
	}
}

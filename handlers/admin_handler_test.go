package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories/memory"
	"github.com/criahub/entitlement-engine/services/enforcement"
)

type discardSink struct{}

func (discardSink) Record(*models.EnforcementAudit) {}

func newAdminRouter(t *testing.T, store *memory.Store) *chi.Mux {
	t.Helper()
	executor := enforcement.NewExecutor(store, discardSink{}, 24*time.Hour, zap.NewNop())
	h := NewAdminHandler(store, executor, zap.NewNop())

	r := chi.NewRouter()
	r.Post("/api/v1/admin/users/{userID}/block", h.HandleBlock)
	r.Post("/api/v1/admin/users/{userID}/unblock", h.HandleUnblock)
	r.Post("/api/v1/admin/users/{userID}/plan", h.HandleChangePlan)
	return r
}

func seedUser(t *testing.T, store *memory.Store, userID string) {
	t.Helper()
	record := models.NewEntitlementRecord(userID, "mensal", time.Now().Add(30*24*time.Hour))
	require.NoError(t, store.Save(context.Background(), record))
}

func TestHandleBlockAndUnblock(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "u1")
	router := newAdminRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u1/block",
		strings.NewReader(`{"reason":"chargeback dispute"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	record, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, record.PlanStatus)
	assert.Equal(t, "chargeback dispute", record.StatusReason)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u1/unblock",
		strings.NewReader(`{"reason":"dispute resolved"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	record, err = store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, record.PlanStatus)
	assert.Nil(t, record.DailyCapOverride)
}

func TestHandleBlockRequiresReason(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "u1")
	router := newAdminRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u1/block",
		strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBlockUnknownUser(t *testing.T) {
	router := newAdminRouter(t, memory.NewStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/ghost/block",
		strings.NewReader(`{"reason":"abuse"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleChangePlanUpgradesExisting(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "u1")
	router := newAdminRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u1/plan",
		strings.NewReader(`{"plan_name":"gold"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	record, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "gold", record.PlanName)
	assert.Equal(t, models.StatusActive, record.PlanStatus)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), record.PlanExpiresAt, time.Minute)
}

func TestHandleChangePlanCreatesRecord(t *testing.T) {
	store := memory.NewStore()
	router := newAdminRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/new-user/plan",
		strings.NewReader(`{"plan_name":"premium","duration_days":90}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.EntitlementRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "premium", envelope.Data.PlanName)
	assert.WithinDuration(t, time.Now().Add(90*24*time.Hour), envelope.Data.PlanExpiresAt, time.Minute)

	_, err := store.Load(context.Background(), "new-user")
	assert.NoError(t, err)
}

func TestHandleChangePlanUnknownPlan(t *testing.T) {
	store := memory.NewStore()
	seedUser(t, store, "u1")
	router := newAdminRouter(t, store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/users/u1/plan",
		strings.NewReader(`{"plan_name":"diamond"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "known_plans")
}

package enforcement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories/memory"
)

type captureSink struct {
	mu      sync.Mutex
	entries []*models.EnforcementAudit
}

func (s *captureSink) Record(entry *models.EnforcementAudit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *captureSink) actions() []models.EnforcementAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EnforcementAction, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

func newTestExecutor(t *testing.T) (*Executor, *memory.Store, *captureSink) {
	t.Helper()
	store := memory.NewStore()
	sink := &captureSink{}
	return NewExecutor(store, sink, 24*time.Hour, zap.NewNop()), store, sink
}

func seedActive(t *testing.T, store *memory.Store, userID string) {
	t.Helper()
	rec := models.NewEntitlementRecord(userID, "gold", time.Now().Add(30*24*time.Hour))
	require.NoError(t, store.Save(context.Background(), rec))
}

func TestExecutor_Block(t *testing.T) {
	exec, store, sink := newTestExecutor(t)
	ctx := context.Background()
	seedActive(t, store, "u1")

	require.NoError(t, exec.Block(ctx, "u1", "bot score 0.95", true))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, got.PlanStatus)
	assert.Equal(t, "bot score 0.95", got.StatusReason)
	assert.Equal(t, []models.EnforcementAction{models.ActionBlockImmediately}, sink.actions())

	// Re-applying is a no-op on state but still audited.
	require.NoError(t, exec.Block(ctx, "u1", "bot score 0.95", true))
	got, err = store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, got.PlanStatus)
	assert.Len(t, sink.actions(), 2)
}

func TestExecutor_Suspend(t *testing.T) {
	exec, store, sink := newTestExecutor(t)
	ctx := context.Background()
	seedActive(t, store, "u1")

	require.NoError(t, exec.Suspend(ctx, "u1", "risk score 65 (ALTO)", true))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAtRisk, got.PlanStatus)
	require.NotNil(t, got.SuspendedUntil)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *got.SuspendedUntil, time.Minute)
	assert.Equal(t, []models.EnforcementAction{models.ActionSuspendTemporarily}, sink.actions())
}

func TestExecutor_LimitUsage(t *testing.T) {
	exec, store, _ := newTestExecutor(t)
	ctx := context.Background()
	seedActive(t, store, "u1")

	require.NoError(t, exec.LimitUsage(ctx, "u1", "risk score 45 (MÉDIO)", true))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.PlanStatus)
	require.NotNil(t, got.DailyCapOverride)
	assert.Equal(t, int64(reducedDailyCap), *got.DailyCapOverride)
	require.NotNil(t, got.AICapOverride)
	assert.Equal(t, int64(reducedAICap), *got.AICapOverride)
}

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name       string
		action     models.EnforcementAction
		wantStatus models.PlanStatus
	}{
		{"block", models.ActionBlockImmediately, models.StatusBlocked},
		{"suspend", models.ActionSuspendTemporarily, models.StatusAtRisk},
		{"limit keeps active", models.ActionLimitUsage, models.StatusActive},
		{"monitor keeps active", models.ActionMonitorClosely, models.StatusActive},
		{"no action", models.ActionNone, models.StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, store, sink := newTestExecutor(t)
			ctx := context.Background()
			seedActive(t, store, "u1")

			assessment := models.RiskAssessment{
				UserID:            "u1",
				Score:             70,
				Level:             models.RiskHigh,
				RecommendedAction: tt.action,
			}
			require.NoError(t, exec.Execute(ctx, assessment))

			got, err := store.Load(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.PlanStatus)

			if tt.action == models.ActionNone {
				assert.Empty(t, sink.actions())
			} else {
				assert.Equal(t, []models.EnforcementAction{tt.action}, sink.actions())
			}
		})
	}
}

func TestExecutor_Unblock(t *testing.T) {
	exec, store, _ := newTestExecutor(t)
	ctx := context.Background()
	seedActive(t, store, "u1")

	require.NoError(t, exec.Block(ctx, "u1", "chargeback pattern", true))
	require.NoError(t, exec.LimitUsage(ctx, "u1", "chargeback pattern", true))
	require.NoError(t, exec.Unblock(ctx, "u1", "support ticket 4412 resolved"))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.PlanStatus)
	assert.Nil(t, got.DailyCapOverride)
	assert.Nil(t, got.AICapOverride)
}

func TestExecutor_MissingUser(t *testing.T) {
	exec, _, sink := newTestExecutor(t)
	ctx := context.Background()

	assert.Error(t, exec.Block(ctx, "ghost", "whatever", true))
	assert.Empty(t, sink.actions())
}

func TestExecutor_Sweep(t *testing.T) {
	exec, store, _ := newTestExecutor(t)
	ctx := context.Background()

	lapsed := models.NewEntitlementRecord("expired-user", "mensal", time.Now().Add(-time.Hour))
	require.NoError(t, store.Save(ctx, lapsed))

	past := time.Now().Add(-time.Minute)
	suspended := models.NewEntitlementRecord("suspended-user", "gold", time.Now().Add(30*24*time.Hour))
	suspended.PlanStatus = models.StatusAtRisk
	suspended.SuspendedUntil = &past
	require.NoError(t, store.Save(ctx, suspended))

	exec.Sweep(ctx)

	got, err := store.Load(ctx, "expired-user")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.PlanStatus)

	got, err = store.Load(ctx, "suspended-user")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.PlanStatus)
}

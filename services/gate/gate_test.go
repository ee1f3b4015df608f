package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories/memory"
	"github.com/criahub/entitlement-engine/services/enforcement"
	"github.com/criahub/entitlement-engine/services/risk"
	"github.com/criahub/entitlement-engine/services/usage"
)

type nopSink struct{}

func (nopSink) Record(*models.EnforcementAudit) {}

type fakeLive struct {
	mu      sync.Mutex
	rpm     map[string]int
	touched int
	blocked int
}

func (f *fakeLive) UserRequestsPerMinute(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rpm[userID]
}

func (f *fakeLive) Touch(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched++
}

func (f *fakeLive) RecordBlockedAttempt() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked++
}

func newTestGate(storeRetry int) (*Gate, *memory.Store, *fakeLive) {
	store := memory.NewStore()
	logger := zap.NewNop()
	meter := usage.NewMeter(store, logger)
	scorer := risk.NewScorer(logger)
	executor := enforcement.NewExecutor(store, nopSink{}, 24*time.Hour, logger)
	live := &fakeLive{rpm: make(map[string]int)}
	return NewGate(store, meter, scorer, executor, live, storeRetry, logger), store, live
}

func seed(t *testing.T, store *memory.Store, rec *models.EntitlementRecord) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), rec))
}

func activeRecord(userID, plan string) *models.EntitlementRecord {
	return models.NewEntitlementRecord(userID, plan, time.Now().Add(30*24*time.Hour))
}

func TestGate_Evaluate_Admit(t *testing.T) {
	g, store, live := newTestGate(1)
	ctx := context.Background()

	rec := activeRecord("u1", "mensal")
	rec.DailyUsage = 5
	seed(t, store, rec)

	decision := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolAIGeneration})
	assert.True(t, decision.Allowed)
	assert.Equal(t, "mensal", decision.Plan.Name)
	assert.Equal(t, models.Limit(15), decision.UsageRemaining)
	assert.Equal(t, 1, live.touched)
	assert.Zero(t, live.blocked)
}

func TestGate_Evaluate_UserNotFound(t *testing.T) {
	g, _, live := newTestGate(1)

	decision := g.Evaluate(context.Background(), Request{UserID: "ghost", ToolType: models.ToolVideo})
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyUserNotFound, decision.Code)
	assert.Equal(t, 1, live.blocked)
}

func TestGate_Evaluate_PlanInactive(t *testing.T) {
	for _, status := range []models.PlanStatus{models.StatusBlocked, models.StatusCanceled} {
		t.Run(string(status), func(t *testing.T) {
			g, store, _ := newTestGate(1)
			rec := activeRecord("u1", "gold")
			rec.PlanStatus = status
			seed(t, store, rec)

			decision := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolEbook})
			assert.False(t, decision.Allowed)
			assert.Equal(t, DenyPlanInactive, decision.Code)
			assert.Equal(t, string(status), decision.Details)
		})
	}
}

func TestGate_Evaluate_AtRisk(t *testing.T) {
	t.Run("payment failure keeps access", func(t *testing.T) {
		g, store, _ := newTestGate(1)
		ctx := context.Background()

		rec := activeRecord("u1", "mensal")
		rec.PlanStatus = models.StatusAtRisk
		rec.StatusReason = "renewal payment failed"
		rec.RiskFlags.FailedPayments = 1
		seed(t, store, rec)

		decision := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolAIGeneration})
		assert.True(t, decision.Allowed)

		// The flag survives the admission; only a suspension revokes access.
		got, err := store.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusAtRisk, got.PlanStatus)
	})

	t.Run("unexpired suspension denies", func(t *testing.T) {
		g, store, _ := newTestGate(1)

		until := time.Now().Add(time.Hour)
		rec := activeRecord("u1", "mensal")
		rec.PlanStatus = models.StatusAtRisk
		rec.SuspendedUntil = &until
		seed(t, store, rec)

		decision := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolAIGeneration})
		assert.False(t, decision.Allowed)
		assert.Equal(t, DenyPlanInactive, decision.Code)
		assert.Equal(t, string(models.StatusAtRisk), decision.Details)
	})
}

func TestGate_Evaluate_ToolNotInPlan(t *testing.T) {
	g, store, _ := newTestGate(1)

	// The free tier has no advanced tool permission.
	seed(t, store, activeRecord("u1", "free"))

	decision := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolVideo})
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyDailyLimitExceeded, decision.Code)
	assert.Equal(t, models.Limit(0), decision.Limit)
	assert.Contains(t, decision.Details, "does not include")
	assert.Nil(t, decision.ResetTime)
}

func TestGate_Evaluate_PlanExpired(t *testing.T) {
	g, store, _ := newTestGate(1)
	ctx := context.Background()

	rec := models.NewEntitlementRecord("u1", "mensal", time.Now().Add(-time.Hour))
	seed(t, store, rec)

	decision := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolVideo})
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyPlanExpired, decision.Code)

	// The observed transition was persisted.
	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.PlanStatus)

	// Re-checking an already-expired record denies the same way.
	again := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolVideo})
	assert.Equal(t, DenyPlanExpired, again.Code)
}

func TestGate_Evaluate_DailyLimitExceeded(t *testing.T) {
	g, store, _ := newTestGate(1)

	// mensal allows 20 tools per day.
	rec := activeRecord("u1", "mensal")
	rec.DailyUsage = 20
	seed(t, store, rec)

	decision := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolAIGeneration})
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyDailyLimitExceeded, decision.Code)
	assert.Equal(t, models.Limit(20), decision.Limit)
	require.NotNil(t, decision.ResetTime)
	assert.Equal(t, usage.NextMidnight(time.Now()), *decision.ResetTime)
}

func TestGate_Evaluate_MonthlyLimitExceeded(t *testing.T) {
	g, store, _ := newTestGate(1)

	// mensal allows 100 AI generations per month.
	rec := activeRecord("u1", "mensal")
	rec.MonthlyUsage.AIGenerations = 100
	seed(t, store, rec)

	decision := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolAIGeneration})
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyDailyLimitExceeded, decision.Code)
	assert.Contains(t, decision.Details, "monthly limit")

	// A different tool class is still admitted.
	other := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolEbook})
	assert.True(t, other.Allowed)
}

func TestGate_Evaluate_FraudBlock(t *testing.T) {
	g, store, _ := newTestGate(1)
	ctx := context.Background()

	rec := activeRecord("u1", "gold")
	rec.RiskFlags.Chargebacks = 3
	seed(t, store, rec)

	decision := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolAIGeneration})
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyFraudDetected, decision.Code)
	assert.Equal(t, models.RiskCritical, decision.RiskLevel)

	// The block landed before the denial was returned.
	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, got.PlanStatus)
}

func TestGate_Evaluate_FraudSuspend(t *testing.T) {
	g, store, _ := newTestGate(1)
	ctx := context.Background()

	// Bot score (45) plus device churn (20) lands in the 60-79 suspend band.
	rec := activeRecord("u1", "gold")
	rec.RiskFlags.BotScore = 0.85
	rec.RiskFlags.DeviceChanges = 11
	seed(t, store, rec)

	decision := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolVideo})
	assert.False(t, decision.Allowed)
	assert.Equal(t, DenyFraudDetected, decision.Code)
	assert.Equal(t, models.RiskHigh, decision.RiskLevel)

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAtRisk, got.PlanStatus)
	assert.NotNil(t, got.SuspendedUntil)
}

func TestGate_Evaluate_LimitUsageAppliesCaps(t *testing.T) {
	g, store, _ := newTestGate(1)
	ctx := context.Background()

	// IP changes (25) + device changes (20) = 45, the limit_usage band.
	rec := activeRecord("u1", "gold")
	rec.RiskFlags.IPChanges = 16
	rec.RiskFlags.DeviceChanges = 11
	rec.DailyUsage = 3
	seed(t, store, rec)

	decision := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolEbook})
	assert.True(t, decision.Allowed)
	// Remaining reflects the reduced cap of 10, not gold's 100.
	assert.Equal(t, models.Limit(7), decision.UsageRemaining)

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.DailyCapOverride)
	assert.Equal(t, int64(10), *got.DailyCapOverride)

	t.Run("usage above the new cap denies the same request", func(t *testing.T) {
		over := activeRecord("u2", "gold")
		over.RiskFlags.IPChanges = 16
		over.RiskFlags.DeviceChanges = 11
		over.DailyUsage = 12
		seed(t, store, over)

		decision := g.Evaluate(ctx, Request{UserID: "u2", ToolType: models.ToolEbook})
		assert.False(t, decision.Allowed)
		assert.Equal(t, DenyDailyLimitExceeded, decision.Code)
		assert.Equal(t, models.Limit(10), decision.Limit)
	})
}

func TestGate_Evaluate_SuspensionLapsesLazily(t *testing.T) {
	g, store, _ := newTestGate(1)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	rec := activeRecord("u1", "mensal")
	rec.PlanStatus = models.StatusAtRisk
	rec.SuspendedUntil = &past
	seed(t, store, rec)

	decision := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolVideo})
	assert.True(t, decision.Allowed)

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.PlanStatus)
	assert.Nil(t, got.SuspendedUntil)
}

func TestGate_Evaluate_LiveSignalsFeedScorer(t *testing.T) {
	g, store, live := newTestGate(1)

	rec := activeRecord("u1", "premium")
	seed(t, store, rec)
	// 61 requests in the last minute contributes 30: the monitor band,
	// which surfaces to operators but never denies.
	live.rpm["u1"] = 61

	decision := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolAIGeneration})
	assert.True(t, decision.Allowed)

	// Stacking a repetitive pattern flag (20) reaches the limit_usage band;
	// the reduced caps apply but the request itself is still admitted.
	decision = g.Evaluate(context.Background(), Request{
		UserID:   "u1",
		ToolType: models.ToolAIGeneration,
		Signals:  models.RiskSignals{RepetitiveActionPattern: true},
	})
	assert.True(t, decision.Allowed)

	got, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, got.DailyCapOverride)
}

func TestGate_Evaluate_StoreFailure(t *testing.T) {
	t.Run("one failure is retried", func(t *testing.T) {
		g, store, _ := newTestGate(1)
		seed(t, store, activeRecord("u1", "mensal"))
		store.FailNextLoads(1, errors.New("connection reset"))

		decision := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolVideo})
		assert.True(t, decision.Allowed)
	})

	t.Run("persistent failure fails closed", func(t *testing.T) {
		g, store, _ := newTestGate(1)
		seed(t, store, activeRecord("u1", "mensal"))
		store.FailNextLoads(2, errors.New("connection reset"))

		decision := g.Evaluate(context.Background(), Request{UserID: "u1", ToolType: models.ToolVideo})
		assert.False(t, decision.Allowed)
		assert.Equal(t, DenyInternalError, decision.Code)
	})
}

func TestGate_Evaluate_ResetsElapsedCounters(t *testing.T) {
	g, store, _ := newTestGate(1)
	ctx := context.Background()

	rec := activeRecord("u1", "mensal")
	rec.DailyUsage = 20
	rec.LastUsageResetAt = time.Now().Add(-48 * time.Hour)
	seed(t, store, rec)

	// Yesterday's exhausted quota does not deny today.
	decision := g.Evaluate(ctx, Request{UserID: "u1", ToolType: models.ToolVideo})
	assert.True(t, decision.Allowed)

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, got.DailyUsage)
}

func TestGate_ReportCompletion(t *testing.T) {
	g, store, _ := newTestGate(1)
	ctx := context.Background()

	seed(t, store, activeRecord("u1", "gold"))

	require.NoError(t, g.ReportCompletion(ctx, "u1", models.ToolAIGeneration, true))
	require.NoError(t, g.ReportCompletion(ctx, "u1", models.ToolAIGeneration, false))

	got, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.DailyUsage)
	assert.Equal(t, int64(1), got.MonthlyUsage.AIGenerations)

	assert.Error(t, g.ReportCompletion(ctx, "ghost", models.ToolVideo, true))
}

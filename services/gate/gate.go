package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
	"github.com/criahub/entitlement-engine/services/catalog"
	"github.com/criahub/entitlement-engine/services/enforcement"
	"github.com/criahub/entitlement-engine/services/risk"
	"github.com/criahub/entitlement-engine/services/usage"
)

// DenyCode is the typed reason a request was rejected.
type DenyCode string

const (
	DenyUserNotFound       DenyCode = "USER_NOT_FOUND"
	DenyPlanInactive       DenyCode = "PLAN_INACTIVE"
	DenyPlanExpired        DenyCode = "PLAN_EXPIRED"
	DenyDailyLimitExceeded DenyCode = "DAILY_LIMIT_EXCEEDED"
	DenyFraudDetected      DenyCode = "FRAUD_DETECTED"
	DenyInternalError      DenyCode = "INTERNAL_ERROR"
)

// Request is the gate input for one protected tool call.
type Request struct {
	UserID    string             `json:"user_id" validate:"required"`
	ToolType  models.ToolType    `json:"tool_type" validate:"required"`
	ClientIP  string             `json:"client_ip,omitempty"`
	UserAgent string             `json:"user_agent,omitempty"`
	Signals   models.RiskSignals `json:"signals,omitempty"`
}

// Decision is the gate output: either an admission carrying plan context or
// a typed denial.
type Decision struct {
	Allowed        bool             `json:"allowed"`
	Plan           models.Plan      `json:"plan,omitempty"`
	UsageRemaining models.Limit     `json:"usage_remaining,omitempty"`
	Code           DenyCode         `json:"code,omitempty"`
	Details        string           `json:"details,omitempty"`
	Limit          models.Limit     `json:"limit,omitempty"`
	ResetTime      *time.Time       `json:"reset_time,omitempty"`
	RiskLevel      models.RiskLevel `json:"risk_level,omitempty"`
}

func admit(plan models.Plan, remaining models.Limit) Decision {
	return Decision{Allowed: true, Plan: plan, UsageRemaining: remaining}
}

func deny(code DenyCode, details string) Decision {
	return Decision{Allowed: false, Code: code, Details: details}
}

// LiveSignals provides the aggregator-backed behavior signals the scorer
// consumes.
type LiveSignals interface {
	UserRequestsPerMinute(userID string) int
	Touch(userID string)
	RecordBlockedAttempt()
}

// Gate is the synchronous admit/deny decision point for every protected
// request. It completes in-process with one record read and, on enforcement
// paths, one record write; storage failures fail closed.
type Gate struct {
	repo       repositories.EntitlementRepository
	meter      *usage.Meter
	scorer     *risk.Scorer
	executor   *enforcement.Executor
	live       LiveSignals
	logger     *zap.Logger
	storeRetry int
}

func NewGate(
	repo repositories.EntitlementRepository,
	meter *usage.Meter,
	scorer *risk.Scorer,
	executor *enforcement.Executor,
	live LiveSignals,
	storeRetry int,
	logger *zap.Logger,
) *Gate {
	if storeRetry < 0 {
		storeRetry = 0
	}
	return &Gate{
		repo:       repo,
		meter:      meter,
		scorer:     scorer,
		executor:   executor,
		live:       live,
		logger:     logger,
		storeRetry: storeRetry,
	}
}

// Evaluate decides one request. On admission the caller runs the tool and
// must call ReportCompletion afterwards so that only successful executions
// consume quota.
func (g *Gate) Evaluate(ctx context.Context, req Request) Decision {
	now := time.Now()

	record, decision, ok := g.loadRecord(ctx, req.UserID)
	if !ok {
		g.recordDenial(req.UserID, decision)
		return decision
	}

	if g.live != nil {
		g.live.Touch(req.UserID)
	}

	// Lazy lifecycle bookkeeping observed on this access is persisted
	// immediately so the next check starts from clean state.
	if record.SuspensionLapsed(now) {
		if err := g.repo.UpdateStatus(ctx, req.UserID, models.StatusActive, "suspension elapsed", nil); err != nil {
			g.logger.Error("failed to persist suspension reactivation",
				zap.String("user_id", req.UserID), zap.Error(err))
			decision = deny(DenyInternalError, "entitlement store unavailable")
			g.recordDenial(req.UserID, decision)
			return decision
		}
		record.PlanStatus = models.StatusActive
		record.StatusReason = "suspension elapsed"
		record.SuspendedUntil = nil
	}

	if decision, denied := statusDenial(record); denied {
		g.recordDenial(req.UserID, decision)
		return decision
	}

	if now.After(record.PlanExpiresAt) {
		if err := g.repo.UpdateStatus(ctx, req.UserID, models.StatusExpired, "plan term elapsed", nil); err != nil {
			g.logger.Error("failed to persist plan expiry",
				zap.String("user_id", req.UserID), zap.Error(err))
		}
		decision = deny(DenyPlanExpired, fmt.Sprintf("plan expired at %s", record.PlanExpiresAt.Format(time.RFC3339)))
		g.recordDenial(req.UserID, decision)
		return decision
	}

	if g.meter.ResetIfElapsed(record, now) {
		if err := g.repo.Save(ctx, record); err != nil {
			g.logger.Error("failed to persist usage reset",
				zap.String("user_id", req.UserID), zap.Error(err))
		}
	}

	plan := catalog.RulesFor(record.PlanName)
	if decision, denied := g.checkLimits(plan, record, req.ToolType, now); denied {
		g.recordDenial(req.UserID, decision)
		return decision
	}

	signals := req.Signals
	if g.live != nil {
		if live := g.live.UserRequestsPerMinute(req.UserID); live > signals.RequestsPerMinute {
			signals.RequestsPerMinute = live
		}
	}
	assessment := g.scorer.Assess(record, signals, now)

	switch assessment.RecommendedAction {
	case models.ActionBlockImmediately, models.ActionSuspendTemporarily:
		// Applied before anything is admitted, within this same request.
		if err := g.executor.Execute(ctx, assessment); err != nil {
			g.logger.Error("failed to apply enforcement action",
				zap.String("user_id", req.UserID),
				zap.String("action", string(assessment.RecommendedAction)),
				zap.Error(err))
			decision = deny(DenyInternalError, "entitlement store unavailable")
			g.recordDenial(req.UserID, decision)
			return decision
		}
		decision = deny(DenyFraudDetected, string(assessment.Level))
		decision.RiskLevel = assessment.Level
		g.recordDenial(req.UserID, decision)
		return decision

	case models.ActionLimitUsage:
		if err := g.executor.Execute(ctx, assessment); err != nil {
			g.logger.Error("failed to apply usage limit",
				zap.String("user_id", req.UserID), zap.Error(err))
		} else if reloaded, err := g.repo.Load(ctx, req.UserID); err == nil {
			// Re-check against the reduced caps before admitting this
			// same request.
			record = reloaded
			if decision, denied := g.checkLimits(plan, record, req.ToolType, now); denied {
				g.recordDenial(req.UserID, decision)
				return decision
			}
		}

	case models.ActionMonitorClosely:
		g.executor.FlagForMonitoring(assessment)
	}

	check := g.meter.CheckCapped(plan, models.LimitToolsPerDay, record.DailyUsage, record.DailyCapOverride)
	return admit(plan, check.Remaining)
}

// ReportCompletion is called by the tool runner after an admitted request
// finishes. Only successful executions consume quota; failures are the
// caller's concern to retry.
func (g *Gate) ReportCompletion(ctx context.Context, userID string, tool models.ToolType, success bool) error {
	if !success {
		return nil
	}

	if err := g.meter.Increment(ctx, userID, models.CounterDaily); err != nil {
		return fmt.Errorf("increment daily usage for user %s: %w", userID, err)
	}
	if counter, ok := models.MonthlyCounterFor(tool); ok {
		if err := g.meter.Increment(ctx, userID, counter); err != nil {
			return fmt.Errorf("increment %s for user %s: %w", counter, userID, err)
		}
	}
	return nil
}

// statusDenial maps a non-granting lifecycle status to its denial. A
// payment-failure at_risk record carries no suspension horizon and keeps
// access; the failed-payment flag still feeds the scorer. Only an
// enforcement suspension sets SuspendedUntil, and that denies until it
// lapses.
func statusDenial(record *models.EntitlementRecord) (Decision, bool) {
	switch record.PlanStatus {
	case models.StatusActive:
		return Decision{}, false
	case models.StatusExpired:
		return deny(DenyPlanExpired, fmt.Sprintf("plan expired at %s", record.PlanExpiresAt.Format(time.RFC3339))), true
	case models.StatusAtRisk:
		if record.SuspendedUntil == nil {
			return Decision{}, false
		}
		return deny(DenyPlanInactive, string(record.PlanStatus)), true
	default:
		return deny(DenyPlanInactive, string(record.PlanStatus)), true
	}
}

// checkLimits applies the daily quota and, for tools with a monthly class
// counter, the monthly quota, honoring any enforcement overrides. Both
// denials share the DAILY_LIMIT_EXCEEDED code; the details and reset time
// tell them apart.
func (g *Gate) checkLimits(plan models.Plan, record *models.EntitlementRecord, tool models.ToolType, now time.Time) (Decision, bool) {
	// A tool class outside the plan's permissions is a permanent zero
	// quota: same code as an exhausted limit, but no reset time.
	if !plan.AllowsTool(tool) {
		decision := deny(DenyDailyLimitExceeded, fmt.Sprintf("plan %s does not include %s tools", plan.Name, tool))
		decision.Limit = 0
		return decision, true
	}

	daily := g.meter.CheckCapped(plan, models.LimitToolsPerDay, record.DailyUsage, record.DailyCapOverride)
	if !daily.Allowed {
		reset := usage.NextMidnight(now)
		decision := deny(DenyDailyLimitExceeded, fmt.Sprintf("daily limit of %d reached", int64(daily.Limit)))
		decision.Limit = daily.Limit
		decision.ResetTime = &reset
		return decision, true
	}

	name, current, override, ok := monthlyQuota(record, tool)
	if !ok {
		return Decision{}, false
	}
	monthly := g.meter.CheckCapped(plan, name, current, override)
	if !monthly.Allowed {
		reset := firstOfNextMonth(now)
		decision := deny(DenyDailyLimitExceeded, fmt.Sprintf("monthly limit of %d for %s reached", int64(monthly.Limit), tool))
		decision.Limit = monthly.Limit
		decision.ResetTime = &reset
		return decision, true
	}
	return Decision{}, false
}

func monthlyQuota(record *models.EntitlementRecord, tool models.ToolType) (models.LimitName, int64, *int64, bool) {
	switch tool {
	case models.ToolAIGeneration:
		return models.LimitAIGenerationsPerMonth, record.MonthlyUsage.AIGenerations, record.AICapOverride, true
	case models.ToolVideo:
		return models.LimitVideosPerMonth, record.MonthlyUsage.Videos, nil, true
	case models.ToolEbook:
		return models.LimitEbooksPerMonth, record.MonthlyUsage.Ebooks, nil, true
	default:
		return "", 0, nil, false
	}
}

func firstOfNextMonth(now time.Time) time.Time {
	year, month, _ := now.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
}

// loadRecord loads the user's record, retrying transient store failures
// once before failing closed.
func (g *Gate) loadRecord(ctx context.Context, userID string) (*models.EntitlementRecord, Decision, bool) {
	var lastErr error
	for attempt := 0; attempt <= g.storeRetry; attempt++ {
		record, err := g.repo.Load(ctx, userID)
		if err == nil {
			return record, Decision{}, true
		}
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, deny(DenyUserNotFound, fmt.Sprintf("no entitlement record for user %s", userID)), false
		}
		lastErr = err
	}

	g.logger.Error("entitlement store unavailable, failing closed",
		zap.String("user_id", userID), zap.Error(lastErr))
	return nil, deny(DenyInternalError, "entitlement store unavailable"), false
}

func (g *Gate) recordDenial(userID string, decision Decision) {
	if g.live != nil {
		g.live.RecordBlockedAttempt()
	}
	g.logger.Info("request denied",
		zap.String("user_id", userID),
		zap.String("code", string(decision.Code)),
		zap.String("details", decision.Details))
}

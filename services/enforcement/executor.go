package enforcement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
)

// Reduced quotas applied by a limit_usage action. They hold until an admin
// clears them or a payment liberates the account.
const (
	reducedDailyCap = 10
	reducedAICap    = 20
)

// AuditSink receives enforcement audit entries. Recording must never block
// the action being recorded.
type AuditSink interface {
	Record(entry *models.EnforcementAudit)
}

// Executor applies enforcement actions to entitlement records. Actions are
// idempotent; re-applying one to a record already in the target state is a
// no-op that still leaves an audit entry.
type Executor struct {
	repo               repositories.EntitlementRepository
	sink               AuditSink
	logger             *zap.Logger
	suspensionDuration time.Duration
}

func NewExecutor(repo repositories.EntitlementRepository, sink AuditSink, suspensionDuration time.Duration, logger *zap.Logger) *Executor {
	if suspensionDuration <= 0 {
		suspensionDuration = 24 * time.Hour
	}
	return &Executor{
		repo:               repo,
		sink:               sink,
		logger:             logger,
		suspensionDuration: suspensionDuration,
	}
}

// Execute applies the assessment's recommended action. Only auto-executed
// actions mutate the record; monitor_closely is surfaced, no_action ignored.
func (e *Executor) Execute(ctx context.Context, assessment models.RiskAssessment) error {
	reason := fmt.Sprintf("risk score %d (%s)", assessment.Score, assessment.Level)

	switch assessment.RecommendedAction {
	case models.ActionBlockImmediately:
		return e.Block(ctx, assessment.UserID, reason, true)
	case models.ActionSuspendTemporarily:
		return e.Suspend(ctx, assessment.UserID, reason, true)
	case models.ActionLimitUsage:
		return e.LimitUsage(ctx, assessment.UserID, reason, true)
	case models.ActionMonitorClosely:
		e.FlagForMonitoring(assessment)
		return nil
	default:
		return nil
	}
}

// Block moves the record to blocked. A blocked record only returns to active
// through a confirmed payment or an explicit admin unblock.
func (e *Executor) Block(ctx context.Context, userID, reason string, auto bool) error {
	if err := e.repo.UpdateStatus(ctx, userID, models.StatusBlocked, reason, nil); err != nil {
		return fmt.Errorf("block user %s: %w", userID, err)
	}

	e.logger.Warn("user blocked",
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.Bool("auto", auto))
	e.sink.Record(models.NewEnforcementAudit(userID, models.ActionBlockImmediately, reason, auto))
	return nil
}

// Suspend moves the record to at_risk with a suspension horizon. The gate
// reactivates it lazily once the horizon passes.
func (e *Executor) Suspend(ctx context.Context, userID, reason string, auto bool) error {
	until := time.Now().Add(e.suspensionDuration)
	if err := e.repo.UpdateStatus(ctx, userID, models.StatusAtRisk, reason, &until); err != nil {
		return fmt.Errorf("suspend user %s: %w", userID, err)
	}

	e.logger.Warn("user suspended",
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.Time("until", until))
	e.sink.Record(models.NewEnforcementAudit(userID, models.ActionSuspendTemporarily, reason, auto).
		WithDetails(map[string]interface{}{"suspended_until": until}))
	return nil
}

// LimitUsage keeps the record active but applies reduced quota overrides.
func (e *Executor) LimitUsage(ctx context.Context, userID, reason string, auto bool) error {
	daily := int64(reducedDailyCap)
	ai := int64(reducedAICap)
	if err := e.repo.SetUsageCaps(ctx, userID, &daily, &ai); err != nil {
		return fmt.Errorf("limit usage for user %s: %w", userID, err)
	}

	e.logger.Warn("user usage limited",
		zap.String("user_id", userID),
		zap.String("reason", reason),
		zap.Int64("daily_cap", daily),
		zap.Int64("ai_cap", ai))
	e.sink.Record(models.NewEnforcementAudit(userID, models.ActionLimitUsage, reason, auto).
		WithDetails(map[string]interface{}{"daily_cap": daily, "ai_cap": ai}))
	return nil
}

// FlagForMonitoring surfaces an elevated score to operators without touching
// the record.
func (e *Executor) FlagForMonitoring(assessment models.RiskAssessment) {
	e.logger.Info("user flagged for monitoring",
		zap.String("user_id", assessment.UserID),
		zap.Int("score", assessment.Score),
		zap.Int("usage", assessment.Breakdown.Usage),
		zap.Int("payment", assessment.Breakdown.Payment),
		zap.Int("behavior", assessment.Breakdown.Behavior),
		zap.Int("temporal", assessment.Breakdown.Temporal))
	e.sink.Record(models.NewEnforcementAudit(assessment.UserID, models.ActionMonitorClosely,
		fmt.Sprintf("risk score %d (%s)", assessment.Score, assessment.Level), false))
}

// Unblock restores a blocked or suspended record to active and clears any
// quota overrides. Admin-only; it bypasses the risk scorer.
func (e *Executor) Unblock(ctx context.Context, userID, reason string) error {
	if err := e.repo.UpdateStatus(ctx, userID, models.StatusActive, reason, nil); err != nil {
		return fmt.Errorf("unblock user %s: %w", userID, err)
	}
	if err := e.repo.SetUsageCaps(ctx, userID, nil, nil); err != nil {
		return fmt.Errorf("clear usage caps for user %s: %w", userID, err)
	}

	e.logger.Info("user unblocked",
		zap.String("user_id", userID),
		zap.String("reason", reason))
	e.sink.Record(models.NewEnforcementAudit(userID, models.ActionNone, reason, false).
		WithDetails(map[string]interface{}{"operation": "admin_unblock"}))
	return nil
}

// Sweep runs the periodic lifecycle maintenance: lapsed active plans become
// expired and lapsed suspensions return to active. All transitions are also
// re-checked lazily on the next gate evaluation, so a skipped sweep only
// delays the bookkeeping.
func (e *Executor) Sweep(ctx context.Context) {
	now := time.Now()

	expired, err := e.repo.ExpireStale(ctx, now)
	if err != nil {
		e.logger.Error("expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		e.logger.Info("expired stale plans", zap.Int64("count", expired))
	}

	reactivated, err := e.repo.ReactivateLapsedSuspensions(ctx, now)
	if err != nil {
		e.logger.Error("suspension sweep failed", zap.Error(err))
	} else if reactivated > 0 {
		e.logger.Info("reactivated lapsed suspensions", zap.Int64("count", reactivated))
	}
}

// StartSweep runs Sweep on a ticker until the context is canceled.
func (e *Executor) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("enforcement sweep stopped")
				return
			case <-ticker.C:
				e.Sweep(ctx)
			}
		}
	}()
}

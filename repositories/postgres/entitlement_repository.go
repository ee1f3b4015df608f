package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
)

// counterColumns whitelists the storage columns reachable through
// AtomicIncrement. Anything else is rejected before touching SQL.
var counterColumns = map[models.Counter]string{
	models.CounterDaily:         "daily_usage",
	models.CounterAIGenerations: "ai_generations",
	models.CounterVideos:        "videos",
	models.CounterEbooks:        "ebooks",
}

const entitlementColumns = `
	user_id, plan_name, plan_status, plan_expires_at,
	daily_usage, ai_generations, videos, ebooks, last_usage_reset_at,
	failed_payments, chargebacks, ip_changes, device_changes,
	bot_score, night_activity, weekend_spike,
	status_reason, suspended_until, daily_cap_override, ai_cap_override,
	last_payment_id, activated_at, created_at, updated_at`

// EntitlementRepository implements repositories.EntitlementRepository on PostgreSQL
type EntitlementRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEntitlementRepository creates a new entitlement repository
func NewEntitlementRepository(db *DB, logger *zap.Logger) repositories.EntitlementRepository {
	return &EntitlementRepository{
		db:     db,
		logger: logger,
	}
}

// Load retrieves a user's entitlement record
func (r *EntitlementRepository) Load(ctx context.Context, userID string) (*models.EntitlementRecord, error) {
	query := `SELECT` + entitlementColumns + `
		FROM entitlement_records
		WHERE user_id = $1`

	rec := &models.EntitlementRecord{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.PlanName,
		&rec.PlanStatus,
		&rec.PlanExpiresAt,
		&rec.DailyUsage,
		&rec.MonthlyUsage.AIGenerations,
		&rec.MonthlyUsage.Videos,
		&rec.MonthlyUsage.Ebooks,
		&rec.LastUsageResetAt,
		&rec.RiskFlags.FailedPayments,
		&rec.RiskFlags.Chargebacks,
		&rec.RiskFlags.IPChanges,
		&rec.RiskFlags.DeviceChanges,
		&rec.RiskFlags.BotScore,
		&rec.RiskFlags.NightActivity,
		&rec.RiskFlags.WeekendSpike,
		&rec.StatusReason,
		&rec.SuspendedUntil,
		&rec.DailyCapOverride,
		&rec.AICapOverride,
		&rec.LastPaymentID,
		&rec.ActivatedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load entitlement record: %w", err)
	}

	return rec, nil
}

// Save upserts the full record
func (r *EntitlementRepository) Save(ctx context.Context, rec *models.EntitlementRecord) error {
	query := `
		INSERT INTO entitlement_records (` + entitlementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (user_id)
		DO UPDATE SET
			plan_name = EXCLUDED.plan_name,
			plan_status = EXCLUDED.plan_status,
			plan_expires_at = EXCLUDED.plan_expires_at,
			daily_usage = EXCLUDED.daily_usage,
			ai_generations = EXCLUDED.ai_generations,
			videos = EXCLUDED.videos,
			ebooks = EXCLUDED.ebooks,
			last_usage_reset_at = EXCLUDED.last_usage_reset_at,
			failed_payments = EXCLUDED.failed_payments,
			chargebacks = EXCLUDED.chargebacks,
			ip_changes = EXCLUDED.ip_changes,
			device_changes = EXCLUDED.device_changes,
			bot_score = EXCLUDED.bot_score,
			night_activity = EXCLUDED.night_activity,
			weekend_spike = EXCLUDED.weekend_spike,
			status_reason = EXCLUDED.status_reason,
			suspended_until = EXCLUDED.suspended_until,
			daily_cap_override = EXCLUDED.daily_cap_override,
			ai_cap_override = EXCLUDED.ai_cap_override,
			last_payment_id = EXCLUDED.last_payment_id,
			activated_at = EXCLUDED.activated_at,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		rec.UserID,
		rec.PlanName,
		rec.PlanStatus,
		rec.PlanExpiresAt,
		rec.DailyUsage,
		rec.MonthlyUsage.AIGenerations,
		rec.MonthlyUsage.Videos,
		rec.MonthlyUsage.Ebooks,
		rec.LastUsageResetAt,
		rec.RiskFlags.FailedPayments,
		rec.RiskFlags.Chargebacks,
		rec.RiskFlags.IPChanges,
		rec.RiskFlags.DeviceChanges,
		rec.RiskFlags.BotScore,
		rec.RiskFlags.NightActivity,
		rec.RiskFlags.WeekendSpike,
		rec.StatusReason,
		rec.SuspendedUntil,
		rec.DailyCapOverride,
		rec.AICapOverride,
		rec.LastPaymentID,
		rec.ActivatedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save entitlement record: %w", err)
	}

	r.logger.Debug("entitlement record saved", zap.String("user_id", rec.UserID))
	return nil
}

// AtomicIncrement adds delta to a counter as a single UPDATE so concurrent
// requests for the same user cannot lose updates.
func (r *EntitlementRepository) AtomicIncrement(ctx context.Context, userID string, counter models.Counter, delta int64) error {
	column, ok := counterColumns[counter]
	if !ok {
		return fmt.Errorf("unknown usage counter %q", counter)
	}

	query := fmt.Sprintf(`
		UPDATE entitlement_records
		SET %s = %s + $2, updated_at = NOW()
		WHERE user_id = $1`, column, column)

	result, err := r.db.ExecContext(ctx, query, userID, delta)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// UpdateStatus sets the lifecycle status, reason and suspension horizon
func (r *EntitlementRepository) UpdateStatus(ctx context.Context, userID string, status models.PlanStatus, reason string, suspendedUntil *time.Time) error {
	query := `
		UPDATE entitlement_records
		SET plan_status = $2, status_reason = $3, suspended_until = $4, updated_at = NOW()
		WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, status, reason, suspendedUntil)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("entitlement status updated",
		zap.String("user_id", userID),
		zap.String("status", string(status)))
	return nil
}

// SetUsageCaps sets or clears the reduced-quota overrides
func (r *EntitlementRepository) SetUsageCaps(ctx context.Context, userID string, dailyCap, aiCap *int64) error {
	query := `
		UPDATE entitlement_records
		SET daily_cap_override = $2, ai_cap_override = $3, updated_at = NOW()
		WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, dailyCap, aiCap)
	if err != nil {
		return fmt.Errorf("failed to set usage caps: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// ResetUsage zeroes all usage counters and stamps the reset time
func (r *EntitlementRepository) ResetUsage(ctx context.Context, userID string, at time.Time) error {
	query := `
		UPDATE entitlement_records
		SET daily_usage = 0, ai_generations = 0, videos = 0, ebooks = 0,
			last_usage_reset_at = $2, updated_at = NOW()
		WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// UpdateRiskFlags persists the accumulated fraud signals
func (r *EntitlementRepository) UpdateRiskFlags(ctx context.Context, userID string, flags models.RiskFlags) error {
	query := `
		UPDATE entitlement_records
		SET failed_payments = $2, chargebacks = $3, ip_changes = $4,
			device_changes = $5, bot_score = $6, night_activity = $7,
			weekend_spike = $8, updated_at = NOW()
		WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID,
		flags.FailedPayments,
		flags.Chargebacks,
		flags.IPChanges,
		flags.DeviceChanges,
		flags.BotScore,
		flags.NightActivity,
		flags.WeekendSpike,
	)
	if err != nil {
		return fmt.Errorf("failed to update risk flags: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// ExpireStale marks lapsed active records as expired
func (r *EntitlementRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE entitlement_records
		SET plan_status = $1, status_reason = 'plan term elapsed', updated_at = NOW()
		WHERE plan_status = $2 AND plan_expires_at < $3`

	result, err := r.db.ExecContext(ctx, query, models.StatusExpired, models.StatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale records: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		r.logger.Info("expired stale entitlement records", zap.Int64("count", rows))
	}
	return rows, nil
}

// ReactivateLapsedSuspensions returns lapsed at_risk suspensions to active
func (r *EntitlementRepository) ReactivateLapsedSuspensions(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE entitlement_records
		SET plan_status = $1, status_reason = 'suspension elapsed',
			suspended_until = NULL, updated_at = NOW()
		WHERE plan_status = $2 AND suspended_until IS NOT NULL AND suspended_until < $3`

	result, err := r.db.ExecContext(ctx, query, models.StatusActive, models.StatusAtRisk, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reactivate suspensions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		r.logger.Info("reactivated lapsed suspensions", zap.Int64("count", rows))
	}
	return rows, nil
}

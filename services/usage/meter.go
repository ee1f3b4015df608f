// Package usage enforces plan quotas and owns the lazy reset of the
// per-user counters. Increments go straight to the record store as atomic
// updates; the meter never read-modify-writes a counter.
package usage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
)

// LimitCheck is the outcome of a quota check.
type LimitCheck struct {
	Allowed   bool
	Limit     models.Limit
	Remaining models.Limit
}

// Meter checks and advances usage counters.
type Meter struct {
	repo   repositories.EntitlementRepository
	logger *zap.Logger
}

// NewMeter creates a new usage meter.
func NewMeter(repo repositories.EntitlementRepository, logger *zap.Logger) *Meter {
	return &Meter{
		repo:   repo,
		logger: logger,
	}
}

// CheckLimit evaluates currentUsage against a named plan quota. Unbounded
// limits always allow and report unbounded headroom.
func (m *Meter) CheckLimit(plan models.Plan, name models.LimitName, currentUsage int64) LimitCheck {
	limit := plan.Limits.Get(name)
	return LimitCheck{
		Allowed:   limit.Allows(currentUsage),
		Limit:     limit,
		Remaining: limit.Remaining(currentUsage),
	}
}

// CheckCapped evaluates usage against the lower of the plan quota and an
// enforcement override. A nil override leaves the plan quota untouched.
func (m *Meter) CheckCapped(plan models.Plan, name models.LimitName, currentUsage int64, override *int64) LimitCheck {
	limit := plan.Limits.Get(name)
	if override != nil && (limit.IsUnbounded() || *override < int64(limit)) {
		limit = models.Limit(*override)
	}
	return LimitCheck{
		Allowed:   limit.Allows(currentUsage),
		Limit:     limit,
		Remaining: limit.Remaining(currentUsage),
	}
}

// Increment adds one to a usage counter through the store's atomic update.
func (m *Meter) Increment(ctx context.Context, userID string, counter models.Counter) error {
	if err := m.repo.AtomicIncrement(ctx, userID, counter, 1); err != nil {
		return fmt.Errorf("failed to increment %s for %s: %w", counter, userID, err)
	}

	m.logger.Debug("usage incremented",
		zap.String("user_id", userID),
		zap.String("counter", string(counter)))
	return nil
}

// ResetIfElapsed applies the lazy reset rules to a record in place and
// reports whether anything changed. Daily counters reset on the first access
// of a new local day; monthly counters on the first access in a new calendar
// month. Callers persist the record when true is returned.
func (m *Meter) ResetIfElapsed(record *models.EntitlementRecord, now time.Time) bool {
	last := record.LastUsageResetAt
	changed := false

	if !sameDay(last, now) {
		record.DailyUsage = 0
		changed = true
	}

	if !sameMonth(last, now) {
		record.MonthlyUsage = models.MonthlyUsage{}
		changed = true
	}

	if changed {
		record.LastUsageResetAt = now
		m.logger.Debug("usage counters reset",
			zap.String("user_id", record.UserID),
			zap.Time("previous_reset", last))
	}
	return changed
}

// NextMidnight returns the next local midnight after now, the retry hint
// handed to clients on a daily-limit denial.
func NextMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}

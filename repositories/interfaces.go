package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/criahub/entitlement-engine/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// EntitlementRepository is the record store for entitlement state. The engine
// owns the records; the store persists and retrieves them verbatim.
type EntitlementRepository interface {
	// Load retrieves a user's entitlement record. Returns ErrNotFound when
	// the user has no record.
	Load(ctx context.Context, userID string) (*models.EntitlementRecord, error)

	// Save upserts the full record.
	Save(ctx context.Context, record *models.EntitlementRecord) error

	// AtomicIncrement adds delta to a usage counter as a single serializable
	// update at the storage layer. Never read-modify-write.
	AtomicIncrement(ctx context.Context, userID string, counter models.Counter, delta int64) error

	// UpdateStatus sets the lifecycle status, reason and optional suspension
	// horizon, touching nothing else.
	UpdateStatus(ctx context.Context, userID string, status models.PlanStatus, reason string, suspendedUntil *time.Time) error

	// SetUsageCaps sets or clears the reduced-quota overrides applied by a
	// limit_usage enforcement action.
	SetUsageCaps(ctx context.Context, userID string, dailyCap, aiCap *int64) error

	// ResetUsage zeroes all usage counters and stamps the reset time.
	ResetUsage(ctx context.Context, userID string, at time.Time) error

	// UpdateRiskFlags persists the accumulated fraud signals.
	UpdateRiskFlags(ctx context.Context, userID string, flags models.RiskFlags) error

	// ExpireStale marks active records whose plan lapsed before now as
	// expired. Returns the number of records transitioned.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	// ReactivateLapsedSuspensions returns at_risk records whose suspension
	// horizon passed before now to active. Returns the number transitioned.
	ReactivateLapsedSuspensions(ctx context.Context, now time.Time) (int64, error)
}

// AuditRepository stores the append-only enforcement audit trail.
type AuditRepository interface {
	// Insert appends a new audit entry.
	Insert(ctx context.Context, entry *models.EnforcementAudit) error

	// ListByUser retrieves audit entries for a user, newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.EnforcementAudit, error)

	// ListRecent retrieves the most recent audit entries across all users.
	ListRecent(ctx context.Context, limit, offset int) ([]*models.EnforcementAudit, error)
}

// EventRepository keeps processed markers for payment events so redelivery
// is idempotent.
type EventRepository interface {
	// IsProcessed reports whether an event id has already been recorded.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records an event id. Returns false when the id was
	// already recorded by a concurrent delivery.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

// Repositories aggregates all repository interfaces.
type Repositories struct {
	Entitlements EntitlementRepository
	AuditLogs    AuditRepository
	Events       EventRepository
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
)

// AuditRepository implements repositories.AuditRepository on PostgreSQL
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends a new audit entry
func (r *AuditRepository) Insert(ctx context.Context, entry *models.EnforcementAudit) error {
	query := `
		INSERT INTO enforcement_audit (id, user_id, action, severity, reason, details, auto_executed, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var details interface{}
	if len(entry.Details) > 0 {
		details = []byte(entry.Details)
	}

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.Severity,
		entry.Reason,
		details,
		entry.AutoExecuted,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

// ListByUser retrieves audit entries for a user, newest first
func (r *AuditRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.EnforcementAudit, error) {
	query := `
		SELECT id, user_id, action, severity, reason, details, auto_executed, timestamp
		FROM enforcement_audit
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// ListRecent retrieves the most recent audit entries across all users
func (r *AuditRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.EnforcementAudit, error) {
	query := `
		SELECT id, user_id, action, severity, reason, details, auto_executed, timestamp
		FROM enforcement_audit
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

func scanAuditEntries(rows *sql.Rows) ([]*models.EnforcementAudit, error) {
	entries := make([]*models.EnforcementAudit, 0)
	for rows.Next() {
		entry := &models.EnforcementAudit{}
		var details sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Action,
			&entry.Severity,
			&entry.Reason,
			&details,
			&entry.AutoExecuted,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if details.Valid {
			entry.Details = []byte(details.String)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}

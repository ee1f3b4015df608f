package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/repositories"
)

// EventRepository implements repositories.EventRepository on PostgreSQL
type EventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewEventRepository creates a new processed-event repository
func NewEventRepository(db *DB, logger *zap.Logger) repositories.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// IsProcessed reports whether an event id has already been recorded.
func (r *EventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`

	var processed bool
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&processed); err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return processed, nil
}

// MarkProcessed records an event id. The ON CONFLICT DO NOTHING insert makes
// the marker and the duplicate check a single atomic statement.
func (r *EventRepository) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (event_id)
		VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		r.logger.Debug("event already processed", zap.String("event_id", eventID))
		return false, nil
	}
	return true, nil
}

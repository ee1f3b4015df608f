package postgres

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/config"
	"github.com/criahub/entitlement-engine/repositories"
)

// RepositoryFactory wires the PostgreSQL-backed repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the connection pool and applies migrations
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &RepositoryFactory{
		db:     db,
		logger: logger,
	}, nil
}

// NewRepositories creates the full repository set
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Entitlements: NewEntitlementRepository(f.db, f.logger),
		AuditLogs:    NewAuditRepository(f.db, f.logger),
		Events:       NewEventRepository(f.db, f.logger),
	}
}

// GetDB returns the underlying connection pool
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the connection pool
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}

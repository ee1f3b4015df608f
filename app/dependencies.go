package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/config"
	"github.com/criahub/entitlement-engine/handlers"
	"github.com/criahub/entitlement-engine/middleware"
	"github.com/criahub/entitlement-engine/repositories"
	"github.com/criahub/entitlement-engine/repositories/postgres"
	"github.com/criahub/entitlement-engine/services/audit"
	"github.com/criahub/entitlement-engine/services/enforcement"
	"github.com/criahub/entitlement-engine/services/gate"
	"github.com/criahub/entitlement-engine/services/metrics"
	"github.com/criahub/entitlement-engine/services/payments"
	"github.com/criahub/entitlement-engine/services/pricing"
	"github.com/criahub/entitlement-engine/services/risk"
	"github.com/criahub/entitlement-engine/services/usage"
)

// auditStopTimeout bounds the drain of pending audit entries on shutdown.
const auditStopTimeout = 10 * time.Second

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Entitlements repositories.EntitlementRepository
	AuditLogs    repositories.AuditRepository
	Events       repositories.EventRepository

	// Services
	Meter       *usage.Meter
	Scorer      *risk.Scorer
	Pricing     *pricing.Engine
	Metrics     *metrics.Aggregator
	AuditWriter *audit.Writer
	Executor    *enforcement.Executor
	Payments    *payments.Processor
	Gate        *gate.Gate

	// Middleware
	AuthMiddleware *middleware.AuthMiddleware
	GateMiddleware *middleware.GateEnforcementMiddleware

	// Handlers
	HealthHandler  *handlers.HealthHandler
	GateHandler    *handlers.GateHandler
	PricingHandler *handlers.PricingHandler
	MetricsHandler *handlers.MetricsHandler
	RiskHandler    *handlers.RiskHandler
	AdminHandler   *handlers.AdminHandler
	WebhookHandler *handlers.WebhookHandler
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initServices(cfg)
	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the PostgreSQL connection pool and applies
// migrations through the repository factory.
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Entitlements = repos.Entitlements
	d.AuditLogs = repos.AuditLogs
	d.Events = repos.Events

	d.Logger.Info("repositories initialized")
}

// initServices wires the engine services in dependency order: the audit
// writer feeds the executor, the executor and metrics feed the gate.
func (d *Dependencies) initServices(cfg *config.Config) {
	d.Meter = usage.NewMeter(d.Entitlements, d.Logger)
	d.Scorer = risk.NewScorer(d.Logger)
	d.Pricing = pricing.NewEngine(cfg.Engine.QuoteTTL, d.Logger)
	d.Metrics = metrics.NewAggregator(cfg.Engine.MetricsWindow, cfg.Engine.OnlineWindow, d.Logger)

	d.AuditWriter = audit.NewWriter(d.AuditLogs, d.Logger, audit.DefaultConfig())
	d.Executor = enforcement.NewExecutor(d.Entitlements, d.AuditWriter, cfg.Engine.SuspensionDuration, d.Logger)
	d.Payments = payments.NewProcessor(d.Entitlements, d.Events, d.Metrics, d.Logger)
	d.Gate = gate.NewGate(d.Entitlements, d.Meter, d.Scorer, d.Executor, d.Metrics, cfg.Engine.StoreRetry, d.Logger)

	d.Logger.Info("engine services initialized")
}

// initHTTP wires the middleware and handler layer on top of the services.
func (d *Dependencies) initHTTP(cfg *config.Config) {
	if cfg.Admin.JWTSecret == "" {
		d.Logger.Warn("admin JWT secret not configured, admin routes will reject all tokens")
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Admin.JWTSecret, d.Logger)
	d.GateMiddleware = middleware.NewGateEnforcementMiddleware(d.Gate, d.Logger)

	var sqlDB *sql.DB
	if d.DB != nil {
		sqlDB = d.DB.DB
	}
	d.HealthHandler = handlers.NewHealthHandler(sqlDB, d.Logger)
	d.GateHandler = handlers.NewGateHandler(d.Gate, d.Metrics, d.Logger)
	d.PricingHandler = handlers.NewPricingHandler(d.Pricing, d.Logger)
	d.MetricsHandler = handlers.NewMetricsHandler(d.Metrics, d.Logger)
	d.RiskHandler = handlers.NewRiskHandler(d.Entitlements, d.AuditLogs, d.Scorer, d.Metrics, d.Logger)
	d.AdminHandler = handlers.NewAdminHandler(d.Entitlements, d.Executor, d.Logger)
	d.WebhookHandler = handlers.NewWebhookHandler(d.Payments, d.Logger)
}

// Start launches the background workers: the async audit writer, the
// enforcement dormancy sweep and the online-user sweep. Workers stop when
// ctx is canceled.
func (d *Dependencies) Start(ctx context.Context) error {
	if err := d.AuditWriter.Start(); err != nil {
		return fmt.Errorf("failed to start audit writer: %w", err)
	}
	d.Executor.StartSweep(ctx, d.Config.Engine.SweepInterval)
	d.Metrics.StartSweep(ctx, d.Config.Engine.OnlineSweep)

	d.Logger.Info("background workers started",
		zap.Duration("enforcement_sweep", d.Config.Engine.SweepInterval),
		zap.Duration("online_sweep", d.Config.Engine.OnlineSweep))
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.AuditWriter != nil {
		if err := d.AuditWriter.Stop(auditStopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit writer: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

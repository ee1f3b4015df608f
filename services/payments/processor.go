package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/repositories"
	"github.com/criahub/entitlement-engine/services/catalog"
)

// RevenueRecorder receives confirmed payment amounts for the rolling
// dashboards.
type RevenueRecorder interface {
	RecordRevenue(amount float64)
}

// Processor applies upstream payment facts to entitlement records. Events
// may be redelivered; a processed marker keyed by event id makes every
// handler idempotent.
type Processor struct {
	entitlements repositories.EntitlementRepository
	events       repositories.EventRepository
	revenue      RevenueRecorder
	logger       *zap.Logger
}

func NewProcessor(entitlements repositories.EntitlementRepository, events repositories.EventRepository, revenue RevenueRecorder, logger *zap.Logger) *Processor {
	return &Processor{
		entitlements: entitlements,
		events:       events,
		revenue:      revenue,
		logger:       logger,
	}
}

// Process dispatches one payment event. Redelivered events are skipped
// without side effects. The processed marker is written only after the
// record mutation lands, so a delivery that fails mid-apply leaves no
// marker and the redelivery retries the whole event.
func (p *Processor) Process(ctx context.Context, event models.PaymentEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("payment event missing event id")
	}

	processed, err := p.events.IsProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("check event %s: %w", event.EventID, err)
	}
	if processed {
		p.logger.Info("skipping redelivered payment event",
			zap.String("event_id", event.EventID),
			zap.String("type", string(event.Type)))
		return nil
	}

	switch event.Type {
	case models.EventPaymentSucceeded:
		err = p.liberate(ctx, event)
	case models.EventInvoicePaymentFailed:
		err = p.markAtRisk(ctx, event)
	case models.EventSubscriptionCanceled:
		err = p.cancel(ctx, event)
	default:
		return fmt.Errorf("unknown payment event type %q", event.Type)
	}
	if err != nil {
		return err
	}

	fresh, err := p.events.MarkProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("mark event %s processed: %w", event.EventID, err)
	}
	if !fresh {
		p.logger.Info("payment event already marked by a concurrent delivery",
			zap.String("event_id", event.EventID))
	}
	return nil
}

// liberate activates the plan on a confirmed payment. It is the only path
// that returns a blocked or canceled record to active, and it always resets
// the usage counters and recomputes the expiry.
func (p *Processor) liberate(ctx context.Context, event models.PaymentEvent) error {
	now := time.Now()
	planName := event.PlanName
	if !catalog.IsKnown(planName) {
		p.logger.Warn("payment for unknown plan, defaulting to free tier",
			zap.String("event_id", event.EventID),
			zap.String("plan", planName))
		planName = catalog.PlanFree
	}
	expiresAt := now.Add(catalog.TermFor(planName))

	record, err := p.entitlements.Load(ctx, event.UserID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		record = models.NewEntitlementRecord(event.UserID, planName, expiresAt)
	case err != nil:
		return fmt.Errorf("load record for user %s: %w", event.UserID, err)
	default:
		record.PlanName = planName
		record.PlanStatus = models.StatusActive
		record.PlanExpiresAt = expiresAt
		record.StatusReason = "payment confirmed"
		record.SuspendedUntil = nil
		record.DailyCapOverride = nil
		record.AICapOverride = nil
		record.ActivatedAt = now
	}
	record.LastPaymentID = event.PaymentID
	record.DailyUsage = 0
	record.MonthlyUsage = models.MonthlyUsage{}
	record.LastUsageResetAt = now

	if err := p.entitlements.Save(ctx, record); err != nil {
		return fmt.Errorf("save liberated record for user %s: %w", event.UserID, err)
	}

	if p.revenue != nil {
		p.revenue.RecordRevenue(catalog.RulesFor(planName).MonthlyPrice)
	}

	p.logger.Info("plan liberated by payment",
		zap.String("user_id", event.UserID),
		zap.String("plan", planName),
		zap.String("payment_id", event.PaymentID),
		zap.Time("expires_at", expiresAt))
	return nil
}

// markAtRisk flags a failed renewal. Access is not revoked here; the record
// goes at_risk and the failed-payment counter feeds the risk scorer.
func (p *Processor) markAtRisk(ctx context.Context, event models.PaymentEvent) error {
	record, err := p.entitlements.Load(ctx, event.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		p.logger.Warn("payment failure for unknown user",
			zap.String("event_id", event.EventID),
			zap.String("user_id", event.UserID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load record for user %s: %w", event.UserID, err)
	}

	if err := p.entitlements.UpdateStatus(ctx, event.UserID, models.StatusAtRisk, "renewal payment failed", nil); err != nil {
		return fmt.Errorf("mark user %s at risk: %w", event.UserID, err)
	}

	flags := record.RiskFlags
	flags.FailedPayments++
	if err := p.entitlements.UpdateRiskFlags(ctx, event.UserID, flags); err != nil {
		return fmt.Errorf("update risk flags for user %s: %w", event.UserID, err)
	}

	p.logger.Warn("renewal payment failed",
		zap.String("user_id", event.UserID),
		zap.String("invoice_id", event.InvoiceID),
		zap.Int("failed_payments", flags.FailedPayments))
	return nil
}

func (p *Processor) cancel(ctx context.Context, event models.PaymentEvent) error {
	err := p.entitlements.UpdateStatus(ctx, event.UserID, models.StatusCanceled, "subscription canceled upstream", nil)
	if errors.Is(err, repositories.ErrNotFound) {
		p.logger.Warn("cancellation for unknown user",
			zap.String("event_id", event.EventID),
			zap.String("user_id", event.UserID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("cancel user %s: %w", event.UserID, err)
	}

	p.logger.Info("subscription canceled",
		zap.String("user_id", event.UserID))
	return nil
}

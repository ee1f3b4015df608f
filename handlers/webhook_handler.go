package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/utils"
)

// PaymentProcessor consumes payment facts from the upstream processor.
type PaymentProcessor interface {
	Process(ctx context.Context, event models.PaymentEvent) error
}

// WebhookHandler receives payment processor callbacks.
type WebhookHandler struct {
	processor PaymentProcessor
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(processor PaymentProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		logger:    logger,
	}
}

// handledEventTypes are the payment facts the engine reacts to. Anything
// else is acknowledged and ignored so the processor stops redelivering it.
var handledEventTypes = map[models.PaymentEventType]bool{
	models.EventPaymentSucceeded:     true,
	models.EventInvoicePaymentFailed: true,
	models.EventSubscriptionCanceled: true,
}

// HandlePaymentEvent handles POST /api/v1/webhooks/payments. A non-2xx
// response makes the payment processor redeliver, so only transient
// failures return one.
func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	var event models.PaymentEvent
	if err := decodeAndValidate(r, &event); err != nil {
		HandleValidationError(w, err)
		return
	}

	if !handledEventTypes[event.Type] {
		h.logger.Info("ignoring unhandled payment event type",
			zap.String("event_id", event.EventID),
			zap.String("type", string(event.Type)))
		utils.WriteOK(w, map[string]string{"status": "ignored"})
		return
	}

	if err := h.processor.Process(r.Context(), event); err != nil {
		h.logger.Error("payment event processing failed",
			zap.String("event_id", event.EventID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		utils.WriteInternalServerError(w)
		return
	}

	utils.WriteOK(w, map[string]string{"status": "processed"})
}

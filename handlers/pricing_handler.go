package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/services/pricing"
	"github.com/criahub/entitlement-engine/utils"
)

// QuoteRequest asks for a personalized price for a plan.
type QuoteRequest struct {
	PlanName string               `json:"plan_name" validate:"required"`
	Country  string               `json:"country,omitempty"`
	Behavior models.BehaviorClass `json:"behavior,omitempty"`
	Intent   models.IntentClass   `json:"intent,omitempty"`
}

// Quoter produces pricing quotes.
type Quoter interface {
	Quote(planName string, ctx pricing.QuoteContext) models.PricingQuote
}

// PricingHandler exposes the pricing engine over HTTP.
type PricingHandler struct {
	engine Quoter
	logger *zap.Logger
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(engine Quoter, logger *zap.Logger) *PricingHandler {
	return &PricingHandler{
		engine: engine,
		logger: logger,
	}
}

// HandleQuote handles POST /api/v1/pricing/quote.
func (h *PricingHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleValidationError(w, err)
		return
	}

	quote := h.engine.Quote(req.PlanName, pricing.QuoteContext{
		Country:  req.Country,
		Behavior: req.Behavior,
		Intent:   req.Intent,
		Now:      time.Now(),
	})

	utils.WriteOK(w, quote)
}

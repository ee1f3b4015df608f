package pricing

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
	"github.com/criahub/entitlement-engine/services/catalog"
)

const (
	minFactor = 0.5
	maxFactor = 2.0
)

// QuoteContext carries the already-classified signals a quote depends on.
// Classification happens upstream; the engine only reads the buckets, so the
// same context always prices the same.
type QuoteContext struct {
	Country  string               `json:"country"`
	Behavior models.BehaviorClass `json:"behavior"`
	Intent   models.IntentClass   `json:"intent"`
	Now      time.Time            `json:"-"`
}

// Engine computes short-lived price quotes. Quoting never fails outward; any
// internal problem falls back to the unmodified base price, since a safe
// default price beats blocking a sale.
type Engine struct {
	quoteTTL time.Duration
	logger   *zap.Logger
}

func NewEngine(quoteTTL time.Duration, logger *zap.Logger) *Engine {
	if quoteTTL <= 0 {
		quoteTTL = 30 * time.Minute
	}
	return &Engine{quoteTTL: quoteTTL, logger: logger}
}

// Quote prices one plan for one context. The final price is the base price
// multiplied by five independent factors, clamped to [0.5x, 2.0x] of base,
// then rounded to a .90 or .99 ending.
func (e *Engine) Quote(planName string, ctx QuoteContext) (quote models.PricingQuote) {
	plan := catalog.RulesFor(planName)
	base := plan.MonthlyPrice
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}

	quote = models.PricingQuote{
		PlanName:       plan.Name,
		BasePrice:      base,
		FinalPrice:     base,
		AppliedFactors: nil,
		ValidUntil:     now.Add(e.quoteTTL),
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("quote computation failed, returning base price",
				zap.String("plan", plan.Name),
				zap.Any("panic", r),
			)
			quote.FinalPrice = base
			quote.AppliedFactors = nil
		}
	}()

	if base <= 0 {
		return quote
	}

	factors := []models.PriceFactor{
		{Type: models.FactorGeography, Value: geoFactor(ctx.Country)},
		{Type: models.FactorDemand, Value: demandFactor(now)},
		{Type: models.FactorBehavior, Value: behaviorFactor(ctx.Behavior)},
		{Type: models.FactorTemporal, Value: temporalFactor(now)},
		{Type: models.FactorConversion, Value: conversionFactor(ctx.Intent)},
	}

	price := base
	for _, f := range factors {
		price *= f.Value
	}
	price = clamp(price, minFactor*base, maxFactor*base)
	price = psychologicalRound(price, minFactor*base, maxFactor*base)

	quote.FinalPrice = price
	quote.AppliedFactors = factors

	e.logger.Info("price quoted",
		zap.String("plan", plan.Name),
		zap.String("country", ctx.Country),
		zap.Float64("base_price", base),
		zap.Float64("final_price", price),
		zap.Float64("geography", factors[0].Value),
		zap.Float64("demand", factors[1].Value),
		zap.Float64("behavior", factors[2].Value),
		zap.Float64("temporal", factors[3].Value),
		zap.Float64("conversion", factors[4].Value),
	)

	return quote
}

var geoFactors = map[string]float64{
	"BR": 1.0,
	"US": 1.15,
	"PT": 1.05,
	"AR": 0.85,
	"IN": 0.8,
}

func geoFactor(country string) float64 {
	if f, ok := geoFactors[country]; ok {
		return f
	}
	return 1.0
}

// demandFactor models the observed purchase pressure by time of day.
func demandFactor(now time.Time) float64 {
	hour := now.Hour()
	switch {
	case hour >= 19 && hour <= 23:
		return 1.15
	case hour >= 9 && hour <= 18:
		return 1.1
	case hour >= 0 && hour <= 6:
		return 0.9
	default:
		return 1.0
	}
}

var behaviorFactors = map[models.BehaviorClass]float64{
	models.BehaviorPowerUser:   1.15,
	models.BehaviorRegularUser: 1.0,
	models.BehaviorCasualUser:  0.95,
	models.BehaviorAtRisk:      0.85,
	models.BehaviorNewUser:     0.9,
}

func behaviorFactor(class models.BehaviorClass) float64 {
	if f, ok := behaviorFactors[class]; ok {
		return f
	}
	return 1.0
}

// temporalFactor windows are checked in priority order; the first match wins.
func temporalFactor(now time.Time) float64 {
	if now.Month() == time.November && now.Day() >= 24 && now.Day() <= 30 {
		return 0.7 // black friday week
	}
	if now.Day() >= 28 {
		return 0.9 // month-end push
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return 1.05
	}
	if hour := now.Hour(); hour >= 19 && hour <= 22 {
		return 1.1
	}
	return 1.0
}

var conversionFactors = map[models.IntentClass]float64{
	models.IntentHigh:           1.1,
	models.IntentPremiumSeeker:  1.2,
	models.IntentPriceSensitive: 0.85,
	models.IntentLow:            0.9,
	models.IntentMedium:         1.0,
}

func conversionFactor(class models.IntentClass) float64 {
	if f, ok := conversionFactors[class]; ok {
		return f
	}
	return 1.0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// psychologicalRound snaps a price to a .99 or .90 ending without leaving
// the clamp bounds.
func psychologicalRound(price, lo, hi float64) float64 {
	ending := 0.99
	if price >= 50 && price <= 100 {
		ending = 0.90
	}
	candidate := math.Floor(price) + ending
	if candidate > hi {
		candidate -= 1.0
	}
	if candidate < lo {
		candidate += 1.0
	}
	return candidate
}

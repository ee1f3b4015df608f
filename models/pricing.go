package models

import "time"

// FactorType identifies one multiplicative price adjustment.
type FactorType string

const (
	FactorGeography  FactorType = "geography"
	FactorDemand     FactorType = "demand"
	FactorBehavior   FactorType = "behavior"
	FactorTemporal   FactorType = "temporal"
	FactorConversion FactorType = "conversion"
)

// PriceFactor is one applied multiplier and its value.
type PriceFactor struct {
	Type  FactorType `json:"type"`
	Value float64    `json:"value"`
}

// BehaviorClass buckets a user's observed usage pattern for pricing.
type BehaviorClass string

const (
	BehaviorPowerUser   BehaviorClass = "power_user"
	BehaviorRegularUser BehaviorClass = "regular_user"
	BehaviorCasualUser  BehaviorClass = "casual_user"
	BehaviorAtRisk      BehaviorClass = "at_risk"
	BehaviorNewUser     BehaviorClass = "new_user"
)

// IntentClass buckets engagement signals for the conversion factor.
type IntentClass string

const (
	IntentHigh           IntentClass = "high_intent"
	IntentPremiumSeeker  IntentClass = "premium_seeker"
	IntentPriceSensitive IntentClass = "price_sensitive"
	IntentLow            IntentClass = "low_intent"
	IntentMedium         IntentClass = "medium_intent"
)

// PricingQuote is a short-lived computed price for a plan.
type PricingQuote struct {
	PlanName       string        `json:"plan_name"`
	BasePrice      float64       `json:"base_price"`
	FinalPrice     float64       `json:"final_price"`
	AppliedFactors []PriceFactor `json:"applied_factors"`
	ValidUntil     time.Time     `json:"valid_until"`
}

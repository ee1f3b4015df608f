package models

import (
	"time"
)

// PlanStatus is the lifecycle state of a user's entitlement.
type PlanStatus string

const (
	StatusActive   PlanStatus = "active"
	StatusExpired  PlanStatus = "expired"
	StatusBlocked  PlanStatus = "blocked"
	StatusAtRisk   PlanStatus = "at_risk"
	StatusCanceled PlanStatus = "canceled"
)

// Counter identifies a usage counter on the entitlement record. Values map
// onto storage columns, so increments can be pushed down as atomic updates.
type Counter string

const (
	CounterDaily         Counter = "daily_usage"
	CounterAIGenerations Counter = "ai_generations"
	CounterVideos        Counter = "videos"
	CounterEbooks        Counter = "ebooks"
)

// MonthlyCounterFor maps a tool class to its monthly counter. The daily
// counter applies to every tool class on top of this.
func MonthlyCounterFor(tool ToolType) (Counter, bool) {
	switch tool {
	case ToolAIGeneration:
		return CounterAIGenerations, true
	case ToolVideo:
		return CounterVideos, true
	case ToolEbook:
		return CounterEbooks, true
	default:
		return "", false
	}
}

// MonthlyUsage holds the per-calendar-month counters.
type MonthlyUsage struct {
	AIGenerations int64 `json:"ai_generations"`
	Videos        int64 `json:"videos"`
	Ebooks        int64 `json:"ebooks"`
}

// RiskFlags accumulates the fraud signals recorded against a user. Flags
// never decay; scoring always reads the current values.
type RiskFlags struct {
	FailedPayments int     `json:"failed_payments"`
	Chargebacks    int     `json:"chargebacks"`
	IPChanges      int     `json:"ip_changes"`
	DeviceChanges  int     `json:"device_changes"`
	BotScore       float64 `json:"bot_score"`
	NightActivity  int     `json:"night_activity"`
	WeekendSpike   float64 `json:"weekend_spike"` // percent of weekday baseline
}

// EntitlementRecord is the engine-owned state for one user. The record store
// persists it verbatim; all mutations go through the engine.
type EntitlementRecord struct {
	UserID           string       `json:"user_id" db:"user_id"`
	PlanName         string       `json:"plan_name" db:"plan_name"`
	PlanStatus       PlanStatus   `json:"plan_status" db:"plan_status"`
	PlanExpiresAt    time.Time    `json:"plan_expires_at" db:"plan_expires_at"`
	DailyUsage       int64        `json:"daily_usage" db:"daily_usage"`
	MonthlyUsage     MonthlyUsage `json:"monthly_usage"`
	LastUsageResetAt time.Time    `json:"last_usage_reset_at" db:"last_usage_reset_at"`
	RiskFlags        RiskFlags    `json:"risk_flags"`
	StatusReason     string       `json:"status_reason,omitempty" db:"status_reason"`
	SuspendedUntil   *time.Time   `json:"suspended_until,omitempty" db:"suspended_until"`
	DailyCapOverride *int64       `json:"daily_cap_override,omitempty" db:"daily_cap_override"`
	AICapOverride    *int64       `json:"ai_cap_override,omitempty" db:"ai_cap_override"`
	LastPaymentID    string       `json:"last_payment_id,omitempty" db:"last_payment_id"`
	ActivatedAt      time.Time    `json:"activated_at" db:"activated_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// NewEntitlementRecord creates a fresh record for a user on a plan.
func NewEntitlementRecord(userID, planName string, expiresAt time.Time) *EntitlementRecord {
	now := time.Now()
	return &EntitlementRecord{
		UserID:           userID,
		PlanName:         planName,
		PlanStatus:       StatusActive,
		PlanExpiresAt:    expiresAt,
		LastUsageResetAt: now,
		ActivatedAt:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// SuspensionLapsed reports whether a temporary suspension has run out.
func (r *EntitlementRecord) SuspensionLapsed(now time.Time) bool {
	return r.PlanStatus == StatusAtRisk && r.SuspendedUntil != nil && now.After(*r.SuspendedUntil)
}

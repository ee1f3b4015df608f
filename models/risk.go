package models

import "time"

// RiskLevel labels a score band. Labels are kept in Portuguese, matching the
// operator dashboards this engine reports into.
type RiskLevel string

const (
	RiskNormal   RiskLevel = "NORMAL"
	RiskLow      RiskLevel = "BAIXO"
	RiskMedium   RiskLevel = "MÉDIO"
	RiskHigh     RiskLevel = "ALTO"
	RiskCritical RiskLevel = "CRÍTICO"
)

// EnforcementAction is the consequence recommended for a risk score.
type EnforcementAction string

const (
	ActionBlockImmediately   EnforcementAction = "block_immediately"
	ActionSuspendTemporarily EnforcementAction = "suspend_temporarily"
	ActionLimitUsage         EnforcementAction = "limit_usage"
	ActionMonitorClosely     EnforcementAction = "monitor_closely"
	ActionNone               EnforcementAction = "no_action"
)

// AutoExecuted reports whether the engine applies the action itself rather
// than only surfacing it to operators.
func (a EnforcementAction) AutoExecuted() bool {
	switch a {
	case ActionBlockImmediately, ActionSuspendTemporarily, ActionLimitUsage:
		return true
	default:
		return false
	}
}

// RiskBreakdown carries the four independent sub-scores.
type RiskBreakdown struct {
	Usage    int `json:"usage"`
	Payment  int `json:"payment"`
	Behavior int `json:"behavior"`
	Temporal int `json:"temporal"`
}

// RiskAssessment is the derived scoring result for a single request. It is
// recomputed every time and never cached beyond the request that asked.
type RiskAssessment struct {
	UserID            string            `json:"user_id"`
	Score             int               `json:"risk_score"`
	Breakdown         RiskBreakdown     `json:"breakdown"`
	Level             RiskLevel         `json:"risk_level"`
	RecommendedAction EnforcementAction `json:"recommended_action"`
	Timestamp         time.Time         `json:"timestamp"`
}

// RiskSignals carries the already-computed behavioral signals for a request.
// The signal pipeline lives outside the engine; the scorer only reads these,
// so assessments stay deterministic and testable.
type RiskSignals struct {
	HourlyUsage             int     `json:"hourly_usage"`
	AIGenerationsPerHour    int     `json:"ai_generations_per_hour"`
	UsageGrowthPercent      float64 `json:"usage_growth_percent"` // week over week
	SuspiciousAmountPattern bool    `json:"suspicious_amount_pattern"`
	RapidPaymentAttempts    int     `json:"rapid_payment_attempts"`
	RequestsPerMinute       int     `json:"requests_per_minute"` // live, from the aggregator
	RepetitiveActionPattern bool    `json:"repetitive_action_pattern"`
	ActivityBursts          int     `json:"activity_bursts"`
}

package risk

import (
	"time"

	"go.uber.org/zap"

	"github.com/criahub/entitlement-engine/models"
)

// Thresholds above which each signal contributes to the score.
const (
	extremeDailyUsage   = 1000
	extremeHourlyUsage  = 200
	extremeAIPerHour    = 100
	extremeGrowthPct    = 500
	maxFailedPayments   = 5
	maxChargebacks      = 2
	maxRapidAttempts    = 10
	maxIPChanges        = 15
	maxDeviceChanges    = 10
	botScoreThreshold   = 0.8
	maxLiveRPM          = 60
	maxNightActions     = 100
	weekendSpikePct     = 300
	maxActivityBursts   = 5
	paymentCriticalSubs = 50
)

// Scorer computes per-user risk assessments. Scoring is pure arithmetic over
// the record's accumulated flags and the request's live signals; the same
// inputs always produce the same assessment.
type Scorer struct {
	logger *zap.Logger
}

func NewScorer(logger *zap.Logger) *Scorer {
	return &Scorer{logger: logger}
}

// Assess scores one user. Sub-scores are summed without individual caps and
// the total is capped at 100. A payment sub-score at or above 50 means a
// chargeback pattern, which is always treated as critical.
func (s *Scorer) Assess(record *models.EntitlementRecord, signals models.RiskSignals, now time.Time) models.RiskAssessment {
	breakdown := models.RiskBreakdown{
		Usage:    usageScore(record, signals),
		Payment:  paymentScore(record, signals),
		Behavior: behaviorScore(record, signals),
		Temporal: temporalScore(record, signals),
	}

	total := breakdown.Usage + breakdown.Payment + breakdown.Behavior + breakdown.Temporal
	if total > 100 {
		total = 100
	}
	if breakdown.Payment >= paymentCriticalSubs && total < 80 {
		total = 80
	}

	assessment := models.RiskAssessment{
		UserID:            record.UserID,
		Score:             total,
		Breakdown:         breakdown,
		Level:             levelFor(total),
		RecommendedAction: actionFor(total),
		Timestamp:         now,
	}

	if assessment.Score >= 40 {
		s.logger.Warn("elevated risk score",
			zap.String("user_id", record.UserID),
			zap.Int("score", assessment.Score),
			zap.Int("usage", breakdown.Usage),
			zap.Int("payment", breakdown.Payment),
			zap.Int("behavior", breakdown.Behavior),
			zap.Int("temporal", breakdown.Temporal),
			zap.String("action", string(assessment.RecommendedAction)),
		)
	}

	return assessment
}

func usageScore(record *models.EntitlementRecord, signals models.RiskSignals) int {
	score := 0
	if record.DailyUsage > extremeDailyUsage {
		score += 40
	}
	if signals.HourlyUsage > extremeHourlyUsage {
		score += 35
	}
	if signals.AIGenerationsPerHour > extremeAIPerHour {
		score += 30
	}
	if signals.UsageGrowthPercent > extremeGrowthPct {
		score += 25
	}
	return score
}

func paymentScore(record *models.EntitlementRecord, signals models.RiskSignals) int {
	score := 0
	flags := record.RiskFlags
	if flags.FailedPayments > maxFailedPayments {
		score += 30
	}
	if flags.Chargebacks > maxChargebacks {
		score += 50
	}
	if signals.SuspiciousAmountPattern {
		score += 20
	}
	if signals.RapidPaymentAttempts > maxRapidAttempts {
		score += 25
	}
	return score
}

func behaviorScore(record *models.EntitlementRecord, signals models.RiskSignals) int {
	score := 0
	flags := record.RiskFlags
	if flags.IPChanges > maxIPChanges {
		score += 25
	}
	if flags.DeviceChanges > maxDeviceChanges {
		score += 20
	}
	if flags.BotScore > botScoreThreshold {
		score += 45
	}
	if signals.RequestsPerMinute > maxLiveRPM {
		score += 30
	}
	if signals.RepetitiveActionPattern {
		score += 20
	}
	return score
}

func temporalScore(record *models.EntitlementRecord, signals models.RiskSignals) int {
	score := 0
	flags := record.RiskFlags
	if flags.NightActivity > maxNightActions {
		score += 15
	}
	if flags.WeekendSpike > weekendSpikePct {
		score += 10
	}
	if signals.ActivityBursts > maxActivityBursts {
		score += 20
	}
	return score
}

func levelFor(score int) models.RiskLevel {
	switch {
	case score >= 80:
		return models.RiskCritical
	case score >= 60:
		return models.RiskHigh
	case score >= 40:
		return models.RiskMedium
	case score >= 20:
		return models.RiskLow
	default:
		return models.RiskNormal
	}
}

func actionFor(score int) models.EnforcementAction {
	switch {
	case score >= 80:
		return models.ActionBlockImmediately
	case score >= 60:
		return models.ActionSuspendTemporarily
	case score >= 40:
		return models.ActionLimitUsage
	case score >= 20:
		return models.ActionMonitorClosely
	default:
		return models.ActionNone
	}
}

// Package catalog holds the static plan rule table. Lookups are pure:
// no state, no errors, unknown plans fall back to the most restrictive tier
// so every gate decision still gets a usable set of limits.
package catalog

import (
	"time"

	"github.com/criahub/entitlement-engine/models"
)

// Plan names, in ascending tier order.
const (
	PlanFree    = "free"
	PlanMensal  = "mensal"
	PlanGold    = "gold"
	PlanPremium = "premium"
)

// planOrder fixes the total order used for upgrade/downgrade comparisons.
var planOrder = map[string]int{
	PlanFree:    0,
	PlanMensal:  1,
	PlanGold:    2,
	PlanPremium: 3,
}

var plans = map[string]models.Plan{
	PlanFree: {
		Name:         PlanFree,
		MonthlyPrice: 0,
		Limits: models.PlanLimits{
			ToolsPerDay:           5,
			AIGenerationsPerMonth: 10,
			VideosPerMonth:        0,
			EbooksPerMonth:        0,
			MaxVideoSeconds:       0,
			MaxEbookPages:         0,
			StorageGB:             1,
			TeamMembers:           1,
		},
		Permissions: models.PlanPermissions{
			BasicTools: true,
		},
		AnalyticsTier: "none",
	},
	PlanMensal: {
		Name:         PlanMensal,
		MonthlyPrice: 49.90,
		Limits: models.PlanLimits{
			ToolsPerDay:           20,
			AIGenerationsPerMonth: 100,
			VideosPerMonth:        10,
			EbooksPerMonth:        5,
			MaxVideoSeconds:       60,
			MaxEbookPages:         30,
			StorageGB:             10,
			TeamMembers:           1,
		},
		Permissions: models.PlanPermissions{
			BasicTools:    true,
			AdvancedTools: true,
		},
		AnalyticsTier: "basic",
	},
	PlanGold: {
		Name:         PlanGold,
		MonthlyPrice: 97.00,
		Limits: models.PlanLimits{
			ToolsPerDay:           100,
			AIGenerationsPerMonth: 500,
			VideosPerMonth:        50,
			EbooksPerMonth:        25,
			MaxVideoSeconds:       180,
			MaxEbookPages:         100,
			StorageGB:             50,
			TeamMembers:           3,
		},
		Permissions: models.PlanPermissions{
			BasicTools:      true,
			AdvancedTools:   true,
			PremiumTools:    true,
			CustomTemplates: true,
		},
		AnalyticsTier: "advanced",
	},
	PlanPremium: {
		Name:         PlanPremium,
		MonthlyPrice: 197.00,
		Limits: models.PlanLimits{
			ToolsPerDay:           models.Unbounded,
			AIGenerationsPerMonth: models.Unbounded,
			VideosPerMonth:        models.Unbounded,
			EbooksPerMonth:        models.Unbounded,
			MaxVideoSeconds:       600,
			MaxEbookPages:         models.Unbounded,
			StorageGB:             200,
			TeamMembers:           10,
		},
		Permissions: models.PlanPermissions{
			BasicTools:      true,
			AdvancedTools:   true,
			PremiumTools:    true,
			APIAccess:       true,
			WhiteLabel:      true,
			CustomTemplates: true,
		},
		AnalyticsTier: "full",
	},
}

// RulesFor returns the plan definition for a name. Unknown names resolve to
// the free tier rather than erroring, so the gate can always decide.
func RulesFor(planName string) models.Plan {
	if plan, ok := plans[planName]; ok {
		return plan
	}
	return plans[PlanFree]
}

// Compare orders two plans: -1, 0 or 1 as a sits below, beside or above b.
// Unknown names compare as free.
func Compare(a, b string) int {
	ra := rankOf(a)
	rb := rankOf(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

func rankOf(planName string) int {
	if rank, ok := planOrder[planName]; ok {
		return rank
	}
	return planOrder[PlanFree]
}

// TermFor returns the entitlement term granted by a confirmed payment on a
// plan. Paid plans renew monthly; the free tier gets a long horizon so its
// records still satisfy the always-set expiry invariant.
func TermFor(planName string) time.Duration {
	if planName == PlanFree {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// Names returns the known plan names in ascending tier order.
func Names() []string {
	return []string{PlanFree, PlanMensal, PlanGold, PlanPremium}
}

// IsKnown reports whether the plan name exists in the catalog.
func IsKnown(planName string) bool {
	_, ok := plans[planName]
	return ok
}

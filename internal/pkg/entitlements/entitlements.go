package entitlements

import "strings"

type Plan string

const (
	PlanFree           Plan = "free"
	PlanBase           Plan = "base"
	PlanPremiumMonthly Plan = "premium_monthly"
	PlanPremiumYearly  Plan = "premium_yearly"
	PlanGold           Plan = "gold"
	PlanPlatinum       Plan = "platinum"
)

// TopIndividualPlan is granted to corporate admins on top of the
// organization entitlement.
const TopIndividualPlan = PlanPlatinum

var planRanks = map[Plan]int{
	PlanFree:           0,
	PlanBase:           1,
	PlanPremiumMonthly: 2,
	PlanPremiumYearly:  3,
	PlanGold:           4,
	PlanPlatinum:       5,
}

// ParsePlan normalizes a plan reference coming from product metadata.
// "Premium-Monthly" and "premium_monthly" resolve to the same plan.
func ParsePlan(raw string) (Plan, bool) {
	p := strings.ToLower(strings.TrimSpace(raw))
	p = strings.ReplaceAll(p, "-", "_")
	p = strings.ReplaceAll(p, " ", "_")
	if _, ok := planRanks[Plan(p)]; !ok {
		return PlanFree, false
	}
	return Plan(p), true
}

// NormalizePlan is ParsePlan with a fallback for unknown or empty input.
func NormalizePlan(raw string, fallback Plan) Plan {
	if p, ok := ParsePlan(raw); ok {
		return p
	}
	return fallback
}

// Rank orders plans from free (0) to the top individual plan.
func Rank(p Plan) int {
	return planRanks[p]
}

// IsPaid reports whether the plan is anything above free.
func IsPaid(p Plan) bool {
	return Rank(p) > Rank(PlanFree)
}

// DisplayName renders a plan for notification copy.
func DisplayName(p Plan) string {
	switch p {
	case PlanBase:
		return "Base"
	case PlanPremiumMonthly:
		return "Premium (monthly)"
	case PlanPremiumYearly:
		return "Premium (yearly)"
	case PlanGold:
		return "Gold"
	case PlanPlatinum:
		return "Platinum"
	default:
		return "Free"
	}
}

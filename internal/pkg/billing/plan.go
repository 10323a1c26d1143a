package billing

import (
	"strings"

	"github.com/ManuelReschke/fitsync/app/models"
	"github.com/ManuelReschke/fitsync/internal/pkg/entitlements"
)

// normalizeStatus folds processor subscription statuses into the three local
// states.
func normalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "past_due", "unpaid", "incomplete":
		return models.SubscriptionStatusPastDue
	case "canceled", "incomplete_expired", "paused":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusActive
	}
}

// planFromProduct reads the tier from product metadata ("plan_tier", then
// "plan"), falling back when neither names a known plan.
func planFromProduct(p *Product, fallback entitlements.Plan) entitlements.Plan {
	if p == nil {
		return fallback
	}
	for _, key := range []string{"plan_tier", "plan"} {
		if plan, ok := entitlements.ParsePlan(p.Metadata[key]); ok {
			return plan
		}
	}
	return fallback
}

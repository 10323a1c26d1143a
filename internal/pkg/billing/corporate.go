package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ManuelReschke/fitsync/app/models"
	"github.com/ManuelReschke/fitsync/internal/pkg/entitlements"
	"github.com/ManuelReschke/fitsync/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// CompleteCorporateCheckout creates or refreshes the organization plan and
// raises the admin's personal subscription to the top individual plan.
func (s *Service) CompleteCorporateCheckout(ctx context.Context, c CorporateCheckout) (Outcome, error) {
	snap, err := s.processor.GetSubscription(ctx, c.SubscriptionID)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: get subscription %s: %w", ErrProcessor, c.SubscriptionID, err)
	}
	status := normalizeStatus(snap.Status)
	customerID := firstNonEmpty(snap.CustomerID, c.CustomerID)

	corp := &models.CorporateSubscription{
		AdminUserID:            c.AdminUserID,
		OrganizationName:       c.OrganizationName,
		PlanTier:               c.PlanTier,
		MaxMembers:             c.MaxMembers,
		CustomerID:             customerID,
		ProviderSubscriptionID: firstNonEmpty(snap.ID, c.SubscriptionID),
		Status:                 status,
		CurrentPeriodStart:     snap.CurrentPeriodStart,
		CurrentPeriodEnd:       snap.CurrentPeriodEnd,
	}
	if err := s.repo.UpsertCorporateSubscription(ctx, corp); err != nil {
		return OutcomeFailed, fmt.Errorf("upsert corporate subscription for %s: %w", c.OrganizationName, err)
	}
	log.Infof("[Billing] Corporate subscription %s for %s (%s, %s seats)", corp.ProviderSubscriptionID, corp.OrganizationName, corp.PlanTier, seatsLabel(corp.MaxMembers))

	if err := s.elevateAdmin(ctx, c.AdminUserID, corp, snap); err != nil {
		return OutcomeFailed, err
	}

	s.notify(ctx, c.AdminUserID, NotifyCorporateSubscription, map[string]string{
		notify.VarOrganizationName: c.OrganizationName,
		notify.VarPlanName:         corporatePlanName(c.PlanTier),
		notify.VarSeats:            seatsLabel(c.MaxMembers),
		notify.VarAdminURL:         s.cfg.CorporateAdminURL(),
	})
	return OutcomeProcessed, nil
}

// elevateAdmin upserts the admin's own row at the top plan. An existing
// individual subscription keeps its processor ids and period.
func (s *Service) elevateAdmin(ctx context.Context, userID string, corp *models.CorporateSubscription, snap *SubscriptionSnapshot) error {
	sub, err := s.repo.GetSubscriptionByUserID(ctx, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sub = &models.Subscription{UserID: userID}
		applySnapshot(sub, snap, entitlements.TopIndividualPlan)
		sub.CustomerID = corp.CustomerID
		sub.ProviderSubscriptionID = corp.ProviderSubscriptionID
	case err != nil:
		return fmt.Errorf("find subscription for admin %s: %w", userID, err)
	case sub.Status == models.SubscriptionStatusCanceled:
		// A lapsed individual plan is replaced by the corporate one.
		applySnapshot(sub, snap, entitlements.TopIndividualPlan)
		sub.CustomerID = corp.CustomerID
		sub.ProviderSubscriptionID = corp.ProviderSubscriptionID
	default:
		sub.PlanTier = string(entitlements.TopIndividualPlan)
	}

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("elevate admin %s: %w", userID, err)
	}
	return nil
}

func seatsLabel(maxMembers int) string {
	if maxMembers == models.UnlimitedSeats {
		return "unlimited"
	}
	return strconv.Itoa(maxMembers)
}

// corporatePlanName shows organization tiers outside the individual plan set
// ("enterprise", "team_plus") by their own name instead of as Free.
func corporatePlanName(tier string) string {
	if p, ok := entitlements.ParsePlan(tier); ok {
		return entitlements.DisplayName(p)
	}
	words := strings.FieldsFunc(tier, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	if len(words) == 0 {
		return entitlements.DisplayName(entitlements.PlanFree)
	}
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

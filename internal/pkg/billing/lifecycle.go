package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/fitsync/app/models"
	"github.com/ManuelReschke/fitsync/internal/pkg/entitlements"
	"github.com/ManuelReschke/fitsync/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

const billingReasonSubscriptionCreate = "subscription_create"

// CompleteSubscriptionCheckout mirrors a freshly purchased subscription into
// the user's row and sends the purchase notification.
func (s *Service) CompleteSubscriptionCheckout(ctx context.Context, c SubscriptionCheckout) (Outcome, error) {
	snap, plan, err := s.fetchSubscription(ctx, c.SubscriptionID)
	if err != nil {
		return OutcomeFailed, err
	}

	// Must run before the upsert, which would make every buyer a returning one.
	firstTime := s.firstTime(ctx, c.UserID)

	sub := &models.Subscription{UserID: c.UserID}
	applySnapshot(sub, snap, plan)
	sub.CustomerID = firstNonEmpty(snap.CustomerID, c.CustomerID)
	sub.ProviderSubscriptionID = firstNonEmpty(snap.ID, c.SubscriptionID)
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return OutcomeFailed, fmt.Errorf("upsert subscription for user %s: %w", c.UserID, err)
	}
	log.Infof("[Billing] User %s subscribed to %s (%s)", c.UserID, plan, sub.Status)

	vars := map[string]string{notify.VarPlanName: entitlements.DisplayName(plan)}
	s.notify(ctx, c.UserID, NotifyPurchaseSubscription, vars)
	if firstTime {
		s.notify(ctx, c.UserID, NotifyWelcomeFirstPurchase, vars)
	}
	return OutcomeProcessed, nil
}

// SyncSubscriptionUpdate overwrites local state with the processor's current
// snapshot. The event body is only used to find the subscription.
func (s *Service) SyncSubscriptionUpdate(ctx context.Context, subscriptionID, customerID string) (Outcome, error) {
	sub, corp, err := s.lookupCustomer(ctx, customerID)
	if err != nil {
		return OutcomeFailed, err
	}
	if sub == nil && corp == nil {
		log.Infof("[Billing] No local subscription for customer %q, ignoring update", customerID)
		return OutcomeIgnored, nil
	}
	if subscriptionID == "" && sub != nil {
		subscriptionID = sub.ProviderSubscriptionID
	}
	if subscriptionID == "" {
		return OutcomeInvalidMetadata, fmt.Errorf("%w: subscription update without subscription id", ErrInvalidMetadata)
	}

	if _, err := s.syncSnapshot(ctx, sub, corp, subscriptionID); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeProcessed, nil
}

// CancelSubscription marks the subscription canceled. The row and its
// processor id are kept.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID, customerID string, periodEnd *time.Time) (Outcome, error) {
	sub, corp, err := s.lookupCustomer(ctx, customerID)
	if err != nil {
		return OutcomeFailed, err
	}

	if corp != nil && corp.ProviderSubscriptionID == subscriptionID {
		end := corp.CurrentPeriodEnd
		if periodEnd != nil {
			end = periodEnd
		}
		if err := s.repo.UpdateCorporateSubscriptionState(ctx, corp.ID, models.SubscriptionStatusCanceled, corp.CurrentPeriodStart, end); err != nil {
			return OutcomeFailed, fmt.Errorf("cancel corporate subscription %s: %w", subscriptionID, err)
		}
		log.Infof("[Billing] Corporate subscription %s for %s canceled", subscriptionID, corp.OrganizationName)
	}

	if sub == nil || !tracksSubscription(sub, subscriptionID) {
		if corp == nil {
			log.Infof("[Billing] No local subscription for customer %q, ignoring cancellation", customerID)
			return OutcomeIgnored, nil
		}
		return OutcomeProcessed, nil
	}

	end := sub.CurrentPeriodEnd
	if periodEnd != nil {
		end = periodEnd
	}
	if err := s.repo.MarkSubscriptionCanceled(ctx, sub.UserID, end); err != nil {
		return OutcomeFailed, fmt.Errorf("cancel subscription for user %s: %w", sub.UserID, err)
	}
	log.Infof("[Billing] Subscription %s for user %s canceled", sub.ProviderSubscriptionID, sub.UserID)

	s.notify(ctx, sub.UserID, NotifySubscriptionCanceled, map[string]string{
		notify.VarPlanName: planName(sub.PlanTier),
		notify.VarEndDate:  formatDate(end),
	})
	return OutcomeProcessed, nil
}

// HandleInvoicePaid refreshes the subscription and, for renewals, schedules
// the confirmation instead of sending it right away.
func (s *Service) HandleInvoicePaid(ctx context.Context, inv invoiceObject) (Outcome, error) {
	customerID := string(inv.Customer)
	sub, corp, err := s.lookupCustomer(ctx, customerID)
	if err != nil {
		return OutcomeFailed, err
	}
	if sub == nil && corp == nil {
		log.Infof("[Billing] No local subscription for customer %q, ignoring invoice %s", customerID, inv.ID)
		return OutcomeIgnored, nil
	}

	plan := entitlements.NormalizePlan(planTierOf(sub), s.defaultPlan())
	if subID := inv.subscriptionID(); subID != "" {
		if plan, err = s.syncSnapshot(ctx, sub, corp, subID); err != nil {
			return OutcomeFailed, err
		}
	}

	if sub == nil || inv.BillingReason == billingReasonSubscriptionCreate {
		return OutcomeProcessed, nil
	}

	deliverAt := s.now().Add(s.renewalDelay())
	s.schedule(ctx, sub.UserID, NotifySubscriptionRenewed, map[string]string{
		notify.VarPlanName: entitlements.DisplayName(plan),
		notify.VarAmount:   formatAmount(inv.AmountPaid, inv.Currency),
	}, deliverAt)
	return OutcomeProcessed, nil
}

// HandleInvoiceFailed flags the subscription past_due, and the corporate plan
// the invoice belongs to. Plan and period stay as they are until the
// processor reports otherwise.
func (s *Service) HandleInvoiceFailed(ctx context.Context, inv invoiceObject) (Outcome, error) {
	customerID := string(inv.Customer)
	sub, corp, err := s.lookupCustomer(ctx, customerID)
	if err != nil {
		return OutcomeFailed, err
	}
	if sub == nil && corp == nil {
		log.Infof("[Billing] No local subscription for customer %q, ignoring failed invoice %s", customerID, inv.ID)
		return OutcomeIgnored, nil
	}

	amount := formatAmount(inv.AmountDue, inv.Currency)
	subID := inv.subscriptionID()
	if corp != nil && (subID == "" || subID == corp.ProviderSubscriptionID) {
		if err := s.repo.UpdateCorporateSubscriptionState(ctx, corp.ID, models.SubscriptionStatusPastDue, corp.CurrentPeriodStart, corp.CurrentPeriodEnd); err != nil {
			return OutcomeFailed, fmt.Errorf("mark corporate subscription %s past_due: %w", corp.ProviderSubscriptionID, err)
		}
		log.Warnf("[Billing] Payment failed for corporate subscription %s of %s (invoice %s)", corp.ProviderSubscriptionID, corp.OrganizationName, inv.ID)
		if sub == nil {
			s.notify(ctx, corp.AdminUserID, NotifyPaymentFailed, map[string]string{
				notify.VarPlanName: corporatePlanName(corp.PlanTier),
				notify.VarAmount:   amount,
			})
			return OutcomeProcessed, nil
		}
	}
	if sub == nil {
		return OutcomeProcessed, nil
	}

	if err := s.repo.UpdateSubscriptionStatus(ctx, sub.UserID, models.SubscriptionStatusPastDue); err != nil {
		return OutcomeFailed, fmt.Errorf("mark subscription past_due for user %s: %w", sub.UserID, err)
	}
	log.Warnf("[Billing] Payment failed for user %s (invoice %s)", sub.UserID, inv.ID)

	s.notify(ctx, sub.UserID, NotifyPaymentFailed, map[string]string{
		notify.VarPlanName: planName(sub.PlanTier),
		notify.VarAmount:   amount,
	})
	return OutcomeProcessed, nil
}

// syncSnapshot fetches the subscription and writes it to the user row and to
// the matching corporate row. Corporate admins keep at least the top
// individual plan, whichever of their subscriptions is synced.
func (s *Service) syncSnapshot(ctx context.Context, sub *models.Subscription, corp *models.CorporateSubscription, subscriptionID string) (entitlements.Plan, error) {
	snap, plan, err := s.fetchSubscription(ctx, subscriptionID)
	if err != nil {
		return "", err
	}

	if corp != nil && corp.ProviderSubscriptionID == snap.ID {
		if err := s.repo.UpdateCorporateSubscriptionState(ctx, corp.ID, normalizeStatus(snap.Status), snap.CurrentPeriodStart, snap.CurrentPeriodEnd); err != nil {
			return "", fmt.Errorf("refresh corporate subscription %s: %w", snap.ID, err)
		}
		plan = entitlements.TopIndividualPlan
	}

	if sub == nil {
		return plan, nil
	}
	if !tracksSubscription(sub, snap.ID) {
		log.Infof("[Billing] Subscription %s is not the one tracked for user %s, leaving row untouched", snap.ID, sub.UserID)
		return entitlements.NormalizePlan(sub.PlanTier, s.defaultPlan()), nil
	}

	if entitlements.Rank(plan) < entitlements.Rank(entitlements.TopIndividualPlan) {
		admin, err := s.repo.GetActiveCorporateSubscriptionByAdmin(ctx, sub.UserID)
		switch {
		case err == nil:
			log.Infof("[Billing] User %s administers %s, keeping %s", sub.UserID, admin.OrganizationName, entitlements.TopIndividualPlan)
			plan = entitlements.TopIndividualPlan
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return "", fmt.Errorf("find corporate plan administered by user %s: %w", sub.UserID, err)
		}
	}

	applySnapshot(sub, snap, plan)
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return "", fmt.Errorf("upsert subscription for user %s: %w", sub.UserID, err)
	}
	log.Infof("[Billing] Synced subscription %s for user %s: %s/%s", snap.ID, sub.UserID, sub.PlanTier, sub.Status)
	return plan, nil
}

// lookupCustomer resolves a processor customer to the local rows. Misses are
// returned as nil, not as errors.
func (s *Service) lookupCustomer(ctx context.Context, customerID string) (*models.Subscription, *models.CorporateSubscription, error) {
	if customerID == "" {
		return nil, nil, nil
	}

	sub, err := s.repo.GetSubscriptionByCustomerID(ctx, customerID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("find subscription for customer %s: %w", customerID, err)
		}
		sub = nil
	}

	corp, err := s.repo.GetCorporateSubscriptionByCustomerID(ctx, customerID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("find corporate subscription for customer %s: %w", customerID, err)
		}
		corp = nil
	}
	return sub, corp, nil
}

func (s *Service) renewalDelay() time.Duration {
	if d := s.cfg.Notifications.RenewalDelay; d > 0 {
		return d
	}
	return 5 * time.Minute
}

// applySnapshot replaces every processor-owned column.
func applySnapshot(sub *models.Subscription, snap *SubscriptionSnapshot, plan entitlements.Plan) {
	if snap.CustomerID != "" {
		sub.CustomerID = snap.CustomerID
	}
	sub.ProviderSubscriptionID = snap.ID
	sub.PriceID = snap.PriceID
	sub.PlanTier = string(plan)
	sub.Status = normalizeStatus(snap.Status)
	sub.CurrentPeriodStart = snap.CurrentPeriodStart
	sub.CurrentPeriodEnd = snap.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
}

// tracksSubscription is false when the row belongs to a different processor
// subscription of the same customer.
func tracksSubscription(sub *models.Subscription, subscriptionID string) bool {
	return sub.ProviderSubscriptionID == "" || subscriptionID == "" || sub.ProviderSubscriptionID == subscriptionID
}

func planTierOf(sub *models.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.PlanTier
}

func planName(tier string) string {
	return entitlements.DisplayName(entitlements.NormalizePlan(tier, entitlements.PlanFree))
}

package billing

import (
	"context"
	"fmt"

	"github.com/ManuelReschke/fitsync/app/models"
	"github.com/ManuelReschke/fitsync/internal/pkg/notify"
	"github.com/gofiber/fiber/v2/log"
)

var purchaseNotifications = map[string]string{
	models.ContentTypeWorkout: NotifyPurchaseWorkout,
	models.ContentTypeProgram: NotifyPurchaseProgram,
	models.ContentTypeShop:    NotifyPurchaseShop,
	models.ContentTypeRitual:  NotifyPurchaseRitual,
}

// RecordPurchase appends a one-time purchase to the ledger. A replayed
// delivery for the same payment intent (or the same ritual day) writes
// nothing and sends nothing.
func (s *Service) RecordPurchase(ctx context.Context, c PurchaseCheckout) (Outcome, error) {
	key := c.LedgerKey()

	if c.ContentType != models.ContentTypeRitual {
		exists, err := s.repo.PurchaseExists(ctx, key)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("check purchase %s: %w", key, err)
		}
		if exists {
			log.Infof("[Billing] Purchase %s already recorded, skipping", key)
			return OutcomeDuplicate, nil
		}
	}

	amount, currency := s.paidAmount(ctx, c)
	firstTime := s.firstTime(ctx, c.UserID)

	var created bool
	var err error
	if c.ContentType == models.ContentTypeRitual {
		created, err = s.repo.CreateRitualPurchase(ctx, &models.RitualPurchase{
			UserID:          c.UserID,
			RitualDate:      c.RitualDate,
			AmountCents:     amount,
			Currency:        currency,
			PaymentIntentID: c.PaymentIntentID,
		})
	} else {
		created, err = s.repo.CreatePurchase(ctx, &models.Purchase{
			UserID:          c.UserID,
			ContentType:     c.ContentType,
			ContentID:       c.ContentID,
			ContentName:     c.ContentName,
			AmountCents:     amount,
			Currency:        currency,
			PaymentIntentID: key,
		})
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("record %s purchase for user %s: %w", c.ContentType, c.UserID, err)
	}
	if !created {
		log.Infof("[Billing] %s purchase %s for user %s already recorded, skipping", c.ContentType, key, c.UserID)
		return OutcomeDuplicate, nil
	}
	log.Infof("[Billing] Recorded %s purchase %s for user %s (%s)", c.ContentType, key, c.UserID, formatAmount(amount, currency))

	vars := map[string]string{
		notify.VarContentName: c.ContentName,
		notify.VarAmount:      formatAmount(amount, currency),
		notify.VarEndDate:     c.RitualDate,
	}
	s.notify(ctx, c.UserID, purchaseNotifications[c.ContentType], vars)
	if firstTime {
		s.notify(ctx, c.UserID, NotifyWelcomeFirstPurchase, vars)
	}
	return OutcomeProcessed, nil
}

// paidAmount asks the processor what was actually charged. If that lookup
// fails the signed session total is used.
func (s *Service) paidAmount(ctx context.Context, c PurchaseCheckout) (int64, string) {
	if c.PaymentIntentID == "" {
		return c.AmountTotal, c.Currency
	}
	pi, err := s.processor.GetPaymentIntent(ctx, c.PaymentIntentID)
	if err != nil {
		log.Warnf("[Billing] Payment intent %s lookup failed, using session amount: %v", c.PaymentIntentID, err)
		return c.AmountTotal, c.Currency
	}
	return pi.PaidAmount(), firstNonEmpty(pi.Currency, c.Currency)
}

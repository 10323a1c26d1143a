package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ManuelReschke/fitsync/app/models"
	"github.com/gofiber/fiber/v2/log"
)

// ProcessWebhook records a verified event, skips deliveries that already
// succeeded and routes the rest. Events with invalid metadata are
// acknowledged; any other error should be answered with a retryable status.
func (s *Service) ProcessWebhook(ctx context.Context, env Envelope, raw []byte) (Result, error) {
	start := s.now()
	res := Result{EventID: env.ID, Type: env.Type}
	defer func() {
		if s.recorder != nil {
			s.recorder.ObserveWebhook(env.Type, string(res.Outcome), s.now().Sub(start))
		}
	}()

	eventID := env.ID
	if eventID == "" {
		sum := sha256.Sum256(raw)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(ctx, &models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: eventID,
		EventType:       env.Type,
		PayloadJSON:     string(raw),
	})
	if err != nil {
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("record webhook event %s: %w", eventID, err)
	}
	if stored.Succeeded() {
		log.Infof("[Billing] Event %s (%s) already processed, skipping", eventID, env.Type)
		res.Outcome = OutcomeDuplicate
		return res, nil
	}
	if created && s.archiver != nil {
		if err := s.archiver.ArchiveWebhook(ctx, eventID, start, raw); err != nil {
			log.Warnf("[Billing] Archiving event %s failed: %v", eventID, err)
		}
	}

	outcome, handleErr := s.HandleEvent(ctx, env)
	res.Outcome = outcome

	processingError := ""
	switch {
	case errors.Is(handleErr, ErrInvalidMetadata):
		log.Warnf("[Billing] Event %s (%s) has invalid metadata, acknowledging: %v", eventID, env.Type, handleErr)
		res.Outcome = OutcomeInvalidMetadata
		processingError = handleErr.Error()
		handleErr = nil
	case handleErr != nil:
		log.Errorf("[Billing] Event %s (%s) failed: %v", eventID, env.Type, handleErr)
		res.Outcome = OutcomeFailed
		processingError = handleErr.Error()
	}

	if err := s.repo.MarkWebhookProcessed(ctx, stored.ID, processingError); err != nil {
		log.Errorf("[Billing] Marking event %s processed failed: %v", eventID, err)
	}
	return res, handleErr
}

// HandleEvent maps an event type to exactly one handler. Unknown types are
// ignored so the processor does not keep redelivering them.
func (s *Service) HandleEvent(ctx context.Context, env Envelope) (Outcome, error) {
	switch env.Type {
	case EventCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, env)
	case EventCustomerSubscriptionUpdated:
		var obj subscriptionObject
		if err := decodeObject(env.Payload, &obj); err != nil {
			return OutcomeInvalidMetadata, err
		}
		return s.SyncSubscriptionUpdate(ctx, obj.ID, string(obj.Customer))
	case EventCustomerSubscriptionDeleted:
		var obj subscriptionObject
		if err := decodeObject(env.Payload, &obj); err != nil {
			return OutcomeInvalidMetadata, err
		}
		return s.CancelSubscription(ctx, obj.ID, string(obj.Customer), obj.periodEnd())
	case EventInvoicePaid, EventInvoicePaymentSucceeded:
		var inv invoiceObject
		if err := decodeObject(env.Payload, &inv); err != nil {
			return OutcomeInvalidMetadata, err
		}
		return s.HandleInvoicePaid(ctx, inv)
	case EventInvoicePaymentFailed:
		var inv invoiceObject
		if err := decodeObject(env.Payload, &inv); err != nil {
			return OutcomeInvalidMetadata, err
		}
		return s.HandleInvoiceFailed(ctx, inv)
	default:
		log.Infof("[Billing] Ignoring unhandled event type %s (%s)", env.Type, env.ID)
		return OutcomeIgnored, nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, env Envelope) (Outcome, error) {
	co, err := DecodeCheckout(env.Payload)
	if errors.Is(err, errUnsupportedCheckout) {
		log.Infof("[Billing] Ignoring checkout %s: %v", env.ID, err)
		return OutcomeIgnored, nil
	}
	if err != nil {
		return OutcomeInvalidMetadata, err
	}

	switch c := co.(type) {
	case SubscriptionCheckout:
		return s.CompleteSubscriptionCheckout(ctx, c)
	case PurchaseCheckout:
		return s.RecordPurchase(ctx, c)
	case CorporateCheckout:
		return s.CompleteCorporateCheckout(ctx, c)
	default:
		return OutcomeFailed, fmt.Errorf("unhandled checkout kind %s", co.Kind())
	}
}

package billing

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrInvalidSignature rejects an event before any state is touched.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidPayload means the signed body is not a usable event.
	ErrInvalidPayload = errors.New("invalid webhook payload")
	// ErrInvalidMetadata marks events whose metadata will never become valid
	// on retry. They are logged and acknowledged.
	ErrInvalidMetadata = errors.New("invalid checkout metadata")
	// ErrProcessor wraps failed reads against the payment processor. The
	// webhook answers 500 so the processor redelivers.
	ErrProcessor = errors.New("payment processor request failed")
)

// Envelope is a verified processor event. Payload is the raw data.object.
type Envelope struct {
	ID      string
	Type    string
	Created time.Time
	Payload json.RawMessage
}

// Outcome describes how an event was handled.
type Outcome string

const (
	OutcomeProcessed       Outcome = "processed"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeInvalidMetadata Outcome = "invalid_metadata"
	OutcomeFailed          Outcome = "failed"
)

// Result is returned to the webhook endpoint after an event has been handled.
type Result struct {
	EventID string
	Type    string
	Outcome Outcome
}

// Duplicate reports whether the event was acknowledged without re-running
// its handler.
func (r Result) Duplicate() bool {
	return r.Outcome == OutcomeDuplicate
}

// Event types routed by HandleEvent.
const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid                 = "invoice.paid"
	EventInvoicePaymentSucceeded     = "invoice.payment_succeeded"
	EventInvoicePaymentFailed        = "invoice.payment_failed"
)

// Notification types. Each has an editable template; the dispatcher falls
// back to built-in copy when none is stored.
const (
	NotifyPurchaseSubscription  = "purchase_subscription"
	NotifyWelcomeFirstPurchase  = "welcome_first_purchase"
	NotifySubscriptionCanceled  = "subscription_canceled"
	NotifySubscriptionRenewed   = "subscription_renewed"
	NotifyPaymentFailed         = "payment_failed"
	NotifyPurchaseWorkout       = "purchase_workout"
	NotifyPurchaseProgram       = "purchase_program"
	NotifyPurchaseShop          = "purchase_shop"
	NotifyPurchaseRitual        = "purchase_ritual"
	NotifyCorporateSubscription = "corporate_subscription"
)

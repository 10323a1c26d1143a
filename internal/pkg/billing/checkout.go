package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuelReschke/fitsync/app/models"
	"github.com/go-playground/validator/v10"
)

// errUnsupportedCheckout marks checkout modes nothing here handles (setup).
var errUnsupportedCheckout = errors.New("unsupported checkout mode")

var validate = validator.New()

// Checkout is the closed set of completed checkout sessions. It is decoded
// once from session metadata; handlers never re-read the raw metadata.
type Checkout interface {
	Kind() string
	checkout()
}

// SubscriptionCheckout starts an individual subscription.
type SubscriptionCheckout struct {
	SessionID      string
	UserID         string `validate:"required"`
	CustomerID     string
	SubscriptionID string `validate:"required"`
}

// PurchaseCheckout is a one-time purchase of catalog content or a ritual day.
type PurchaseCheckout struct {
	SessionID       string
	UserID          string `validate:"required"`
	CustomerID      string
	ContentType     string `validate:"required,oneof=workout program shop ritual"`
	ContentID       string
	ContentName     string
	RitualDate      string `validate:"required_if=ContentType ritual"`
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
}

// CorporateCheckout buys an organization plan for an admin user.
type CorporateCheckout struct {
	SessionID        string
	AdminUserID      string `validate:"required"`
	OrganizationName string `validate:"required"`
	PlanTier         string `validate:"required"`
	MaxMembers       int
	CustomerID       string
	SubscriptionID   string `validate:"required"`
}

func (SubscriptionCheckout) Kind() string { return "subscription" }
func (PurchaseCheckout) Kind() string     { return "purchase" }
func (CorporateCheckout) Kind() string    { return "corporate" }

func (SubscriptionCheckout) checkout() {}
func (PurchaseCheckout) checkout()     {}
func (CorporateCheckout) checkout()    {}

// LedgerKey is the idempotency key of a purchase. Sessions without a payment
// intent fall back to the session id.
func (p PurchaseCheckout) LedgerKey() string {
	if p.PaymentIntentID != "" {
		return p.PaymentIntentID
	}
	return "session:" + p.SessionID
}

// stripeID accepts both an id string and an expanded object with an id.
type stripeID string

func (s *stripeID) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = stripeID(v)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*s = stripeID(obj.ID)
	return nil
}

type checkoutSessionObject struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Customer      stripeID          `json:"customer"`
	Subscription  stripeID          `json:"subscription"`
	PaymentIntent stripeID          `json:"payment_intent"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// DecodeCheckout turns a checkout.session object into its Checkout variant.
// Missing or malformed metadata yields ErrInvalidMetadata.
func DecodeCheckout(payload json.RawMessage) (Checkout, error) {
	var sess checkoutSessionObject
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("%w: decode checkout session: %v", ErrInvalidMetadata, err)
	}
	md := sess.Metadata
	if md == nil {
		md = map[string]string{}
	}
	meta := func(key string) string { return strings.TrimSpace(md[key]) }

	var out Checkout
	switch {
	case isCorporateCheckout(md):
		seats, err := parseSeats(meta("max_members"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
		}
		out = CorporateCheckout{
			SessionID:        sess.ID,
			AdminUserID:      meta("user_id"),
			OrganizationName: meta("organization_name"),
			PlanTier:         strings.ToLower(meta("plan_tier")),
			MaxMembers:       seats,
			CustomerID:       string(sess.Customer),
			SubscriptionID:   string(sess.Subscription),
		}
	case sess.Mode == "subscription":
		out = SubscriptionCheckout{
			SessionID:      sess.ID,
			UserID:         meta("user_id"),
			CustomerID:     string(sess.Customer),
			SubscriptionID: string(sess.Subscription),
		}
	case sess.Mode == "payment":
		p := PurchaseCheckout{
			SessionID:       sess.ID,
			UserID:          meta("user_id"),
			CustomerID:      string(sess.Customer),
			ContentType:     strings.ToLower(meta("content_type")),
			ContentID:       meta("content_id"),
			ContentName:     meta("content_name"),
			RitualDate:      meta("ritual_date"),
			PaymentIntentID: string(sess.PaymentIntent),
			AmountTotal:     sess.AmountTotal,
			Currency:        sess.Currency,
		}
		if p.ContentType == models.ContentTypeRitual && p.RitualDate != "" {
			if _, err := time.Parse(time.DateOnly, p.RitualDate); err != nil {
				return nil, fmt.Errorf("%w: ritual_date %q is not YYYY-MM-DD", ErrInvalidMetadata, p.RitualDate)
			}
		}
		out = p
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedCheckout, sess.Mode)
	}

	if err := validate.Struct(out); err != nil {
		return nil, fmt.Errorf("%w: %s checkout: %v", ErrInvalidMetadata, out.Kind(), err)
	}
	return out, nil
}

func isCorporateCheckout(md map[string]string) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(md["corporate"])); err == nil && v {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(md["plan_type"]), "corporate")
}

// parseSeats reads max_members. "unlimited" and "-1" map to the unlimited
// sentinel.
func parseSeats(raw string) (int, error) {
	switch strings.ToLower(raw) {
	case "":
		return 0, errors.New("max_members is required")
	case "unlimited", "-1":
		return models.UnlimitedSeats, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("max_members %q is not a positive number", raw)
	}
	return n, nil
}

// subscriptionObject is the data.object of customer.subscription.* events.
type subscriptionObject struct {
	ID                string   `json:"id"`
	Customer          stripeID `json:"customer"`
	Status            string   `json:"status"`
	CancelAtPeriodEnd bool     `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64    `json:"current_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// periodEnd handles both the legacy top-level field and the per-item field.
func (s subscriptionObject) periodEnd() *time.Time {
	if s.CurrentPeriodEnd > 0 {
		return unixTime(s.CurrentPeriodEnd)
	}
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > 0 {
			return unixTime(item.CurrentPeriodEnd)
		}
	}
	return nil
}

// invoiceObject is the data.object of invoice.* events.
type invoiceObject struct {
	ID            string   `json:"id"`
	Customer      stripeID `json:"customer"`
	Subscription  stripeID `json:"subscription"`
	BillingReason string   `json:"billing_reason"`
	AmountPaid    int64    `json:"amount_paid"`
	AmountDue     int64    `json:"amount_due"`
	Currency      string   `json:"currency"`
	Parent        struct {
		SubscriptionDetails struct {
			Subscription stripeID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i invoiceObject) subscriptionID() string {
	if i.Subscription != "" {
		return string(i.Subscription)
	}
	return string(i.Parent.SubscriptionDetails.Subscription)
}

func decodeObject(payload json.RawMessage, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return nil
}

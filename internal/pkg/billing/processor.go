package billing

import (
	"context"
	"time"
)

// SubscriptionSnapshot is the processor's current view of a subscription.
type SubscriptionSnapshot struct {
	ID                 string
	CustomerID         string
	Status             string
	PriceID            string
	ProductID          string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

type Product struct {
	ID       string
	Name     string
	Metadata map[string]string
}

type PaymentIntent struct {
	ID             string
	Amount         int64
	AmountReceived int64
	Currency       string
}

// PaidAmount prefers the captured amount over the requested one.
func (p *PaymentIntent) PaidAmount() int64 {
	if p.AmountReceived > 0 {
		return p.AmountReceived
	}
	return p.Amount
}

// Processor is the read-only surface of the payment processor used to fetch
// authoritative values instead of trusting event payloads.
type Processor interface {
	GetSubscription(ctx context.Context, id string) (*SubscriptionSnapshot, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}

package billing

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeProcessor reads subscriptions, products and payment intents from the
// Stripe API.
type StripeProcessor struct {
	api *client.API
}

func NewStripeProcessor(secretKey string) *StripeProcessor {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProcessor{api: sc}
}

func (p *StripeProcessor) GetSubscription(ctx context.Context, id string) (*SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := p.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, err
	}
	return snapshotFromStripe(sub), nil
}

func (p *StripeProcessor) GetProduct(ctx context.Context, id string) (*Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx
	prod, err := p.api.Products.Get(id, params)
	if err != nil {
		return nil, err
	}
	return &Product{ID: prod.ID, Name: prod.Name, Metadata: prod.Metadata}, nil
}

func (p *StripeProcessor) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, err
	}
	return &PaymentIntent{
		ID:             pi.ID,
		Amount:         pi.Amount,
		AmountReceived: pi.AmountReceived,
		Currency:       string(pi.Currency),
	}, nil
}

// snapshotFromStripe flattens a subscription. Billing periods live on the
// subscription items; the first item is the plan item.
func snapshotFromStripe(sub *stripe.Subscription) *SubscriptionSnapshot {
	out := &SubscriptionSnapshot{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return out
	}

	item := sub.Items.Data[0]
	out.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
	out.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	if item.Price != nil {
		out.PriceID = item.Price.ID
		if item.Price.Product != nil {
			out.ProductID = item.Price.Product.ID
		}
	}
	return out
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

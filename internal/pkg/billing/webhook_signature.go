package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
)

// DefaultSignatureTolerance is the maximum age of a signed timestamp.
const DefaultSignatureTolerance = webhook.DefaultTolerance

// VerifyStripeWebhook checks the Stripe-Signature header against the raw body
// and parses the event envelope. Signature failures return
// ErrInvalidSignature, unparseable signed bodies ErrInvalidPayload.
func VerifyStripeWebhook(payload []byte, signatureHeader, webhookSecret string, tolerance time.Duration) (Envelope, error) {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return Envelope{}, ErrInvalidSignature
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if event.Data == nil || len(event.Data.Raw) == 0 || event.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type or data.object", ErrInvalidPayload)
	}

	return Envelope{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
		Payload: event.Data.Raw,
	}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

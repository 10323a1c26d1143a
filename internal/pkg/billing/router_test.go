package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedObservation struct {
	eventType string
	outcome   string
}

type fakeRecorder struct {
	observations []recordedObservation
}

func (r *fakeRecorder) ObserveWebhook(eventType, outcome string, _ time.Duration) {
	r.observations = append(r.observations, recordedObservation{eventType: eventType, outcome: outcome})
}

type fakeArchiver struct {
	keys []string
	err  error
}

func (a *fakeArchiver) ArchiveWebhook(_ context.Context, eventID string, _ time.Time, _ []byte) error {
	a.keys = append(a.keys, eventID)
	return a.err
}

func TestProcessWebhookSkipsSucceededDuplicates(t *testing.T) {
	h := newHarness()
	rec := &fakeRecorder{}
	arch := &fakeArchiver{}
	h.svc.WithRecorder(rec).WithArchiver(arch)
	h.stripeSubscription("sub_1", "cus_1", "active", "gold", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	event := subscriptionCheckoutEvent(t, "evt_1", "u1", "cus_1", "sub_1")

	res, err := h.svc.ProcessWebhook(context.Background(), event, event.Payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.False(t, res.Duplicate())

	res, err = h.svc.ProcessWebhook(context.Background(), event, event.Payload)
	require.NoError(t, err)
	assert.True(t, res.Duplicate())

	assert.Equal(t, 1, h.processor.subscriptionGets)
	assert.Equal(t, 1, countKind(h.notifier, NotifyPurchaseSubscription))
	assert.Equal(t, []string{"evt_1"}, arch.keys)
	assert.Equal(t, []recordedObservation{
		{eventType: EventCheckoutSessionCompleted, outcome: "processed"},
		{eventType: EventCheckoutSessionCompleted, outcome: "duplicate"},
	}, rec.observations)
	assert.Equal(t, 1, h.repo.events["evt_1"].Attempts)
}

func TestProcessWebhookRetriesFailedEvent(t *testing.T) {
	h := newHarness()
	h.processor.subErr = errors.New("stripe down")
	event := subscriptionCheckoutEvent(t, "evt_1", "u1", "cus_1", "sub_1")

	res, err := h.svc.ProcessWebhook(context.Background(), event, event.Payload)
	require.ErrorIs(t, err, ErrProcessor)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, h.repo.events["evt_1"].ProcessingError, "stripe down")

	h.processor.subErr = nil
	h.stripeSubscription("sub_1", "cus_1", "active", "gold", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	res, err = h.svc.ProcessWebhook(context.Background(), event, event.Payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, res.Outcome)
	assert.True(t, h.repo.events["evt_1"].Succeeded())
	assert.Equal(t, 2, h.repo.events["evt_1"].Attempts)
	assert.Equal(t, "gold", h.repo.subs["u1"].PlanTier)
}

func TestProcessWebhookAcknowledgesInvalidMetadata(t *testing.T) {
	h := newHarness()
	event := subscriptionCheckoutEvent(t, "evt_1", "", "cus_1", "sub_1")

	res, err := h.svc.ProcessWebhook(context.Background(), event, event.Payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidMetadata, res.Outcome)
	assert.NotEmpty(t, h.repo.events["evt_1"].ProcessingError)
	assert.Zero(t, h.repo.writes)
}

func TestProcessWebhookArchiveFailureIsIgnored(t *testing.T) {
	h := newHarness()
	h.svc.WithArchiver(&fakeArchiver{err: errors.New("s3 down")})
	event := envelope(t, "evt_1", "customer.created", map[string]any{"id": "cus_1"})

	res, err := h.svc.ProcessWebhook(context.Background(), event, event.Payload)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, res.Outcome)
}

func TestProcessWebhookWithoutEventIDUsesPayloadHash(t *testing.T) {
	h := newHarness()
	event := envelope(t, "", "customer.created", map[string]any{"id": "cus_1"})

	_, err := h.svc.ProcessWebhook(context.Background(), event, event.Payload)
	require.NoError(t, err)
	require.Len(t, h.repo.events, 1)
	for key := range h.repo.events {
		assert.Contains(t, key, "hash:")
	}
}

func TestHandleEventRoutesUnknownTypes(t *testing.T) {
	h := newHarness()

	for _, eventType := range []string{"customer.created", "charge.refunded", "payment_intent.succeeded"} {
		outcome, err := h.svc.HandleEvent(context.Background(), envelope(t, "evt", eventType, map[string]any{"id": "x"}))
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome, eventType)
	}
	assert.Zero(t, h.repo.writes)
}

func TestHandleEventIgnoresSetupCheckout(t *testing.T) {
	h := newHarness()

	outcome, err := h.svc.HandleEvent(context.Background(), envelope(t, "evt", EventCheckoutSessionCompleted, map[string]any{
		"id": "cs_1", "mode": "setup", "metadata": map[string]string{"user_id": "u1"},
	}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestProcessWebhookUnknownCustomerOnlyLogsEvent(t *testing.T) {
	events := []Envelope{
		envelope(t, "evt_1", EventCustomerSubscriptionUpdated, map[string]any{"id": "sub_x", "customer": "cus_unknown"}),
		envelope(t, "evt_2", EventCustomerSubscriptionDeleted, map[string]any{"id": "sub_x", "customer": "cus_unknown"}),
		envelope(t, "evt_3", EventInvoicePaid, map[string]any{"id": "in_1", "customer": "cus_unknown", "subscription": "sub_x"}),
		envelope(t, "evt_4", EventInvoicePaymentFailed, map[string]any{"id": "in_2", "customer": "cus_unknown", "subscription": "sub_x"}),
	}

	for _, event := range events {
		t.Run(event.Type, func(t *testing.T) {
			h := newHarness()

			res, err := h.svc.ProcessWebhook(context.Background(), event, event.Payload)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, res.Outcome)

			// domain tables stay untouched, the audit row is the only write
			assert.Zero(t, h.repo.writes)
			assert.Empty(t, h.repo.subs)
			assert.Empty(t, h.repo.corporates)
			assert.Empty(t, h.repo.purchases)
			assert.Empty(t, h.repo.rituals)
			assert.Empty(t, h.notifier.sent)
			assert.Empty(t, h.notifier.scheduled)
			require.Len(t, h.repo.events, 1)
			assert.True(t, h.repo.events[event.ID].Succeeded())
			assert.Zero(t, h.processor.subscriptionGets)
		})
	}
}

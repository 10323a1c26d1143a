package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/fitsync/internal/pkg/billing"
	"github.com/ManuelReschke/fitsync/internal/pkg/config"
)

const stripeSignatureHeader = "Stripe-Signature"

// WebhookProcessor handles a verified webhook event.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, env billing.Envelope, raw []byte) (billing.Result, error)
}

type BillingController struct {
	stripe    config.StripeConfig
	timeout   time.Duration
	processor WebhookProcessor
	recorder  billing.Recorder
}

func NewBillingController(cfg config.Config, processor WebhookProcessor) *BillingController {
	timeout := cfg.App.WebhookTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &BillingController{
		stripe:    cfg.Stripe,
		timeout:   timeout,
		processor: processor,
	}
}

// WithRecorder counts deliveries rejected before they reach the processor.
func (bc *BillingController) WithRecorder(r billing.Recorder) *BillingController {
	bc.recorder = r
	return bc
}

func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	start := time.Now()
	rawBody := append([]byte(nil), c.BodyRaw()...)

	env, err := billing.VerifyStripeWebhook(rawBody, c.Get(stripeSignatureHeader), bc.stripe.WebhookSecret, bc.stripe.Tolerance)
	if err != nil {
		code := "invalid_signature"
		if errors.Is(err, billing.ErrInvalidPayload) {
			code = "invalid_payload"
		}
		log.Warnf("[Webhook] Rejected delivery from %s: %v", c.IP(), err)
		bc.observeRejected(code, start)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": code})
	}

	ctx, cancel := context.WithTimeout(context.Background(), bc.timeout)
	defer cancel()

	res, err := bc.processor.ProcessWebhook(ctx, env, rawBody)
	if err != nil {
		log.Errorf("[Webhook] Event %s (%s) not handled: %v", env.ID, env.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	if res.Duplicate() {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": true})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

func (bc *BillingController) observeRejected(outcome string, start time.Time) {
	if bc.recorder == nil {
		return
	}
	bc.recorder.ObserveWebhook("unverified", outcome, time.Since(start))
}

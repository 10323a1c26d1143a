package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/fitsync/internal/pkg/config"
	"github.com/ManuelReschke/fitsync/internal/pkg/entitlements"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Notifier delivers user notifications. Errors are logged by the caller and
// never undo state that was already written.
type Notifier interface {
	Send(ctx context.Context, userID, kind string, vars map[string]string) error
	Schedule(ctx context.Context, userID, kind string, vars map[string]string, deliverAt time.Time) error
}

// Archiver stores raw verified payloads.
type Archiver interface {
	ArchiveWebhook(ctx context.Context, eventID string, received time.Time, payload []byte) error
}

// Recorder observes webhook outcomes.
type Recorder interface {
	ObserveWebhook(eventType, outcome string, elapsed time.Duration)
}

// Service reconciles processor events into local subscription, purchase and
// corporate state.
type Service struct {
	cfg       config.Config
	repo      Repository
	processor Processor
	notifier  Notifier
	archiver  Archiver
	recorder  Recorder
	now       func() time.Time
}

// NewService creates a billing service from injected dependencies.
func NewService(cfg config.Config, repo Repository, processor Processor, notifier Notifier) *Service {
	return &Service{
		cfg:       cfg,
		repo:      repo,
		processor: processor,
		notifier:  notifier,
		now:       time.Now,
	}
}

// NewServiceFromDB wires the GORM repository and the Stripe processor.
func NewServiceFromDB(cfg config.Config, db *gorm.DB, notifier Notifier) *Service {
	return NewService(cfg, NewRepository(db), NewStripeProcessor(cfg.Stripe.SecretKey), notifier)
}

func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) defaultPlan() entitlements.Plan {
	return entitlements.NormalizePlan(s.cfg.Notifications.DefaultPlanTier, entitlements.PlanBase)
}

// fetchSubscription reads the subscription and its product. Both are needed
// to know status and plan, so failures are processor errors.
func (s *Service) fetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, entitlements.Plan, error) {
	snap, err := s.processor.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: get subscription %s: %w", ErrProcessor, subscriptionID, err)
	}
	if snap.ProductID == "" {
		return snap, s.defaultPlan(), nil
	}
	product, err := s.processor.GetProduct(ctx, snap.ProductID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: get product %s: %w", ErrProcessor, snap.ProductID, err)
	}
	return snap, planFromProduct(product, s.defaultPlan()), nil
}

// notify logs instead of returning; notification errors never fail an event.
func (s *Service) notify(ctx context.Context, userID, kind string, vars map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, userID, kind, vars); err != nil {
		log.Warnf("[Billing] Notification %s for user %s failed: %v", kind, userID, err)
	}
}

func (s *Service) schedule(ctx context.Context, userID, kind string, vars map[string]string, deliverAt time.Time) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Schedule(ctx, userID, kind, vars, deliverAt); err != nil {
		log.Warnf("[Billing] Scheduling %s for user %s failed: %v", kind, userID, err)
	}
}

// formatAmount renders minor units as "12.50 EUR".
func formatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	out := fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
	if c := strings.ToUpper(strings.TrimSpace(currency)); c != "" {
		out += " " + c
	}
	return out
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "the end of the current billing period"
	}
	return t.UTC().Format("January 2, 2006")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

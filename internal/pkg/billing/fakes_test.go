package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuelReschke/fitsync/app/models"
	"github.com/ManuelReschke/fitsync/internal/pkg/config"
	"gorm.io/gorm"
)

// memRepo is an in-memory Repository with the same keying as the GORM one.
type memRepo struct {
	mu            sync.Mutex
	subs          map[string]*models.Subscription
	purchases     []*models.Purchase
	rituals       []*models.RitualPurchase
	corporates    map[string]*models.CorporateSubscription
	events        map[string]*models.BillingWebhookEvent
	writes        int
	nextID        uint
	subscribeErr  error
	countErr      error
	markProcessed []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		subs:       map[string]*models.Subscription{},
		corporates: map[string]*models.CorporateSubscription{},
		events:     map[string]*models.BillingWebhookEvent{},
	}
}

func (r *memRepo) id() uint {
	r.nextID++
	return r.nextID
}

func (r *memRepo) GetSubscriptionByUserID(_ context.Context, userID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) GetSubscriptionByCustomerID(_ context.Context, customerID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.CustomerID == customerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) UpsertSubscription(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribeErr != nil {
		return r.subscribeErr
	}
	r.writes++
	if existing, ok := r.subs[sub.UserID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.ID = r.id()
		sub.CreatedAt = time.Now()
	}
	sub.UpdatedAt = time.Now()
	cp := *sub
	r.subs[sub.UserID] = &cp
	return nil
}

func (r *memRepo) UpdateSubscriptionStatus(_ context.Context, userID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if s, ok := r.subs[userID]; ok {
		s.Status = status
	}
	return nil
}

func (r *memRepo) MarkSubscriptionCanceled(_ context.Context, userID string, periodEnd *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if s, ok := r.subs[userID]; ok {
		s.Status = models.SubscriptionStatusCanceled
		s.CancelAtPeriodEnd = true
		if periodEnd != nil {
			s.CurrentPeriodEnd = periodEnd
		}
	}
	return nil
}

func (r *memRepo) PurchaseExists(_ context.Context, paymentIntentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.purchases {
		if p.PaymentIntentID == paymentIntentID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) CreatePurchase(_ context.Context, p *models.Purchase) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.purchases {
		if existing.PaymentIntentID == p.PaymentIntentID {
			return false, nil
		}
	}
	r.writes++
	p.ID = r.id()
	r.purchases = append(r.purchases, p)
	return true, nil
}

func (r *memRepo) CreateRitualPurchase(_ context.Context, p *models.RitualPurchase) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rituals {
		if existing.UserID == p.UserID && existing.RitualDate == p.RitualDate {
			return false, nil
		}
	}
	r.writes++
	p.ID = r.id()
	r.rituals = append(r.rituals, p)
	return true, nil
}

func (r *memRepo) UpsertCorporateSubscription(_ context.Context, c *models.CorporateSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if existing, ok := r.corporates[c.ProviderSubscriptionID]; ok {
		c.ID = existing.ID
		c.CurrentMembers = existing.CurrentMembers
	} else {
		c.ID = r.id()
	}
	cp := *c
	r.corporates[c.ProviderSubscriptionID] = &cp
	return nil
}

func (r *memRepo) GetCorporateSubscriptionByCustomerID(_ context.Context, customerID string) (*models.CorporateSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.corporates {
		if c.CustomerID == customerID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) GetActiveCorporateSubscriptionByAdmin(_ context.Context, adminUserID string) (*models.CorporateSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.corporates {
		if c.AdminUserID == adminUserID && c.Status != models.SubscriptionStatusCanceled {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) UpdateCorporateSubscriptionState(_ context.Context, id uint, status string, periodStart, periodEnd *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	for _, c := range r.corporates {
		if c.ID == id {
			c.Status = status
			c.CurrentPeriodStart = periodStart
			c.CurrentPeriodEnd = periodEnd
		}
	}
	return nil
}

func (r *memRepo) CountPurchases(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	var n int64
	for _, p := range r.purchases {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountRitualPurchases(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, p := range r.rituals {
		if p.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) CountPaidSubscriptions(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[userID]; ok && s.PlanTier != "free" {
		return 1, nil
	}
	return 0, nil
}

func (r *memRepo) CreateWebhookEventIfNotExists(_ context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.events[event.ProviderEventID]; ok {
		cp := *existing
		return false, &cp, nil
	}
	event.ID = r.id()
	cp := *event
	r.events[event.ProviderEventID] = &cp
	return true, event, nil
}

func (r *memRepo) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.ProcessedAt = &now
			e.ProcessingError = processingError
			e.Attempts++
		}
	}
	r.markProcessed = append(r.markProcessed, processingError)
	return nil
}

func (r *memRepo) DeleteProcessedWebhookEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, e := range r.events {
		if e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			delete(r.events, k)
			n++
		}
	}
	return n, nil
}

// fakeProcessor serves canned processor objects.
type fakeProcessor struct {
	subs             map[string]*SubscriptionSnapshot
	products         map[string]*Product
	intents          map[string]*PaymentIntent
	subErr           error
	intentErr        error
	subscriptionGets int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		subs:     map[string]*SubscriptionSnapshot{},
		products: map[string]*Product{},
		intents:  map[string]*PaymentIntent{},
	}
}

func (p *fakeProcessor) GetSubscription(_ context.Context, id string) (*SubscriptionSnapshot, error) {
	p.subscriptionGets++
	if p.subErr != nil {
		return nil, p.subErr
	}
	if s, ok := p.subs[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, errors.New("no such subscription: " + id)
}

func (p *fakeProcessor) GetProduct(_ context.Context, id string) (*Product, error) {
	if prod, ok := p.products[id]; ok {
		return prod, nil
	}
	return nil, errors.New("no such product: " + id)
}

func (p *fakeProcessor) GetPaymentIntent(_ context.Context, id string) (*PaymentIntent, error) {
	if p.intentErr != nil {
		return nil, p.intentErr
	}
	if pi, ok := p.intents[id]; ok {
		return pi, nil
	}
	return nil, errors.New("no such payment intent: " + id)
}

type sentNotification struct {
	UserID    string
	Kind      string
	Vars      map[string]string
	DeliverAt time.Time
}

type fakeNotifier struct {
	sent      []sentNotification
	scheduled []sentNotification
	err       error
}

func (n *fakeNotifier) Send(_ context.Context, userID, kind string, vars map[string]string) error {
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Vars: vars})
	return n.err
}

func (n *fakeNotifier) Schedule(_ context.Context, userID, kind string, vars map[string]string, deliverAt time.Time) error {
	n.scheduled = append(n.scheduled, sentNotification{UserID: userID, Kind: kind, Vars: vars, DeliverAt: deliverAt})
	return n.err
}

func (n *fakeNotifier) kinds() []string {
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		App: config.AppConfig{PublicURL: "https://fit.example.com", WebhookTimeout: 15 * time.Second},
		Notifications: config.NotificationConfig{
			RenewalDelay:       5 * time.Minute,
			DefaultPlanTier:    "base",
			CorporateAdminPath: "/corporate/admin",
		},
	}
}

type harness struct {
	svc       *Service
	repo      *memRepo
	processor *fakeProcessor
	notifier  *fakeNotifier
	now       time.Time
}

func newHarness() *harness {
	h := &harness{
		repo:      newMemRepo(),
		processor: newFakeProcessor(),
		notifier:  &fakeNotifier{},
		now:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.svc = NewService(testConfig(), h.repo, h.processor, h.notifier)
	h.svc.now = func() time.Time { return h.now }
	return h
}

// stripeSubscription registers a subscription snapshot with a product that
// carries the given plan tier.
func (h *harness) stripeSubscription(id, customerID, status, planTier string, periodEnd time.Time) {
	productID := "prod_" + planTier
	start := periodEnd.AddDate(0, -1, 0)
	end := periodEnd
	h.processor.subs[id] = &SubscriptionSnapshot{
		ID:                 id,
		CustomerID:         customerID,
		Status:             status,
		PriceID:            "price_" + planTier,
		ProductID:          productID,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
	h.processor.products[productID] = &Product{ID: productID, Name: planTier, Metadata: map[string]string{"plan_tier": planTier}}
}

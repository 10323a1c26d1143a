package billing

import (
	"context"
	"time"

	"github.com/ManuelReschke/fitsync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
	UpdateSubscriptionStatus(ctx context.Context, userID, status string) error
	MarkSubscriptionCanceled(ctx context.Context, userID string, periodEnd *time.Time) error

	PurchaseExists(ctx context.Context, paymentIntentID string) (bool, error)
	CreatePurchase(ctx context.Context, p *models.Purchase) (bool, error)
	CreateRitualPurchase(ctx context.Context, p *models.RitualPurchase) (bool, error)

	UpsertCorporateSubscription(ctx context.Context, c *models.CorporateSubscription) error
	GetCorporateSubscriptionByCustomerID(ctx context.Context, customerID string) (*models.CorporateSubscription, error)
	GetActiveCorporateSubscriptionByAdmin(ctx context.Context, adminUserID string) (*models.CorporateSubscription, error)
	UpdateCorporateSubscriptionState(ctx context.Context, id uint, status string, periodStart, periodEnd *time.Time) error

	CountPurchases(ctx context.Context, userID string) (int64, error)
	CountRitualPurchases(ctx context.Context, userID string) (int64, error)
	CountPaidSubscriptions(ctx context.Context, userID string) (int64, error)

	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error
	DeleteProcessedWebhookEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSubscriptionByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("updated_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"customer_id",
			"provider_subscription_id",
			"price_id",
			"plan_tier",
			"status",
			"current_period_start",
			"current_period_end",
			"cancel_at_period_end",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	var stored models.Subscription
	if err := db.Where("user_id = ?", sub.UserID).First(&stored).Error; err != nil {
		return err
	}
	*sub = stored
	return nil
}

func (r *gormRepository) UpdateSubscriptionStatus(ctx context.Context, userID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Update("status", status).Error
}

func (r *gormRepository) MarkSubscriptionCanceled(ctx context.Context, userID string, periodEnd *time.Time) error {
	updates := map[string]interface{}{
		"status":               models.SubscriptionStatusCanceled,
		"cancel_at_period_end": true,
	}
	if periodEnd != nil {
		updates["current_period_end"] = periodEnd
	}
	return r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

func (r *gormRepository) PurchaseExists(ctx context.Context, paymentIntentID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("payment_intent_id = ?", paymentIntentID).
		Count(&n).Error
	return n > 0, err
}

func (r *gormRepository) CreatePurchase(ctx context.Context, p *models.Purchase) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_intent_id"}},
		DoNothing: true,
	}).Create(p)
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) CreateRitualPurchase(ctx context.Context, p *models.RitualPurchase) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "ritual_date"}},
		DoNothing: true,
	}).Create(p)
	return tx.RowsAffected > 0, tx.Error
}

func (r *gormRepository) UpsertCorporateSubscription(ctx context.Context, c *models.CorporateSubscription) error {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"admin_user_id",
			"organization_name",
			"plan_tier",
			"max_members",
			"customer_id",
			"status",
			"current_period_start",
			"current_period_end",
			"updated_at",
		}),
	}).Create(c).Error; err != nil {
		return err
	}
	var stored models.CorporateSubscription
	if err := db.Where("provider_subscription_id = ?", c.ProviderSubscriptionID).First(&stored).Error; err != nil {
		return err
	}
	*c = stored
	return nil
}

func (r *gormRepository) GetCorporateSubscriptionByCustomerID(ctx context.Context, customerID string) (*models.CorporateSubscription, error) {
	var c models.CorporateSubscription
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("updated_at DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActiveCorporateSubscriptionByAdmin returns a corporate plan the user
// administers that has not been canceled. past_due still counts.
func (r *gormRepository) GetActiveCorporateSubscriptionByAdmin(ctx context.Context, adminUserID string) (*models.CorporateSubscription, error) {
	var c models.CorporateSubscription
	err := r.db.WithContext(ctx).
		Where("admin_user_id = ? AND status <> ?", adminUserID, models.SubscriptionStatusCanceled).
		Order("updated_at DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *gormRepository) UpdateCorporateSubscriptionState(ctx context.Context, id uint, status string, periodStart, periodEnd *time.Time) error {
	return r.db.WithContext(ctx).Model(&models.CorporateSubscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":               status,
			"current_period_start": periodStart,
			"current_period_end":   periodEnd,
		}).Error
}

func (r *gormRepository) CountPurchases(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Purchase{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *gormRepository) CountRitualPurchases(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.RitualPurchase{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *gormRepository) CountPaidSubscriptions(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("user_id = ? AND plan_tier <> ?", userID, "free").
		Count(&n).Error
	return n, err
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
		"attempts":         gorm.Expr("attempts + 1"),
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) DeleteProcessedWebhookEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("processed_at IS NOT NULL AND processed_at < ?", cutoff).
		Delete(&models.BillingWebhookEvent{})
	return tx.RowsAffected, tx.Error
}

package notify

import (
	"context"

	"github.com/ManuelReschke/fitsync/app/models"
	"gorm.io/gorm"
)

// Store persists notifications and reads templates and recipients.
type Store interface {
	GetTemplate(ctx context.Context, kind string) (*models.NotificationTemplate, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	CreateMessage(ctx context.Context, msg *models.NotificationMessage) error
	CreateScheduled(ctx context.Context, rows []*models.ScheduledNotification) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GetTemplate(ctx context.Context, kind string) (*models.NotificationTemplate, error) {
	var t models.NotificationTemplate
	if err := s.db.WithContext(ctx).Where("type = ?", kind).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *gormStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *gormStore) CreateMessage(ctx context.Context, msg *models.NotificationMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

func (s *gormStore) CreateScheduled(ctx context.Context, rows []*models.ScheduledNotification) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

package models

import "time"

// NotificationMessage is an in-app message shown in the user's inbox.
type NotificationMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Type      string    `gorm:"type:varchar(50);not null;index" json:"type"`
	Title     string    `gorm:"type:varchar(255);not null;default:''" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	IsRead    bool      `gorm:"default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

const (
	NotificationChannelInApp = "in_app"
	NotificationChannelEmail = "email"

	ScheduledStatusPending = "pending"
	ScheduledStatusSent    = "sent"
)

// ScheduledNotification is delivered by the notification worker once
// DeliverAt has passed.
type ScheduledNotification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    string     `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Channel   string     `gorm:"type:varchar(16);not null" json:"channel"`
	Type      string     `gorm:"type:varchar(50);not null" json:"type"`
	Recipient string     `gorm:"type:varchar(200);not null;default:''" json:"recipient"`
	Subject   string     `gorm:"type:varchar(255);not null;default:''" json:"subject"`
	Title     string     `gorm:"type:varchar(255);not null;default:''" json:"title"`
	Body      string     `gorm:"type:text" json:"body"`
	DeliverAt time.Time  `gorm:"not null;index:idx_scheduled_notifications_due,priority:2" json:"deliver_at"`
	Status    string     `gorm:"type:varchar(16);not null;default:'pending';index:idx_scheduled_notifications_due,priority:1" json:"status"`
	SentAt    *time.Time `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NotificationTemplate holds editable copy for one notification type.
// Body is used in-app, EmailHTML for the outbound mail.
type NotificationTemplate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"type"`
	Title     string    `gorm:"type:varchar(255);not null;default:''" json:"title"`
	Subject   string    `gorm:"type:varchar(255);not null;default:''" json:"subject"`
	Body      string    `gorm:"type:text" json:"body"`
	EmailHTML string    `gorm:"type:text" json:"email_html"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

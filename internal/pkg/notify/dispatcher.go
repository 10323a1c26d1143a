package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuelReschke/fitsync/app/models"
	"github.com/ManuelReschke/fitsync/internal/pkg/mail"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Dispatcher writes in-app messages and sends or schedules email. Callers
// treat its errors as non-fatal.
type Dispatcher struct {
	store  Store
	mailer mail.Mailer
}

func NewDispatcher(store Store, mailer mail.Mailer) *Dispatcher {
	return &Dispatcher{store: store, mailer: mailer}
}

// Send writes an in-app message and mails the user right away. A failure on
// one channel does not stop the other.
func (d *Dispatcher) Send(ctx context.Context, userID, kind string, vars map[string]string) error {
	content := d.render(ctx, kind, vars)

	var errs []error
	msg := &models.NotificationMessage{
		UserID: userID,
		Type:   kind,
		Title:  content.Title,
		Body:   content.Body,
	}
	if err := d.store.CreateMessage(ctx, msg); err != nil {
		errs = append(errs, fmt.Errorf("write %s message: %w", kind, err))
	}

	recipient, err := d.recipient(ctx, userID)
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	if d.mailer == nil {
		return errors.Join(errs...)
	}
	if err := d.mailer.Send(ctx, mail.Message{To: recipient, Subject: content.Subject, HTMLBody: content.EmailHTML}); err != nil {
		errs = append(errs, fmt.Errorf("send %s email: %w", kind, err))
	}
	return errors.Join(errs...)
}

// Schedule writes an in-app and an email row for the delivery worker.
func (d *Dispatcher) Schedule(ctx context.Context, userID, kind string, vars map[string]string, deliverAt time.Time) error {
	content := d.render(ctx, kind, vars)

	rows := []*models.ScheduledNotification{{
		UserID:    userID,
		Channel:   models.NotificationChannelInApp,
		Type:      kind,
		Title:     content.Title,
		Body:      content.Body,
		DeliverAt: deliverAt,
		Status:    models.ScheduledStatusPending,
	}}

	recipient, recipientErr := d.recipient(ctx, userID)
	if recipientErr == nil {
		rows = append(rows, &models.ScheduledNotification{
			UserID:    userID,
			Channel:   models.NotificationChannelEmail,
			Type:      kind,
			Recipient: recipient,
			Subject:   content.Subject,
			Title:     content.Title,
			Body:      content.EmailHTML,
			DeliverAt: deliverAt,
			Status:    models.ScheduledStatusPending,
		})
	}

	if err := d.store.CreateScheduled(ctx, rows); err != nil {
		return fmt.Errorf("schedule %s: %w", kind, err)
	}
	return recipientErr
}

func (d *Dispatcher) render(ctx context.Context, kind string, vars map[string]string) Content {
	tmpl, err := d.store.GetTemplate(ctx, kind)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Notify] Template lookup for %s failed, using default copy: %v", kind, err)
		}
		tmpl = nil
	}
	return Render(kind, tmpl, vars)
}

func (d *Dispatcher) recipient(ctx context.Context, userID string) (string, error) {
	u, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve email for user %s: %w", userID, err)
	}
	if u.Email == "" {
		return "", fmt.Errorf("user %s has no email address", userID)
	}
	return u.Email, nil
}

package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/fitsync/internal/pkg/mail"
)

// QueuedMailer hands emails to the job queue instead of sending inline. Delivery and
// retries happen in the send_email handler.
type QueuedMailer struct {
	queue *Queue
}

func NewQueuedMailer(q *Queue) *QueuedMailer {
	return &QueuedMailer{queue: q}
}

func (m *QueuedMailer) Send(ctx context.Context, msg mail.Message) error {
	if msg.To == "" {
		return errors.New("mail recipient is empty")
	}
	payload := SendEmailJobPayload{
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
	}
	if _, err := m.queue.EnqueueJob(ctx, JobTypeSendEmail, payload.ToMap()); err != nil {
		return fmt.Errorf("enqueue email to %s: %w", msg.To, err)
	}
	return nil
}

// SendEmailHandler delivers send_email jobs through the given mailer.
func SendEmailHandler(mailer mail.Mailer) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := SendEmailJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("decode email payload: %w", err)
		}
		return mailer.Send(ctx, mail.Message{
			To:       payload.To,
			Subject:  payload.Subject,
			HTMLBody: payload.HTMLBody,
		})
	}
}

var _ mail.Mailer = (*QueuedMailer)(nil)

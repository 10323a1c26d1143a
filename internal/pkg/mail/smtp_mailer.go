package mail

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/ManuelReschke/fitsync/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
)

// Message is one outbound transactional email. HTMLBody is sent as-is.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// Mailer sends transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var (
	ErrNotConfigured   = errors.New("smtp host is not configured")
	ErrHeaderInjection = errors.New("line break in mail header")
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	cfg      config.MailConfig
	sendMail sendFunc
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	if cfg.Sender == "" {
		cfg.Sender = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", cfg.Sender)
	}
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.cfg.Host == "" {
		return ErrNotConfigured
	}
	if msg.To == "" {
		return errors.New("mail recipient is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	body, err := buildMIME(m.cfg.Sender, msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	if err := m.sendMail(addr, auth, m.cfg.Sender, []string{msg.To}, body); err != nil {
		log.Errorf("[Mail] SMTP send error: %v", err)
		return err
	}
	log.Infof("[Mail] Email sent to %s via %s", msg.To, addr)
	return nil
}

func buildMIME(sender string, msg Message) ([]byte, error) {
	for _, v := range []string{sender, msg.To, msg.Subject} {
		if strings.ContainsAny(v, "\r\n") {
			return nil, fmt.Errorf("%w: %q", ErrHeaderInjection, v)
		}
	}
	subject := mime.QEncoding.Encode("utf-8", msg.Subject)
	return []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, msg.To, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			msg.HTMLBody,
	), nil
}

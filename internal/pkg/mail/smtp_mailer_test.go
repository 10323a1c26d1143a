package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/ManuelReschke/fitsync/internal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailerSend(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: "2525", Sender: "billing@example.com"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	m.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		assert.Nil(t, a)
		return nil
	}

	err := m.Send(context.Background(), Message{To: "u1@example.com", Subject: "Welcome", HTMLBody: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.Equal(t, "billing@example.com", gotFrom)
	assert.Equal(t, []string{"u1@example.com"}, gotTo)
	assert.Contains(t, string(gotBody), "Subject: Welcome\r\n")
	assert.Contains(t, string(gotBody), "Content-Type: text/html")
	assert.Contains(t, string(gotBody), "<p>hi</p>")
}

func TestSMTPMailerErrors(t *testing.T) {
	unconfigured := NewSMTPMailer(config.MailConfig{})
	assert.ErrorIs(t, unconfigured.Send(context.Background(), Message{To: "a@b.c"}), ErrNotConfigured)

	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: "25"})
	assert.Error(t, m.Send(context.Background(), Message{}))

	boom := errors.New("connection refused")
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	assert.ErrorIs(t, m.Send(context.Background(), Message{To: "a@b.c"}), boom)
}

func TestSMTPMailerRejectsHeaderLineBreaks(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: "25"})
	calls := 0
	m.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return nil
	}

	tests := []struct {
		name string
		msg  Message
	}{
		{"subject", Message{To: "a@b.c", Subject: "Acme\r\nBcc: victim@evil.test"}},
		{"subject lf", Message{To: "a@b.c", Subject: "Acme\nBcc: victim@evil.test"}},
		{"recipient", Message{To: "a@b.c\r\nBcc: victim@evil.test", Subject: "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Send(context.Background(), tt.msg), ErrHeaderInjection)
		})
	}
	assert.Zero(t, calls)
}

func TestBuildMIMEEncodesSubject(t *testing.T) {
	raw, err := buildMIME("billing@example.com", Message{To: "u1@example.com", Subject: "Café Zürich is on Gold", HTMLBody: "<p>x</p>"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: =?utf-8?q?")
	assert.NotContains(t, string(raw), "Zürich")
}

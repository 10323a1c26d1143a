package config

import (
	"testing"
	"time"

	"github.com/ManuelReschke/fitsync/internal/pkg/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	env.Env = values
	t.Cleanup(func() { env.Env = nil })
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{})

	cfg := Load()
	assert.Equal(t, 15*time.Second, cfg.App.WebhookTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Stripe.Tolerance)
	assert.Equal(t, 5*time.Minute, cfg.Notifications.RenewalDelay)
	assert.Equal(t, "base", cfg.Notifications.DefaultPlanTier)
	assert.Equal(t, 30*24*time.Hour, cfg.Queue.WebhookEventRetention)
	assert.False(t, cfg.Mail.QueueEnabled)
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"PUBLIC_URL":            "https://app.example.com/",
		"STRIPE_WEBHOOK_SECRET": "whsec_test",
		"STRIPE_SECRET_KEY":     "sk_test",
		"WEBHOOK_TIMEOUT":       "3s",
		"MAIL_QUEUE_ENABLED":    "true",
		"CACHE_DB":              "2",
		"DB_USER":               "fit",
		"DB_PASSWORD":           "secret",
		"DB_NAME":               "fitsync",
	})

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://app.example.com", cfg.App.PublicURL)
	assert.Equal(t, "https://app.example.com/corporate/admin", cfg.CorporateAdminURL())
	assert.Equal(t, 3*time.Second, cfg.App.WebhookTimeout)
	assert.True(t, cfg.Mail.QueueEnabled)
	assert.Equal(t, 2, cfg.Cache.DB)
	assert.Equal(t, "fit:secret@tcp(127.0.0.1:3306)/fitsync?charset=utf8mb4&parseTime=True&loc=UTC", cfg.Database.MySQLDSN())
}

func TestValidate(t *testing.T) {
	withEnv(t, map[string]string{"ARCHIVE_ENABLED": "true"})

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
	assert.Contains(t, err.Error(), "S3_BUCKET_NAME")
}

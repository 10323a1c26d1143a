package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/fitsync/internal/pkg/env"
)

// Config is built once at startup and handed to every component that needs
// settings. Nothing below cmd/ reads the environment directly.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	Stripe        StripeConfig
	Mail          MailConfig
	Notifications NotificationConfig
	Queue         QueueConfig
	Archive       ArchiveConfig
}

type AppConfig struct {
	Env            string
	Host           string
	Port           string
	PublicURL      string
	WebhookTimeout time.Duration

	// MetricsUser and MetricsPassword guard /metrics with basic auth when both are set.
	MetricsUser     string
	MetricsPassword string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Tolerance is the maximum accepted age of a signed webhook timestamp.
	Tolerance time.Duration
}

type MailConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Sender       string
	QueueEnabled bool
}

type NotificationConfig struct {
	RenewalDelay       time.Duration
	DefaultPlanTier    string
	CorporateAdminPath string
}

type QueueConfig struct {
	Workers               int
	WebhookEventRetention time.Duration
	CleanupInterval       time.Duration
}

type ArchiveConfig struct {
	Enabled         bool
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string
}

// Load reads the configuration from the loaded .env file and the process
// environment.
func Load() Config {
	return Config{
		App: AppConfig{
			Env:            env.GetEnv("APP_ENV", "prod"),
			Host:           env.GetEnv("APP_HOST", "0.0.0.0"),
			Port:           env.GetEnv("APP_PORT", "4000"),
			PublicURL:      strings.TrimRight(env.GetEnv("PUBLIC_URL", "http://localhost:4000"), "/"),
			WebhookTimeout: env.GetEnvDuration("WEBHOOK_TIMEOUT", 15*time.Second),

			MetricsUser:     env.GetEnv("METRICS_USER", ""),
			MetricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", "3306"),
			User:     env.GetEnv("DB_USER", ""),
			Password: env.GetEnv("DB_PASSWORD", ""),
			Name:     env.GetEnv("DB_NAME", ""),
		},
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
			DB:       env.GetEnvInt("CACHE_DB", 0),
		},
		Stripe: StripeConfig{
			SecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
			Tolerance:     env.GetEnvDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
		},
		Mail: MailConfig{
			Host:         env.GetEnv("SMTP_HOST", ""),
			Port:         env.GetEnv("SMTP_PORT", "587"),
			Username:     env.GetEnv("SMTP_USERNAME", ""),
			Password:     env.GetEnv("SMTP_PASSWORD", ""),
			Sender:       env.GetEnv("SMTP_SENDER", ""),
			QueueEnabled: env.GetEnvBool("MAIL_QUEUE_ENABLED", false),
		},
		Notifications: NotificationConfig{
			RenewalDelay:       env.GetEnvDuration("RENEWAL_NOTIFICATION_DELAY", 5*time.Minute),
			DefaultPlanTier:    env.GetEnv("DEFAULT_PLAN_TIER", "base"),
			CorporateAdminPath: env.GetEnv("CORPORATE_ADMIN_PATH", "/corporate/admin"),
		},
		Queue: QueueConfig{
			Workers:               env.GetEnvInt("JOB_QUEUE_WORKERS", 2),
			WebhookEventRetention: env.GetEnvDuration("WEBHOOK_EVENT_RETENTION", 30*24*time.Hour),
			CleanupInterval:       env.GetEnvDuration("WEBHOOK_EVENT_CLEANUP_INTERVAL", time.Hour),
		},
		Archive: ArchiveConfig{
			Enabled:         env.GetEnvBool("ARCHIVE_ENABLED", false),
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          env.GetEnv("S3_REGION", "us-west-001"),
			BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		},
	}
}

// Validate reports settings the service cannot run without.
func (c Config) Validate() error {
	var errs []error
	if c.Stripe.WebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.Stripe.SecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY is required"))
	}
	if c.App.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("WEBHOOK_TIMEOUT must be positive"))
	}
	if c.Archive.Enabled {
		if c.Archive.AccessKeyID == "" {
			errs = append(errs, errors.New("S3_ACCESS_KEY_ID is required when the archive is enabled"))
		}
		if c.Archive.SecretAccessKey == "" {
			errs = append(errs, errors.New("S3_SECRET_ACCESS_KEY is required when the archive is enabled"))
		}
		if c.Archive.BucketName == "" {
			errs = append(errs, errors.New("S3_BUCKET_NAME is required when the archive is enabled"))
		}
	}
	return errors.Join(errs...)
}

func (c Config) IsDev() bool {
	return c.App.Env == "dev"
}

// ListenAddr is the address the HTTP server binds to.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.App.Host, c.App.Port)
}

// MySQLDSN builds the go-sql-driver DSN for GORM.
func (c DatabaseConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// CorporateAdminURL is the deep link sent to corporate admins.
func (c Config) CorporateAdminURL() string {
	path := c.Notifications.CorporateAdminPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.App.PublicURL + path
}

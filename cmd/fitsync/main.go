package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/ManuelReschke/fitsync/app/controllers"
	"github.com/ManuelReschke/fitsync/internal/pkg/archive"
	"github.com/ManuelReschke/fitsync/internal/pkg/billing"
	"github.com/ManuelReschke/fitsync/internal/pkg/cache"
	"github.com/ManuelReschke/fitsync/internal/pkg/config"
	"github.com/ManuelReschke/fitsync/internal/pkg/database"
	"github.com/ManuelReschke/fitsync/internal/pkg/env"
	"github.com/ManuelReschke/fitsync/internal/pkg/jobqueue"
	"github.com/ManuelReschke/fitsync/internal/pkg/mail"
	"github.com/ManuelReschke/fitsync/internal/pkg/metrics"
	"github.com/ManuelReschke/fitsync/internal/pkg/notify"
	"github.com/ManuelReschke/fitsync/internal/pkg/router"
)

func main() {
	if err := env.SetupEnvFile(); err != nil {
		log.Warnf("[Main] %v, using process environment only", err)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Main] Invalid configuration: %v", err)
	}

	db, err := database.Setup(cfg.Database, true, cfg.IsDev())
	if err != nil {
		log.Fatalf("[Main] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, manager := NewApplication(ctx, cfg, db)
	manager.Start()

	go func() {
		<-ctx.Done()
		log.Info("[Main] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.WebhookTimeout+5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Errorf("[Main] HTTP shutdown: %v", err)
		}
	}()

	if err := app.Listen(cfg.ListenAddr()); err != nil {
		log.Errorf("[Main] %v", err)
	}
	manager.Stop()
}

// NewApplication wires the webhook pipeline and returns the HTTP app plus the
// background manager the caller starts and stops.
func NewApplication(ctx context.Context, cfg config.Config, db *gorm.DB) (*fiber.App, *jobqueue.Manager) {
	checks := map[string]controllers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	smtpMailer := mail.NewSMTPMailer(cfg.Mail)
	var mailer mail.Mailer = smtpMailer

	var queue *jobqueue.Queue
	if cfg.Mail.QueueEnabled {
		client, err := cache.NewClient(cfg.Cache)
		if err != nil {
			log.Warnf("[Main] Job queue starts without a reachable cache: %v", err)
		}
		queue = jobqueue.NewQueue(client, cfg.Queue.Workers)
		queue.RegisterHandler(jobqueue.JobTypeSendEmail, jobqueue.SendEmailHandler(smtpMailer))
		mailer = jobqueue.NewQueuedMailer(queue)
		checks["cache"] = func(ctx context.Context) error { return cache.Ping(ctx, client) }
	}

	dispatcher := notify.NewDispatcher(notify.NewStore(db), mailer)
	webhookMetrics := metrics.NewWebhooks()

	svc := billing.NewServiceFromDB(cfg, db, dispatcher).WithRecorder(webhookMetrics)
	if cfg.Archive.Enabled {
		archiver, err := archive.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			log.Warnf("[Main] Webhook archive disabled: %v", err)
		} else {
			svc.WithArchiver(archiver)
		}
	}

	manager := jobqueue.NewManager(queue, cfg.Queue, billing.NewRepository(db))

	app := newFiberApp(router.Dependencies{
		Billing: controllers.NewBillingController(cfg, svc).WithRecorder(webhookMetrics),
		Health:  controllers.NewHealthController(checks),
		Metrics: webhookMetrics.Handler(),

		MetricsUser:     cfg.App.MetricsUser,
		MetricsPassword: cfg.App.MetricsPassword,
	})
	return app, manager
}

func newFiberApp(deps router.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "fitsync",
		BodyLimit: 1 << 20, // Stripe events are well below 1 MiB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, deps)
	return app
}

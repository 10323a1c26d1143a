package router

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/fitsync/app/controllers"
	"github.com/ManuelReschke/fitsync/internal/pkg/middleware"
)

// Router registers one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the handlers the routers mount.
type Dependencies struct {
	Billing *controllers.BillingController
	Health  *controllers.HealthController
	Metrics http.Handler

	MetricsUser     string
	MetricsPassword string
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	setup(app, NewWebhookRouter(deps.Billing), NewOpsRouter(deps.Health, deps.Metrics, middleware.OptionalBasicAuth(deps.MetricsUser, deps.MetricsPassword)))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

package router

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/ManuelReschke/fitsync/app/controllers"
)

// OpsRouter serves the health probe and the Prometheus scrape endpoint.
type OpsRouter struct {
	health      *controllers.HealthController
	metrics     http.Handler
	metricsAuth fiber.Handler
}

func (h OpsRouter) InstallRouter(app *fiber.App) {
	if h.health != nil {
		app.Get("/healthz", h.health.HandleHealth)
	}
	if h.metrics != nil {
		app.Get("/metrics", h.metricsAuth, adaptor.HTTPHandler(h.metrics))
	}
}

func NewOpsRouter(health *controllers.HealthController, metrics http.Handler, metricsAuth fiber.Handler) *OpsRouter {
	if metricsAuth == nil {
		metricsAuth = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &OpsRouter{health: health, metrics: metrics, metricsAuth: metricsAuth}
}

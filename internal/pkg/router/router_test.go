package router

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/fitsync/app/controllers"
	"github.com/ManuelReschke/fitsync/internal/pkg/billing"
	"github.com/ManuelReschke/fitsync/internal/pkg/config"
	"github.com/ManuelReschke/fitsync/internal/pkg/metrics"
)

type nopProcessor struct{}

func (nopProcessor) ProcessWebhook(context.Context, billing.Envelope, []byte) (billing.Result, error) {
	return billing.Result{Outcome: billing.OutcomeProcessed}, nil
}

func newTestApp() *fiber.App {
	cfg := config.Config{Stripe: config.StripeConfig{WebhookSecret: "whsec_test"}}
	app := fiber.New()
	InstallRouter(app, Dependencies{
		Billing: controllers.NewBillingController(cfg, nopProcessor{}),
		Health:  controllers.NewHealthController(nil),
		Metrics: metrics.NewWebhooks().Handler(),
	})
	return app
}

func TestInstallRouter_Routes(t *testing.T) {
	app := newTestApp()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/webhooks/stripe", fiber.StatusBadRequest},
		{"GET", "/healthz", fiber.StatusOK},
		{"GET", "/metrics", fiber.StatusOK},
		{"GET", "/nope", fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}")))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestMetricsRoute_ServesPrometheusText(t *testing.T) {
	app := newTestApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetricsRoute_BasicAuth(t *testing.T) {
	cfg := config.Config{Stripe: config.StripeConfig{WebhookSecret: "whsec_test"}}
	app := fiber.New()
	InstallRouter(app, Dependencies{
		Billing:         controllers.NewBillingController(cfg, nopProcessor{}),
		Metrics:         metrics.NewWebhooks().Handler(),
		MetricsUser:     "prom",
		MetricsPassword: "secret",
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.SetBasicAuth("prom", "secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// health is not mounted without a controller
	resp, err = app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fitsync"

// Webhooks holds the webhook outcome series on a private registry.
type Webhooks struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewWebhooks registers the webhook series plus the Go runtime and process
// collectors on a fresh registry.
func NewWebhooks() *Webhooks {
	reg := prometheus.NewRegistry()
	w := &Webhooks{
		registry: reg,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook events handled, by event type and outcome.",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Time spent handling one webhook event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	reg.MustRegister(
		w.events,
		w.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return w
}

// ObserveWebhook records one handled event.
func (w *Webhooks) ObserveWebhook(eventType, outcome string, elapsed time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	w.events.WithLabelValues(eventType, outcome).Inc()
	w.duration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (w *Webhooks) Registry() *prometheus.Registry {
	return w.registry
}

// Handler serves the registry in the Prometheus text format.
func (w *Webhooks) Handler() http.Handler {
	return promhttp.HandlerFor(w.registry, promhttp.HandlerOpts{})
}

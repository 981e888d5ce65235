// Package metrics holds the bridge's Prometheus collectors on a dedicated registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wabridge_http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "wabridge_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "route"},
	)

	// WebhookDeliveries counts single-attempt delivery outcomes by event and status.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wabridge_webhook_deliveries_total", Help: "Webhook deliveries by event and status."},
		[]string{"event", "status"},
	)
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "wabridge_webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 30000}},
		[]string{"event"},
	)
	EventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wabridge_events_dispatched_total", Help: "Client events dispatched to subscribers."},
		[]string{"event"},
	)

	InitAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wabridge_init_attempts_total", Help: "Client initialization attempts by outcome."},
		[]string{"outcome"},
	)
	Reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wabridge_reconnects_scheduled_total", Help: "Automatic reconnects scheduled after a disconnect."},
	)
	// Phase is 1 for the current connection phase and 0 for the others.
	Phase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "wabridge_connection_phase", Help: "Current connection lifecycle phase."},
		[]string{"phase"},
	)
	Subscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "wabridge_subscriptions", Help: "Registered webhook subscriptions."},
	)
)

var regOnce sync.Once

// RegisterDefault registers the collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		Registry.MustRegister(EventsDispatched)
		Registry.MustRegister(InitAttempts)
		Registry.MustRegister(Reconnects)
		Registry.MustRegister(Phase)
		Registry.MustRegister(Subscriptions)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// SetPhase marks phase as the only active one among phases.
func SetPhase(phase string, phases []string) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		Phase.WithLabelValues(p).Set(v)
	}
}

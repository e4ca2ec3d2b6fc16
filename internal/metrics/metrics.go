package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Checkouts      *prometheus.CounterVec
	PaymentRetries prometheus.Counter
	WebhookEvents  *prometheus.CounterVec
}

// New registers the marketplace counters. Call once per process; services
// accept a nil *Metrics and skip recording.
func New() *Metrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chefmarket",
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chefmarket",
		Name:      "payment_retries_total",
		Help:      "Payment status re-poll attempts.",
	})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chefmarket",
		Name:      "webhook_events_total",
		Help:      "Gateway webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	prometheus.MustRegister(checkouts, retries, webhooks)
	return &Metrics{Checkouts: checkouts, PaymentRetries: retries, WebhookEvents: webhooks}
}

func (m *Metrics) IncCheckout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPaymentRetry() {
	if m == nil {
		return
	}
	m.PaymentRetries.Inc()
}

func (m *Metrics) IncWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide counters. A nil *Metrics is safe to use;
// every method no-ops.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	TransitionDenied  *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	WebhookDeliveries *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteflow_transitions_total",
			Help: "Completed status transitions by entity kind and action.",
		}, []string{"kind", "action"}),
		TransitionDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteflow_transitions_denied_total",
			Help: "Rejected transition attempts by entity kind and reason.",
		}, []string{"kind", "reason"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteflow_http_requests_total",
			Help: "HTTP requests by method, path template and status code.",
		}, []string{"method", "path", "code"}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wasteflow_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Transition(kind, action string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(kind, action).Inc()
}

func (m *Metrics) Denied(kind, reason string) {
	if m == nil {
		return
	}
	m.TransitionDenied.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) Request(method, path, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, code).Inc()
}

func (m *Metrics) Webhook(outcome string) {
	if m == nil {
		return
	}
	m.WebhookDeliveries.WithLabelValues(outcome).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты проверки ключа (метка outcome)
const (
	OutcomeValid        = "valid"
	OutcomeNotSold      = "not_sold"
	OutcomeBadRequest   = "bad_request"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

// Metrics holds the Prometheus collectors of the verification endpoint.
type Metrics struct {
	Verifications   *prometheus.CounterVec
	AuthFailures    prometheus.Counter
	EndpointLatency *prometheus.HistogramVec
}

// New creates the collectors and registers them in reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardverify_verifications_total",
			Help: "Total number of card key verification requests by outcome",
		}, []string{"method", "outcome"}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardverify_auth_failures_total",
			Help: "Total number of rejected credentials",
		}),
		EndpointLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardverify_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
	}
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bookstore"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// NewServerMetrics enregistre les compteurs HTTP sur reg (prometheus.DefaultRegisterer en production)
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "api",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// PaymentMetrics compte les issues de paiement par fournisseur
type PaymentMetrics struct {
	Outcomes *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "outcomes_total",
		Help:      "Payment transitions by provider and outcome.",
	}, []string{"provider", "outcome"})

	reg.MustRegister(outcomes)
	return &PaymentMetrics{Outcomes: outcomes}
}

// Observe tolère un receveur nil (métriques désactivées)
func (m *PaymentMetrics) Observe(provider, outcome string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(provider, outcome).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

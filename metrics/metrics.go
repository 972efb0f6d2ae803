package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	CheckoutSessions *prometheus.CounterVec
	Jobs             *prometheus.CounterVec
	StorageErrors    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "washclub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "washclub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		CheckoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "washclub",
			Name:      "checkout_sessions_total",
			Help:      "Checkout session assembly attempts by outcome and failing stage.",
		}, []string{"outcome", "stage"}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "washclub",
			Name:      "jobs_processed_total",
			Help:      "Background jobs by type and result.",
		}, []string{"type", "result"}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "washclub",
			Name:      "checkout_storage_errors_total",
			Help:      "Non-blocking checkout storage failures by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.CheckoutSessions, m.Jobs, m.StorageErrors)
	return m
}

// CheckoutSucceeded records a created checkout session.
func (m *Metrics) CheckoutSucceeded() {
	m.CheckoutSessions.WithLabelValues("success", "").Inc()
}

// CheckoutFailed records a failed assembly at stage.
func (m *Metrics) CheckoutFailed(stage string) {
	m.CheckoutSessions.WithLabelValues("failure", stage).Inc()
}

func (m *Metrics) JobDone(jobType string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Jobs.WithLabelValues(jobType, result).Inc()
}

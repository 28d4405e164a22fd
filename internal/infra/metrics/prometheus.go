package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for backend requests.
const (
	OutcomeSuccess   = "success"
	OutcomeServer    = "server_error"
	OutcomeTransport = "transport_error"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Backend requests
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Audio capture
	MicrophoneOpens *prometheus.CounterVec
	CapturedBytes   prometheus.Counter
	CapturedChunks  prometheus.Counter
}

// New creates the collectors on a private registry so several instances
// can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "easyquery_backend_requests_total",
			Help: "Backend requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "easyquery_backend_request_duration_seconds",
			Help:    "Backend request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint"}),
		MicrophoneOpens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "easyquery_microphone_opens_total",
			Help: "Microphone open attempts by result",
		}, []string{"result"}),
		CapturedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "easyquery_captured_bytes_total",
			Help: "Audio bytes received from the microphone",
		}),
		CapturedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "easyquery_captured_chunks_total",
			Help: "Audio chunks received from the microphone",
		}),
	}
}

func (m *Metrics) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

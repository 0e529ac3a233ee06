// AngelaMos | 2026
// metrics.go

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors shared across the API. Each
// instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPInFlight       prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	Payments           *prometheus.CounterVec
	PaymentAmount      *prometheus.CounterVec
	Connections        *prometheus.CounterVec
	AssistantRequests  *prometheus.CounterVec
	AssistantLatency   *prometheus.HistogramVec
	NotificationEvents *prometheus.CounterVec
	JobRuns            *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "payments_total",
			Help:      "Payments by provider and resulting status.",
		}, []string{"provider", "status"}),
		PaymentAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "captured_cents_total",
			Help:      "Captured payment volume in minor currency units.",
		}, []string{"provider", "currency"}),
		Connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "events_total",
			Help:      "Platform connection events by platform and action.",
		}, []string{"platform", "action"}),
		AssistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Assistant completion requests by outcome.",
		}, []string{"status"}),
		AssistantLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "assistant",
			Name:      "request_duration_seconds",
			Help:      "Latency of assistant completion requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		NotificationEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "events_total",
			Help:      "Notification events by transport and outcome.",
		}, []string{"transport", "outcome"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPInFlight,
		m.HTTPRequests,
		m.HTTPDuration,
		m.Payments,
		m.PaymentAmount,
		m.Connections,
		m.AssistantRequests,
		m.AssistantLatency,
		m.NotificationEvents,
		m.JobRuns,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(
	method, route string,
	status int,
	elapsed time.Duration,
) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) PaymentRecorded(provider, status string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) PaymentCaptured(provider, currency string, cents int64) {
	if m == nil {
		return
	}
	m.PaymentAmount.WithLabelValues(provider, currency).Add(float64(cents))
}

func (m *Metrics) ConnectionEvent(platform, action string) {
	if m == nil {
		return
	}
	m.Connections.WithLabelValues(platform, action).Inc()
}

func (m *Metrics) AssistantCall(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AssistantRequests.WithLabelValues(status).Inc()
	m.AssistantLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *Metrics) NotificationEvent(transport, outcome string) {
	if m == nil {
		return
	}
	m.NotificationEvents.WithLabelValues(transport, outcome).Inc()
}

func (m *Metrics) JobRun(job, outcome string) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for TabGate.
// Uses a custom registry, no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Downstream remote-service metrics.
	DownstreamRequestsTotal   *prometheus.CounterVec
	DownstreamRequestDuration *prometheus.HistogramVec

	// Authentication metrics.
	AuthResolutionsTotal *prometheus.CounterVec
	RegistrationsTotal   *prometheus.CounterVec

	// Model lifecycle metrics.
	ModelsTrainedTotal *prometheus.CounterVec
	PredictionsTotal   *prometheus.CounterVec

	// Rate limiting metrics.
	RateLimitedTotal *prometheus.CounterVec

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		DownstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabgate",
			Subsystem: "downstream",
			Name:      "requests_total",
			Help:      "Total remote tabular-ML service requests.",
		}, []string{"operation", "status"}),

		DownstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tabgate",
			Subsystem: "downstream",
			Name:      "request_duration_seconds",
			Help:      "Remote tabular-ML service request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation"}),

		AuthResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabgate",
			Subsystem: "auth",
			Name:      "resolutions_total",
			Help:      "Total API key resolution attempts.",
		}, []string{"result"}),

		RegistrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabgate",
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Total account registration attempts.",
		}, []string{"result"}),

		ModelsTrainedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabgate",
			Subsystem: "models",
			Name:      "trained_total",
			Help:      "Total model training requests.",
		}, []string{"status"}),

		PredictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabgate",
			Subsystem: "models",
			Name:      "predictions_total",
			Help:      "Total prediction requests.",
		}, []string{"status"}),

		RateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabgate",
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Total requests rejected by the rate limiter.",
		}, []string{"path"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabgate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tabgate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tabgate",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	// Register all collectors.
	reg.MustRegister(
		m.DownstreamRequestsTotal,
		m.DownstreamRequestDuration,
		m.AuthResolutionsTotal,
		m.RegistrationsTotal,
		m.ModelsTrainedTotal,
		m.PredictionsTotal,
		m.RateLimitedTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docextract"

// Metrics owns a private registry with the HTTP and extraction collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	extractionsTotal *prometheus.CounterVec
	modelCallsTotal  *prometheus.CounterVec
	modelDuration    *prometheus.HistogramVec
	uploadBytes      prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
		extractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "extraction",
				Name:      "requests_total",
				Help:      "Extraction requests by document type and outcome kind.",
			},
			[]string{"doc_type", "outcome"},
		),
		modelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "calls_total",
				Help:      "Outbound document-understanding calls by provider and status.",
			},
			[]string{"provider", "status"},
		),
		modelDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "call_duration_seconds",
				Help:      "Outbound document-understanding call duration in seconds.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider"},
		),
		uploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "extraction",
				Name:      "upload_bytes",
				Help:      "Size of accepted image uploads.",
				Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 7),
			},
		),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.extractionsTotal,
		m.modelCallsTotal,
		m.modelDuration,
		m.uploadBytes,
	)
	return m
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestStarted increments the in-flight gauge and returns the matching completion callback.
func (m *Metrics) RequestStarted() func(method, path string, status int) {
	start := time.Now()
	m.requestInFlight.Inc()
	return func(method, path string, status int) {
		m.requestInFlight.Dec()
		m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveExtraction records the outcome of one extraction request.
func (m *Metrics) ObserveExtraction(docType, outcome string) {
	m.extractionsTotal.WithLabelValues(docType, outcome).Inc()
}

// ObserveModelCall records one outbound model call.
func (m *Metrics) ObserveModelCall(provider string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelCallsTotal.WithLabelValues(provider, status).Inc()
	m.modelDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveUpload records the size of an accepted upload.
func (m *Metrics) ObserveUpload(size int) {
	m.uploadBytes.Observe(float64(size))
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Provider metrics
	ProviderInvocationsTotal *prometheus.CounterVec
	ProviderErrorsTotal      *prometheus.CounterVec
	ProviderTokensTotal      *prometheus.CounterVec
	ProviderLatency          *prometheus.HistogramVec

	// RAG metrics
	TextCacheHitsTotal   prometheus.Counter
	TextCacheMissesTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connective_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connective_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		StorageOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connective_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StorageOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connective_storage_operation_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		ProviderInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connective_provider_invocations_total",
				Help: "Total number of LLM provider invocations",
			},
			[]string{"provider", "model"},
		),
		ProviderErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connective_provider_errors_total",
				Help: "Total number of LLM provider errors",
			},
			[]string{"provider", "model"},
		),
		ProviderTokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connective_provider_tokens_total",
				Help: "Total tokens reported by LLM providers",
			},
			[]string{"provider", "model", "direction"},
		),
		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connective_provider_latency_seconds",
				Help:    "LLM provider invocation latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider", "model"},
		),
		TextCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "connective_text_cache_hits_total",
				Help: "Extracted-text cache hits",
			},
		),
		TextCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "connective_text_cache_misses_total",
				Help: "Extracted-text cache misses",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StorageOperationsTotal,
		m.StorageOperationDuration,
		m.ProviderInvocationsTotal,
		m.ProviderErrorsTotal,
		m.ProviderTokensTotal,
		m.ProviderLatency,
		m.TextCacheHitsTotal,
		m.TextCacheMissesTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordStorageOperation records a storage operation outcome
func (m *Metrics) RecordStorageOperation(operation, backend string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordProviderInvocation records one provider invocation with its token usage
func (m *Metrics) RecordProviderInvocation(provider, model string, inputTokens, outputTokens int, err error, duration time.Duration) {
	m.ProviderInvocationsTotal.WithLabelValues(provider, model).Inc()
	m.ProviderLatency.WithLabelValues(provider, model).Observe(duration.Seconds())
	if err != nil {
		m.ProviderErrorsTotal.WithLabelValues(provider, model).Inc()
		return
	}
	if inputTokens > 0 {
		m.ProviderTokensTotal.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.ProviderTokensTotal.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// HTTPMiddleware instruments an HTTP handler with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

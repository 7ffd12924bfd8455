package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Generation pipeline metrics
	generationRequests *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	cacheOperations    *prometheus.CounterVec
	sanitizerDropped   *prometheus.CounterVec
	syncTasks          *prometheus.CounterVec
}

// NewRegistry returns a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetricsCollector registers all collectors on reg
func NewMetricsCollector(reg *prometheus.Registry, logger *zap.Logger) *MetricsCollector {
	factory := promauto.With(reg)

	return &MetricsCollector{
		logger:   logger,
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noats_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "noats_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		generationRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noats_generation_requests_total",
				Help: "Model generation calls by kind, model and outcome",
			},
			[]string{"kind", "model", "status"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "noats_generation_duration_seconds",
				Help:    "Model generation latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"kind", "model"},
		),
		cacheOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noats_generation_cache_operations_total",
				Help: "Generation cache lookups and writes",
			},
			[]string{"operation", "status"},
		),
		sanitizerDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noats_sanitizer_dropped_total",
				Help: "Model-suggested product references dropped because they are not catalog products",
			},
			[]string{"kind"},
		),
		syncTasks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "noats_sync_tasks_total",
				Help: "Detached tasks by name and outcome",
			},
			[]string{"task", "outcome"},
		),
	}
}

// HTTPMiddleware creates a Gin middleware for HTTP metrics collection
func (m *MetricsCollector) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// GenerationRequest records one provider call
func (m *MetricsCollector) GenerationRequest(kind, model, status string, duration time.Duration) {
	m.generationRequests.WithLabelValues(kind, model, status).Inc()
	m.generationDuration.WithLabelValues(kind, model).Observe(duration.Seconds())
}

// CacheOperation records a generation cache access
func (m *MetricsCollector) CacheOperation(operation, status string) {
	m.cacheOperations.WithLabelValues(operation, status).Inc()
}

// SanitizerDropped counts discarded non-catalog references
func (m *MetricsCollector) SanitizerDropped(kind string, n int) {
	m.sanitizerDropped.WithLabelValues(kind).Add(float64(n))
}

// SyncTask records the outcome of a detached task
func (m *MetricsCollector) SyncTask(task, outcome string) {
	m.syncTasks.WithLabelValues(task, outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

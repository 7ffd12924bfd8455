package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector(NewRegistry(), zaptest.NewLogger(t))

	m.GenerationRequest("plan", "gpt-4.1-mini", "success", 2*time.Second)
	m.SanitizerDropped("plan", 3)
	m.SyncTask("sync_shopify", "failed")
	m.CacheOperation("get", "hit")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.generationRequests.WithLabelValues("plan", "gpt-4.1-mini", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sanitizerDropped.WithLabelValues("plan")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncTasks.WithLabelValues("sync_shopify", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheOperations.WithLabelValues("get", "hit")))
}

func TestMetricsCollector_HTTPMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetricsCollector(NewRegistry(), zaptest.NewLogger(t))

	router := gin.New()
	router.Use(m.HTTPMiddleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/health", "200")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "noats_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestTracingProvider_Disabled(t *testing.T) {
	tp, err := NewTracingProvider(TracingConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, span := tp.StartAISpan(context.Background(), "gpt-4.1-mini", "plan")
	tp.RecordError(ctx, assert.AnError)
	span.End()

	assert.Equal(t, "", TraceIDFromContext(ctx))
	assert.Equal(t, http.DefaultTransport, tp.Transport(nil))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/dailynoats/planner/internal/infrastructure/config"
	apperrors "github.com/dailynoats/planner/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Environment = "test"
	cfg.Server.EnableCompression = true
	cfg.RateLimit.Enable = true
	cfg.RateLimit.RequestsPerMin = 60
	cfg.RateLimit.BurstSize = 2
	cfg.Monitoring.HealthCheckPath = "/health"
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, handlers ...gin.HandlerFunc) (*gin.Engine, *Middleware) {
	t.Helper()
	m := New(cfg, zaptest.NewLogger(t), nil)
	r := gin.New()
	r.Use(m.RequestID(), m.Logger(), m.Recovery(), m.Security())
	r.Use(handlers...)
	return r, m
}

func decodeError(t *testing.T, body []byte) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestRequestID(t *testing.T) {
	r, _ := newEngine(t, testConfig())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestErrorHandler_UniformBody(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, zaptest.NewLogger(t), nil)
	r := gin.New()
	r.Use(m.RequestID(), m.ErrorHandler())
	r.GET("/format", func(c *gin.Context) {
		_ = c.Error(apperrors.NewUpstreamFormatError(errors.New(`{"raw":"model text"}`)))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("database exploded"))
	})
	r.GET("/invalid", func(c *gin.Context) {
		_ = c.Error(apperrors.NewInvalidInputError("Please provide a goal."))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/format", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "model text")
	resp := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "Server error", resp.Error)
	assert.Equal(t, w.Header().Get(RequestIDHeader), resp.RequestID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "exploded")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/invalid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp = decodeError(t, w.Body.Bytes())
	assert.Equal(t, "Invalid input", resp.Error)
	assert.Equal(t, "Please provide a goal.", resp.Message)
}

func TestRecovery(t *testing.T) {
	r, _ := newEngine(t, testConfig())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server error", decodeError(t, w.Body.Bytes()).Error)
}

func TestRateLimit_PerIP(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, zaptest.NewLogger(t), nil)
	r := gin.New()
	r.Use(m.RateLimit())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)

	limited := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))
	assert.Equal(t, "Rate limit exceeded", decodeError(t, limited.Body.Bytes()).Error)

	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)
}

func TestIPLimiter_SweepsIdleVisitors(t *testing.T) {
	l := newIPLimiter(60, 1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("c"))
	assert.Equal(t, 1, l.size())
}

func TestBodyLimit(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, zaptest.NewLogger(t), nil)
	r := gin.New()
	r.Use(m.ErrorHandler(), m.BodyLimit(16))
	r.POST("/echo", func(c *gin.Context) {
		var payload map[string]string
		if err := c.ShouldBindJSON(&payload); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, payload)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"b"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w.Body.Bytes()).Message, "too large")

	// chunked body without a Content-Length
	req := httptest.NewRequest(http.MethodPost, "/echo", io.MultiReader(strings.NewReader(`{"a":"`), strings.NewReader(strings.Repeat("y", 64)+`"}`)))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompression(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, zaptest.NewLogger(t), nil)
	r := gin.New()
	r.Use(m.Compression())
	payload := strings.Repeat("oats ", 200)
	r.GET("/json", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"text": payload}) })
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/binary", func(c *gin.Context) { c.Data(http.StatusOK, "image/png", []byte{1, 2, 3}) })

	get := func(path, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if accept != "" {
			req.Header.Set("Accept-Encoding", accept)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("brotli preferred", func(t *testing.T) {
		w := get("/json", "gzip, br")
		require.Equal(t, "br", w.Header().Get("Content-Encoding"))
		body, err := io.ReadAll(brotli.NewReader(w.Body))
		require.NoError(t, err)
		assert.Contains(t, string(body), payload)
	})

	t.Run("gzip", func(t *testing.T) {
		w := get("/json", "gzip")
		require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Contains(t, string(body), payload)
	})

	t.Run("identity", func(t *testing.T) {
		w := get("/json", "")
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Contains(t, w.Body.String(), payload)
	})

	t.Run("no body and binary pass through", func(t *testing.T) {
		w := get("/empty", "br")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Zero(t, w.Body.Len())

		w = get("/binary", "br")
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, []byte{1, 2, 3}, w.Body.Bytes())
	})
}

func TestNegotiateEncoding(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"gzip":               "gzip",
		"gzip, deflate, br":  "br",
		"br;q=0, gzip;q=0.5": "gzip",
		"identity":           "",
		"BR":                 "br",
	}
	for header, want := range cases {
		assert.Equal(t, want, negotiateEncoding(header), header)
	}
}

// Package server provides the HTTP server for the planner API
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dailynoats/planner/internal/infrastructure/config"
	"github.com/dailynoats/planner/internal/infrastructure/http/handlers"
	"github.com/dailynoats/planner/internal/infrastructure/http/middleware"
	"github.com/dailynoats/planner/internal/infrastructure/monitoring"
	apperrors "github.com/dailynoats/planner/pkg/errors"
	"github.com/dailynoats/planner/pkg/healthcheck"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server represents the HTTP server
type Server struct {
	config *config.Config
	logger *zap.Logger
	engine *gin.Engine
	server *http.Server
}

// Dependencies are the collaborators mounted on the router. Metrics may be nil.
type Dependencies struct {
	Config     *config.Config
	Logger     *zap.Logger
	Middleware *middleware.Middleware
	Planner    *handlers.PlannerHandler
	Health     *healthcheck.HealthCheck
	Metrics    *monitoring.MetricsCollector
}

// NewServer creates a new HTTP server instance
func NewServer(deps Dependencies) (*Server, error) {
	cfg := deps.Config
	s := &Server{
		config: cfg,
		logger: deps.Logger.Named("http-server"),
	}

	engine, err := s.setupRouter(deps)
	if err != nil {
		return nil, err
	}
	s.engine = engine

	var handler http.Handler = engine
	if cfg.Server.EnableHTTP2 {
		// cleartext HTTP/2 for deployments behind a TLS terminating proxy
		handler = h2c.NewHandler(engine, &http2.Server{IdleTimeout: cfg.Server.IdleTimeout})
	}

	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	return s, nil
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	m := deps.Middleware

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}

	// Global middleware
	r.Use(m.RequestID(), m.Logger(), m.Recovery(), m.Security())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.HTTPMiddleware())
	}
	r.Use(m.Tracing(), cors.New(corsConfig(cfg)), m.Compression())

	// Probes
	r.GET(cfg.Monitoring.HealthCheckPath, deps.Health.LivenessHandler())
	r.GET(cfg.Monitoring.ReadinessPath, deps.Health.ReadinessHandler())
	if deps.Metrics != nil && cfg.Monitoring.EnableMetrics {
		r.GET(cfg.Monitoring.MetricsPath, gin.WrapH(deps.Metrics.Handler()))
	}

	// API routes
	api := r.Group("/api", m.RateLimit(), m.BodyLimit(cfg.Server.MaxBodyBytes), m.ErrorHandler())
	deps.Planner.RegisterRoutes(api)

	r.NoRoute(func(c *gin.Context) {
		appErr := apperrors.NewNotFoundError("Route")
		c.JSON(appErr.StatusCode(), apperrors.ToErrorResponse(appErr, middleware.GetRequestID(c)))
	})

	return r, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = cfg.Server.AllowedOrigins
	if len(c.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
	}
	return c
}

// Handler exposes the root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server and blocks until it stops.
// A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.server.Addr),
		zap.String("environment", s.config.App.Environment),
		zap.Bool("h2c", s.config.Server.EnableHTTP2),
	)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

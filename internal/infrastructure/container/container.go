// Package container wires the planner with Uber FX
package container

import (
	"context"
	"fmt"
	"time"

	app "github.com/dailynoats/planner/internal/application/planner"
	"github.com/dailynoats/planner/internal/domain/catalog"
	"github.com/dailynoats/planner/internal/infrastructure/ai/openai"
	"github.com/dailynoats/planner/internal/infrastructure/background"
	"github.com/dailynoats/planner/internal/infrastructure/cache"
	"github.com/dailynoats/planner/internal/infrastructure/config"
	"github.com/dailynoats/planner/internal/infrastructure/http/handlers"
	"github.com/dailynoats/planner/internal/infrastructure/http/middleware"
	"github.com/dailynoats/planner/internal/infrastructure/http/server"
	"github.com/dailynoats/planner/internal/infrastructure/monitoring"
	gormRepo "github.com/dailynoats/planner/internal/infrastructure/persistence/gorm"
	"github.com/dailynoats/planner/internal/infrastructure/sync/mailerlite"
	"github.com/dailynoats/planner/internal/infrastructure/sync/shopify"
	"github.com/dailynoats/planner/internal/infrastructure/urlfetch"
	"github.com/dailynoats/planner/internal/ports/inbound"
	"github.com/dailynoats/planner/internal/ports/outbound"
	"github.com/dailynoats/planner/pkg/healthcheck"
	"github.com/dailynoats/planner/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides all dependency injection modules. The caller supplies
// the loaded *config.Config.
var Module = fx.Options(
	LoggerModule,
	MonitoringModule,
	CatalogModule,
	CacheModule,
	AIModule,
	SyncModule,
	ArchiveModule,
	ServiceModule,
	HTTPModule,
	LifecycleModule,
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
			Service:     cfg.App.Name,
		})
	},
)

// MonitoringModule provides metrics and tracing
var MonitoringModule = fx.Provide(
	func(log *zap.Logger) *monitoring.MetricsCollector {
		return monitoring.NewMetricsCollector(monitoring.NewRegistry(), log)
	},
	func(cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		return monitoring.NewTracingProvider(monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			Insecure:       cfg.Monitoring.OTLPInsecure,
			SamplingRate:   cfg.Monitoring.SamplingRate,
			Enabled:        cfg.Monitoring.EnableTracing,
		}, log)
	},
)

// CatalogModule provides the product catalog
var CatalogModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (*catalog.Catalog, error) {
		if cfg.Catalog.Path == "" {
			return catalog.Default()
		}
		c, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		log.Info("Loaded catalog override", zap.String("path", cfg.Catalog.Path), zap.Int("products", c.Len()))
		return c, nil
	},
)

// cacheBackend carries the response cache and the optional Redis client
type cacheBackend struct {
	repo   outbound.CacheRepository
	redis  *redis.Client
	memory *cache.MemoryRepository
}

// CacheModule provides the generation cache backend
var CacheModule = fx.Provide(newCacheBackend)

func newCacheBackend(cfg *config.Config, log *zap.Logger) *cacheBackend {
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(context.Background(), cfg.Redis.URL)
		if err == nil {
			log.Info("Using Redis generation cache")
			return &cacheBackend{
				repo:  cache.NewRedisRepository(client, cfg.Redis.KeyPrefix, log),
				redis: client,
			}
		}
		log.Warn("Redis unavailable, falling back to in-process cache", zap.Error(err))
	}

	mem := cache.NewMemoryRepository(time.Minute)
	return &cacheBackend{repo: mem, memory: mem}
}

// AIModule provides the generation client and its cache decorator
var AIModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger, metrics *monitoring.MetricsCollector, tracer *monitoring.TracingProvider) *openai.Client {
		return openai.NewClient(openai.Config{
			APIKey:      cfg.AI.OpenAIKey,
			BaseURL:     cfg.AI.BaseURL,
			TextModel:   cfg.AI.TextModel,
			VisionModel: cfg.AI.VisionModel,
			Timeout:     cfg.AI.Timeout,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
		}, log, openai.WithMetrics(metrics), openai.WithTracing(tracer))
	},
	func(cfg *config.Config, client *openai.Client, backend *cacheBackend, metrics *monitoring.MetricsCollector, log *zap.Logger) outbound.Generator {
		if !cfg.AI.EnableCache {
			return client
		}
		return cache.NewCachingGenerator(client, backend.repo, cfg.AI.CacheTTL, cfg.AI.TextModel, metrics, log)
	},
	func(client *openai.Client) outbound.TextExtractor {
		return client
	},
	func(cfg *config.Config, tracer *monitoring.TracingProvider, log *zap.Logger) outbound.RecipeFetcher {
		return urlfetch.NewFetcher(urlfetch.Config{
			Timeout:              cfg.RecipeFetch.Timeout,
			MaxBytes:             cfg.RecipeFetch.MaxBytes,
			AllowPrivateNetworks: cfg.RecipeFetch.AllowPrivateNetworks,
		}, tracer.Transport, log)
	},
)

// SyncModule provides the task runner and the outbound sync targets
var SyncModule = fx.Provide(
	func(cfg *config.Config, metrics *monitoring.MetricsCollector, log *zap.Logger) *background.Runner {
		return background.NewRunner(background.Config{
			Workers:     cfg.Sync.Workers,
			QueueSize:   cfg.Sync.QueueSize,
			TaskTimeout: cfg.Sync.TaskTimeout,
		}, metrics, log)
	},
	func(cfg *config.Config, tracer *monitoring.TracingProvider, log *zap.Logger) []outbound.PlanSyncer {
		transport := tracer.Transport(nil)
		return []outbound.PlanSyncer{
			shopify.NewClient(shopify.Config{
				Store:       cfg.Shopify.Store,
				AccessToken: cfg.Shopify.AccessToken,
				APIVersion:  cfg.Shopify.APIVersion,
				Timeout:     cfg.Shopify.Timeout,
			}, transport, log),
			mailerlite.NewClient(mailerlite.Config{
				APIKey:  cfg.MailerLite.APIKey,
				GroupID: cfg.MailerLite.GroupID,
				BaseURL: cfg.MailerLite.BaseURL,
				Timeout: cfg.MailerLite.Timeout,
			}, transport, log),
		}
	},
)

// planArchive is nil when archiving is disabled
type planArchive struct {
	repo *gormRepo.PlanArchive
}

// ArchiveModule provides the optional plan archive
var ArchiveModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (*planArchive, error) {
		if !cfg.Archive.Enabled {
			return &planArchive{}, nil
		}
		db, err := gormRepo.Open(context.Background(), gormRepo.DatabaseConfig{
			Driver:             cfg.Archive.Driver,
			DSN:                cfg.Archive.DSN,
			MaxOpenConns:       cfg.Archive.MaxOpenConns,
			MaxIdleConns:       cfg.Archive.MaxIdleConns,
			ConnMaxLifetime:    cfg.Archive.ConnMaxLifetime,
			SlowQueryThreshold: cfg.Archive.SlowQueryThreshold,
			LogLevel:           cfg.Archive.LogLevel,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open plan archive: %w", err)
		}
		return &planArchive{repo: gormRepo.NewPlanArchive(db)}, nil
	},
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	func(
		cfg *config.Config,
		cat *catalog.Catalog,
		generator outbound.Generator,
		extractor outbound.TextExtractor,
		fetcher outbound.RecipeFetcher,
		syncers []outbound.PlanSyncer,
		runner *background.Runner,
		archive *planArchive,
		metrics *monitoring.MetricsCollector,
		log *zap.Logger,
	) inbound.PlannerService {
		deps := app.Dependencies{
			Catalog:       cat,
			Generator:     generator,
			Extractor:     extractor,
			Fetcher:       fetcher,
			Syncers:       syncers,
			Runner:        runner,
			Metrics:       metrics,
			TransformLink: cfg.Links.TransformURL,
			Logger:        log,
		}
		if archive.repo != nil {
			deps.Archive = archive.repo
		}
		return app.NewService(deps)
	},
)

// HTTPModule provides the HTTP server and handlers
var HTTPModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger, tracer *monitoring.TracingProvider) *middleware.Middleware {
		return middleware.New(cfg, log, tracer.Tracer())
	},
	handlers.NewPlannerHandler,
	newHealthCheck,
	func(
		cfg *config.Config,
		log *zap.Logger,
		mw *middleware.Middleware,
		h *handlers.PlannerHandler,
		health *healthcheck.HealthCheck,
		metrics *monitoring.MetricsCollector,
	) (*server.Server, error) {
		return server.NewServer(server.Dependencies{
			Config:     cfg,
			Logger:     log,
			Middleware: mw,
			Planner:    h,
			Health:     health,
			Metrics:    metrics,
		})
	},
)

func newHealthCheck(cfg *config.Config, log *zap.Logger, cat *catalog.Catalog, backend *cacheBackend, archive *planArchive) *healthcheck.HealthCheck {
	h := healthcheck.New(cfg.App.Version, log.Named("health"))

	h.Register("catalog", healthcheck.NewCustomChecker("catalog", func(context.Context) (healthcheck.Status, string) {
		return healthcheck.StatusHealthy, fmt.Sprintf("%d products", cat.Len())
	}))
	h.Register("openai", healthcheck.NewCustomChecker("openai", func(context.Context) (healthcheck.Status, string) {
		if cfg.AI.OpenAIKey == "" {
			return healthcheck.StatusUnhealthy, "API key not configured"
		}
		return healthcheck.StatusHealthy, "configured"
	}))
	if backend.redis != nil {
		h.Register("redis", healthcheck.NewRedisChecker(backend.redis))
	}
	if archive.repo != nil {
		h.Register("archive", healthcheck.NewPingChecker(archive.repo))
	}

	return h
}

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(RegisterLifecycleHooks)

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	runner *background.Runner,
	srv *server.Server,
	tracer *monitoring.TracingProvider,
	backend *cacheBackend,
	archive *planArchive,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting Daily N'Oats planner",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
			)
			for _, w := range cfg.Warnings() {
				log.Warn(w)
			}

			if err := runner.Start(ctx); err != nil {
				return err
			}

			go func() {
				if err := srv.Start(); err != nil {
					log.Error("HTTP server failed", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down Daily N'Oats planner")

			if err := srv.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			// drain queued sync tasks after the last request finished
			if err := runner.Stop(ctx); err != nil {
				log.Warn("Background tasks did not finish", zap.Error(err))
			}

			if archive.repo != nil {
				if err := archive.repo.Close(); err != nil {
					log.Error("Failed to close archive database", zap.Error(err))
				}
			}
			if backend.redis != nil {
				_ = backend.redis.Close()
			}
			if backend.memory != nil {
				_ = backend.memory.Close()
			}

			if err := tracer.Shutdown(ctx); err != nil {
				log.Warn("Failed to flush traces", zap.Error(err))
			}

			_ = log.Sync()
			return nil
		},
	})
}

// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	AI          AIConfig          `mapstructure:"ai"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
	Links       LinksConfig       `mapstructure:"links"`
	RecipeFetch RecipeFetchConfig `mapstructure:"recipe_fetch"`
	Shopify     ShopifyConfig     `mapstructure:"shopify"`
	MailerLite  MailerLiteConfig  `mapstructure:"mailerlite"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	EnableHTTP2       bool          `mapstructure:"enable_http2"`
}

// AIConfig contains generation provider configuration
type AIConfig struct {
	OpenAIKey   string        `mapstructure:"openai_key"`
	BaseURL     string        `mapstructure:"base_url"`
	TextModel   string        `mapstructure:"text_model"`
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	EnableCache bool          `mapstructure:"enable_cache"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// CatalogConfig points at an optional catalog override file
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// LinksConfig contains links echoed back to the storefront
type LinksConfig struct {
	TransformURL string `mapstructure:"transform_url"`
}

// RecipeFetchConfig bounds recipe URL downloads
type RecipeFetchConfig struct {
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxBytes             int64         `mapstructure:"max_bytes"`
	AllowPrivateNetworks bool          `mapstructure:"allow_private_networks"`
}

// ShopifyConfig contains Shopify Admin API configuration
type ShopifyConfig struct {
	Store       string        `mapstructure:"store"`
	AccessToken string        `mapstructure:"access_token"`
	APIVersion  string        `mapstructure:"api_version"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MailerLiteConfig contains MailerLite configuration
type MailerLiteConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	GroupID string        `mapstructure:"group_id"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyncConfig sizes the background task runner
type SyncConfig struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// RedisConfig contains Redis configuration. An empty URL selects the
// in-process cache.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ArchiveConfig contains plan archive database configuration
type ArchiveConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Driver             string        `mapstructure:"driver"`
	DSN                string        `mapstructure:"dsn"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	LogLevel           string        `mapstructure:"log_level"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enable          bool          `mapstructure:"enable"`
	RequestsPerMin  int           `mapstructure:"requests_per_min"`
	BurstSize       int           `mapstructure:"burst_size"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics   bool    `mapstructure:"enable_metrics"`
	EnableTracing   bool    `mapstructure:"enable_tracing"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool    `mapstructure:"otlp_insecure"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
	HealthCheckPath string  `mapstructure:"health_check_path"`
	ReadinessPath   string  `mapstructure:"readiness_path"`
	MetricsPath     string  `mapstructure:"metrics_path"`
}

// conventional variable names accepted alongside the NOATS_ prefixed ones
var envAliases = map[string]string{
	"ai.openai_key":        "OPENAI_API_KEY",
	"ai.text_model":        "OPENAI_MODEL",
	"ai.vision_model":      "OPENAI_VISION_MODEL",
	"shopify.store":        "SHOPIFY_STORE",
	"shopify.access_token": "SHOPIFY_ADMIN_API_ACCESS_TOKEN",
	"mailerlite.api_key":   "MAILERLITE_API_KEY",
	"mailerlite.group_id":  "MAILERLITE_GROUP_ID",
	"server.port":          "PORT",
	"redis.url":            "REDIS_URL",
	"archive.dsn":          "DATABASE_URL",
}

// Load loads configuration from .env, the config file and environment variables
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/dailynoats")
	}

	// Enable environment variable override
	v.SetEnvPrefix("NOATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := "NOATS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", alias, err)
		}
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.normalize()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "dailynoats-planner")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.max_body_bytes", 15<<20)  // photos arrive as data URLs
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.enable_compression", true)
	v.SetDefault("server.enable_http2", true)

	// AI defaults
	v.SetDefault("ai.openai_key", "")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.text_model", "gpt-4.1-mini")
	v.SetDefault("ai.vision_model", "gpt-4.1-mini")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.max_tokens", 2500)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.enable_cache", false)
	v.SetDefault("ai.cache_ttl", "24h")

	v.SetDefault("catalog.path", "")
	v.SetDefault("links.transform_url", "https://dailynoats.com/pages/transform")

	v.SetDefault("recipe_fetch.timeout", "10s")
	v.SetDefault("recipe_fetch.max_bytes", 2<<20)
	v.SetDefault("recipe_fetch.allow_private_networks", false)

	// Sync target defaults
	v.SetDefault("shopify.store", "")
	v.SetDefault("shopify.access_token", "")
	v.SetDefault("shopify.api_version", "2024-10")
	v.SetDefault("shopify.timeout", "15s")
	v.SetDefault("mailerlite.api_key", "")
	v.SetDefault("mailerlite.group_id", "")
	v.SetDefault("mailerlite.base_url", "https://connect.mailerlite.com/api")
	v.SetDefault("mailerlite.timeout", "15s")
	v.SetDefault("sync.workers", 2)
	v.SetDefault("sync.queue_size", 100)
	v.SetDefault("sync.task_timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "noats:")

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.driver", "sqlite")
	v.SetDefault("archive.dsn", "plans.db")
	v.SetDefault("archive.max_open_conns", 10)
	v.SetDefault("archive.max_idle_conns", 5)
	v.SetDefault("archive.conn_max_lifetime", "1h")
	v.SetDefault("archive.slow_query_threshold", "200ms")
	v.SetDefault("archive.log_level", "warn")

	// Rate limit defaults
	v.SetDefault("rate_limit.enable", true)
	v.SetDefault("rate_limit.requests_per_min", 30)
	v.SetDefault("rate_limit.burst_size", 10)
	v.SetDefault("rate_limit.cleanup_interval", "5m")

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.enable_tracing", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4318")
	v.SetDefault("monitoring.otlp_insecure", true)
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_check_path", "/health")
	v.SetDefault("monitoring.readiness_path", "/ready")
	v.SetDefault("monitoring.metrics_path", "/metrics")
}

// normalize infers the archive driver from a postgres URL
func (c *Config) normalize() {
	dsn := strings.ToLower(c.Archive.DSN)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		c.Archive.Driver = "postgres"
	}
	c.Archive.Driver = strings.ToLower(strings.TrimSpace(c.Archive.Driver))
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate required fields
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	// Validate port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	timeouts := map[string]time.Duration{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"ai.timeout":           c.AI.Timeout,
		"recipe_fetch.timeout": c.RecipeFetch.Timeout,
		"sync.task_timeout":    c.Sync.TaskTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	if c.Sync.Workers < 1 || c.Sync.QueueSize < 1 {
		return fmt.Errorf("sync.workers and sync.queue_size must be at least 1")
	}

	if c.Archive.Enabled {
		switch c.Archive.Driver {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("archive.driver must be sqlite or postgres, got %q", c.Archive.Driver)
		}
	}

	if c.RateLimit.Enable && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.BurstSize < 1) {
		return fmt.Errorf("rate_limit.requests_per_min and rate_limit.burst_size must be at least 1")
	}

	if c.Monitoring.SamplingRate < 0 || c.Monitoring.SamplingRate > 1 {
		return fmt.Errorf("monitoring.sampling_rate must be between 0 and 1")
	}

	if c.RecipeFetch.AllowPrivateNetworks && c.IsProduction() {
		return fmt.Errorf("recipe_fetch.allow_private_networks cannot be enabled in production")
	}

	return nil
}

// Warnings lists configuration gaps that degrade features without
// preventing startup
func (c *Config) Warnings() []string {
	var warnings []string
	if c.AI.OpenAIKey == "" {
		warnings = append(warnings, "OPENAI_API_KEY is not set; generation routes will return 503")
	}
	if (c.Shopify.Store == "") != (c.Shopify.AccessToken == "") {
		warnings = append(warnings, "Shopify sync needs both SHOPIFY_STORE and SHOPIFY_ADMIN_API_ACCESS_TOKEN; sync disabled")
	}
	if (c.MailerLite.APIKey == "") != (c.MailerLite.GroupID == "") {
		warnings = append(warnings, "MailerLite sync needs both MAILERLITE_API_KEY and MAILERLITE_GROUP_ID; sync disabled")
	}
	return warnings
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/dailynoats/planner/internal/domain/planner"
)

// ErrCacheMiss is returned by CacheRepository.Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// GenerateOptions tunes a single generation call
type GenerateOptions struct {
	// JSONMode asks the provider for a JSON object reply
	JSONMode bool
	// Model overrides the configured text model when set
	Model string
	// Kind labels the call for metrics and logs (plan, recipes, conversion)
	Kind string
}

// Generator produces raw model text from a system and a user instruction.
// Provider failures and empty replies are UpstreamUnavailable errors; an
// exceeded deadline is an UpstreamTimeout error.
type Generator interface {
	Generate(ctx context.Context, system, user string, opts GenerateOptions) (string, error)
}

// TextExtractor reads recipe text out of uploaded images with a vision model.
// It returns "" without calling the provider when images is empty.
type TextExtractor interface {
	ExtractTextFromImages(ctx context.Context, images []planner.ImageInput) (string, error)
}

// RecipeFetcher downloads a recipe page and returns its readable text
type RecipeFetcher interface {
	FetchRecipeText(ctx context.Context, url string) (string, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// SyncRecord is the sanitized plan forwarded to marketing systems
type SyncRecord struct {
	Email           string
	PlanMarkdown    string
	Recommendations []planner.RecommendedProduct
}

// PlanSyncer forwards a sanitized plan to one external system.
// Enabled reports whether the required credentials are configured.
type PlanSyncer interface {
	Name() string
	Enabled() bool
	SyncPlan(ctx context.Context, record SyncRecord) error
}

// Task is a unit of detached work
type Task func(ctx context.Context) error

// TaskRunner runs tasks outside the request that produced them. Submit never
// blocks and never reports the task's own failure; it returns false when the
// task was dropped.
type TaskRunner interface {
	Submit(name string, task Task) bool
}

// PlanArchive stores sanitized plans for later retrieval
type PlanArchive interface {
	Save(ctx context.Context, plan planner.PlanResult, profile planner.CustomerProfile) error
	FindByID(ctx context.Context, id string) (*planner.PlanResult, error)
}

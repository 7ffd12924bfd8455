package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dailynoats/planner/internal/application/sanitize"
	"github.com/dailynoats/planner/internal/ports/outbound"
	"go.uber.org/zap"
)

// OperationRecorder receives cache hit and miss counts
type OperationRecorder interface {
	CacheOperation(operation, status string)
}

// CachingGenerator reuses replies for identical prompts. Only successful
// replies are stored, and in JSON mode only replies that parse as a JSON
// object; cache failures fall through to the wrapped generator.
type CachingGenerator struct {
	next         outbound.Generator
	repo         outbound.CacheRepository
	ttl          time.Duration
	defaultModel string
	metrics      OperationRecorder
	logger       *zap.Logger
}

var _ outbound.Generator = (*CachingGenerator)(nil)

// NewCachingGenerator wraps next. defaultModel is the model used when a call
// leaves GenerateOptions.Model empty; it is part of the cache key.
func NewCachingGenerator(next outbound.Generator, repo outbound.CacheRepository, ttl time.Duration, defaultModel string, metrics OperationRecorder, logger *zap.Logger) *CachingGenerator {
	return &CachingGenerator{
		next:         next,
		repo:         repo,
		ttl:          ttl,
		defaultModel: defaultModel,
		metrics:      metrics,
		logger:       logger.Named("generation-cache"),
	}
}

// Generate implements outbound.Generator
func (g *CachingGenerator) Generate(ctx context.Context, system, user string, opts outbound.GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = g.defaultModel
	}
	key := Key(model, opts.JSONMode, system, user)

	data, err := g.repo.Get(ctx, key)
	switch {
	case err == nil && len(data) > 0:
		g.record("get", "hit")
		g.logger.Debug("Generation cache hit", zap.String("kind", opts.Kind))
		return string(data), nil
	case err == nil || errors.Is(err, outbound.ErrCacheMiss):
		g.record("get", "miss")
	default:
		g.record("get", "error")
		g.logger.Warn("Generation cache read failed", zap.Error(err))
	}

	reply, err := g.next.Generate(ctx, system, user, opts)
	if err != nil {
		return "", err
	}

	if !cacheable(reply, opts.JSONMode) {
		g.record("set", "skipped")
		g.logger.Debug("Reply not cached", zap.String("kind", opts.Kind))
		return reply, nil
	}

	if err := g.repo.Set(ctx, key, []byte(reply), g.ttl); err != nil {
		g.record("set", "error")
		g.logger.Warn("Generation cache write failed", zap.Error(err))
	} else {
		g.record("set", "ok")
	}
	return reply, nil
}

// cacheable rejects empty replies and, in JSON mode, anything the
// sanitizers would refuse to parse
func cacheable(reply string, jsonMode bool) bool {
	if strings.TrimSpace(reply) == "" {
		return false
	}
	if !jsonMode {
		return true
	}
	return sanitize.IsJSONObject(reply)
}

func (g *CachingGenerator) record(operation, status string) {
	if g.metrics != nil {
		g.metrics.CacheOperation(operation, status)
	}
}

// Key derives the cache key for one generation call
func Key(model string, jsonMode bool, system, user string) string {
	h := sha256.New()
	for _, part := range []string{model, strconv.FormatBool(jsonMode), system, user} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	return "gen:" + hex.EncodeToString(h.Sum(nil))
}

// Package planner provides the application layer for plans, recipes and
// recipe conversions. Each use case runs prompt construction, one generation
// call and one sanitizing step in sequence, then hands follow-up work to the
// task runner without waiting for it.
package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dailynoats/planner/internal/application/prompt"
	"github.com/dailynoats/planner/internal/application/sanitize"
	"github.com/dailynoats/planner/internal/domain/catalog"
	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/dailynoats/planner/internal/ports/inbound"
	"github.com/dailynoats/planner/internal/ports/outbound"
	apperrors "github.com/dailynoats/planner/pkg/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultServings = 2
	maxServings     = 12
)

// Metrics receives sanitizer outcomes
type Metrics interface {
	SanitizerDropped(kind string, n int)
}

// Dependencies are the collaborators of Service. Fetcher, Archive and
// Metrics may be nil.
type Dependencies struct {
	Catalog       *catalog.Catalog
	Generator     outbound.Generator
	Extractor     outbound.TextExtractor
	Fetcher       outbound.RecipeFetcher
	Syncers       []outbound.PlanSyncer
	Runner        outbound.TaskRunner
	Archive       outbound.PlanArchive
	Metrics       Metrics
	TransformLink string
	Logger        *zap.Logger
}

// Service implements the planner use cases
type Service struct {
	catalog       *catalog.Catalog
	generator     outbound.Generator
	extractor     outbound.TextExtractor
	fetcher       outbound.RecipeFetcher
	syncers       []outbound.PlanSyncer
	runner        outbound.TaskRunner
	archive       outbound.PlanArchive
	metrics       Metrics
	transformLink string
	logger        *zap.Logger
	now           func() time.Time
}

// NewService creates a new planner service
func NewService(deps Dependencies) inbound.PlannerService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		catalog:       deps.Catalog,
		generator:     deps.Generator,
		extractor:     deps.Extractor,
		fetcher:       deps.Fetcher,
		syncers:       deps.Syncers,
		runner:        deps.Runner,
		archive:       deps.Archive,
		metrics:       deps.Metrics,
		transformLink: deps.TransformLink,
		logger:        logger.Named("planner-service"),
		now:           time.Now,
	}
}

// CreatePlan builds a breakfast plan for a customer profile
func (s *Service) CreatePlan(ctx context.Context, input planner.ProfileInput) (*planner.PlanResult, error) {
	profile := planner.NormalizeProfile(input)

	p := prompt.BuildPlanPrompts(profile, s.catalog.Summarize(catalog.ViewFull))
	raw, err := s.generator.Generate(ctx, p.System, p.User, outbound.GenerateOptions{JSONMode: true, Kind: "plan"})
	if err != nil {
		return nil, err
	}

	plan, stats, err := sanitize.PlanResponse(raw, s.catalog)
	if err != nil {
		s.logRejectedReply("plan", raw, err)
		return nil, err
	}
	s.recordDrops("plan", stats)

	if len(plan.Recommendations) == 0 {
		s.logger.Warn("Plan reply had no catalog products",
			zap.Int("candidates", stats.Candidates),
		)
	}

	result := &planner.PlanResult{
		SanitizedPlan: plan,
		TransformLink: s.transformLink,
		CreatedAt:     s.now().UTC(),
	}

	if s.archive != nil {
		// the id is only handed out once the archive task is queued
		archived := *result
		archived.ID = uuid.NewString()
		if s.runner.Submit("archive_plan", func(ctx context.Context) error {
			return s.archive.Save(ctx, archived, profile)
		}) {
			result.ID = archived.ID
		} else {
			s.logger.Warn("Plan archive task dropped; returning plan without id")
		}
	}

	if email := profile.EmailAddress(); email != "" {
		s.syncPlan(outbound.SyncRecord{
			Email:           email,
			PlanMarkdown:    plan.PlanMarkdown,
			Recommendations: plan.Recommendations,
		})
	}

	s.logger.Info("Plan created",
		zap.String("plan_id", result.ID),
		zap.Int("recommendations", len(plan.Recommendations)),
	)

	return result, nil
}

// GenerateRecipes builds recipes around catalog products
func (s *Service) GenerateRecipes(ctx context.Context, req planner.RecipeRequest) (*planner.RecipesResult, error) {
	req.Dietary = planner.CleanList(req.Dietary)
	req.Flavors = planner.CleanList(req.Flavors)
	req.BaseProductIDs = planner.CleanList(req.BaseProductIDs)

	switch {
	case req.Servings == 0:
		req.Servings = defaultServings
	case req.Servings < 0 || req.Servings > maxServings:
		return nil, apperrors.NewInvalidInputError("Servings must be between 1 and 12.")
	}

	allowed, err := s.catalog.Subset(req.BaseProductIDs)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownID) {
			return nil, apperrors.NewInvalidInputError("One or more base products are not part of the Daily N'Oats catalog.").
				WithCause(err)
		}
		return nil, apperrors.Wrap(err, "failed to select base products")
	}

	p := prompt.BuildRecipePrompts(req, s.catalog.Summarize(catalog.ViewRecipe))
	raw, err := s.generator.Generate(ctx, p.System, p.User, outbound.GenerateOptions{JSONMode: true, Kind: "recipes"})
	if err != nil {
		return nil, err
	}

	recipes, stats, err := sanitize.RecipeResponse(raw, allowed)
	if err != nil {
		s.logRejectedReply("recipes", raw, err)
		return nil, err
	}
	s.recordDrops("recipes", stats)

	return &planner.RecipesResult{
		Recipes:       recipes,
		TransformLink: s.transformLink,
	}, nil
}

// ConvertRecipe reworks a recipe given as text, images or a URL
func (s *Service) ConvertRecipe(ctx context.Context, req planner.ConversionRequest) (*planner.ConversionResult, error) {
	text := strings.TrimSpace(req.RecipeText)
	url := strings.TrimSpace(req.RecipeURL)

	var images, pdfs []planner.ImageInput
	for _, img := range req.Images {
		if img.IsPDF() {
			pdfs = append(pdfs, img)
			continue
		}
		images = append(images, img)
	}

	if text == "" && url == "" && len(req.Images) == 0 {
		return nil, apperrors.NewInvalidInputError("Please provide recipe text, an image of the recipe, or a recipe URL.")
	}
	if text == "" && url == "" && len(images) == 0 {
		return nil, apperrors.NewUnsupportedInputError(
			"PDF uploads can't be read yet. Please paste the recipe text or upload a photo of the recipe instead.")
	}

	var extraWarnings []string
	if len(pdfs) > 0 {
		extraWarnings = append(extraWarnings, "PDF uploads were skipped; only pasted text, photos and URLs were used.")
	}

	parts := []string{}
	if text != "" {
		parts = append(parts, text)
	}

	if url != "" {
		if s.fetcher == nil {
			return nil, apperrors.NewInvalidInputError("Recipe links are not supported. Please paste the recipe text instead.")
		}
		fetched, err := s.fetcher.FetchRecipeText(ctx, url)
		if err != nil {
			return nil, err
		}
		if fetched = strings.TrimSpace(fetched); fetched != "" {
			parts = append(parts, fetched)
		}
	}

	extracted, err := s.extractor.ExtractTextFromImages(ctx, images)
	if err != nil {
		return nil, err
	}
	if extracted = strings.TrimSpace(extracted); extracted != "" {
		parts = append(parts, extracted)
	}

	if len(parts) == 0 {
		return nil, apperrors.NewInvalidInputError(
			"We couldn't find any recipe text in your upload. Please paste the recipe text instead.")
	}

	p := prompt.BuildConversionPrompts(planner.ConversionPayload{
		RecipeText:          strings.Join(parts, "\n\n"),
		SourceURL:           url,
		DietaryRestrictions: planner.CleanList(req.DietaryRestrictions),
		UserPreferences:     strings.TrimSpace(req.UserPreferences),
	})
	raw, err := s.generator.Generate(ctx, p.System, p.User, outbound.GenerateOptions{JSONMode: true, Kind: "conversion"})
	if err != nil {
		return nil, err
	}

	result, err := sanitize.ConversionResponse(raw)
	if err != nil {
		s.logRejectedReply("conversion", raw, err)
		return nil, err
	}
	result.Warnings = append(result.Warnings, extraWarnings...)

	s.logger.Info("Recipe converted",
		zap.String("status", string(result.Status)),
		zap.Float64("confidence", result.ConfidenceScore),
		zap.Int("images", len(images)),
	)

	return &result, nil
}

// GetPlan returns an archived plan
func (s *Service) GetPlan(ctx context.Context, id string) (*planner.PlanResult, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewInvalidInputError("Plan id must be a UUID.")
	}
	if s.archive == nil {
		return nil, apperrors.NewNotFoundError("Plan")
	}

	plan, err := s.archive.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.TransformLink = s.transformLink
	return plan, nil
}

func (s *Service) syncPlan(record outbound.SyncRecord) {
	for _, syncer := range s.syncers {
		if !syncer.Enabled() {
			s.logger.Debug("Sync target not configured, skipping", zap.String("target", syncer.Name()))
			continue
		}
		syncer := syncer
		s.runner.Submit("sync_"+syncer.Name(), func(ctx context.Context) error {
			return syncer.SyncPlan(ctx, record)
		})
	}
}

// logRejectedReply keeps the raw model text server side
func (s *Service) logRejectedReply(kind, raw string, err error) {
	s.logger.Error("Model reply rejected",
		zap.String("kind", kind),
		zap.String("raw", raw),
		zap.Error(err),
	)
}

func (s *Service) recordDrops(kind string, stats sanitize.Stats) {
	if stats.Dropped == 0 || s.metrics == nil {
		return
	}
	s.metrics.SanitizerDropped(kind, stats.Dropped)
}

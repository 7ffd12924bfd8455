package planner

import (
	"context"
	"testing"
	"time"

	"github.com/dailynoats/planner/internal/domain/catalog"
	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/dailynoats/planner/internal/ports/outbound"
	apperrors "github.com/dailynoats/planner/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockGenerator is a mock implementation of the generation client
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, system, user string, opts outbound.GenerateOptions) (string, error) {
	args := m.Called(ctx, system, user, opts)
	return args.String(0), args.Error(1)
}

// MockExtractor is a mock implementation of the image text extractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractTextFromImages(ctx context.Context, images []planner.ImageInput) (string, error) {
	args := m.Called(ctx, images)
	return args.String(0), args.Error(1)
}

// MockFetcher is a mock implementation of the recipe page fetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchRecipeText(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

// MockSyncer is a mock implementation of a marketing sync target
type MockSyncer struct {
	mock.Mock
	name    string
	enabled bool
}

func (m *MockSyncer) Name() string  { return m.name }
func (m *MockSyncer) Enabled() bool { return m.enabled }

func (m *MockSyncer) SyncPlan(ctx context.Context, record outbound.SyncRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockArchive is a mock implementation of the plan archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Save(ctx context.Context, plan planner.PlanResult, profile planner.CustomerProfile) error {
	args := m.Called(ctx, plan, profile)
	return args.Error(0)
}

func (m *MockArchive) FindByID(ctx context.Context, id string) (*planner.PlanResult, error) {
	args := m.Called(ctx, id)
	plan, _ := args.Get(0).(*planner.PlanResult)
	return plan, args.Error(1)
}

// recordingRunner keeps submitted tasks so tests decide when they run
type recordingRunner struct {
	names []string
	tasks []outbound.Task
	full  bool
}

func (r *recordingRunner) Submit(name string, task outbound.Task) bool {
	if r.full {
		return false
	}
	r.names = append(r.names, name)
	r.tasks = append(r.tasks, task)
	return true
}

func (r *recordingRunner) runAll(t *testing.T) {
	t.Helper()
	for _, task := range r.tasks {
		_ = task(context.Background())
	}
}

type countingMetrics struct {
	dropped map[string]int
}

func (c *countingMetrics) SanitizerDropped(kind string, n int) {
	if c.dropped == nil {
		c.dropped = map[string]int{}
	}
	c.dropped[kind] += n
}

type fixture struct {
	service   *Service
	generator *MockGenerator
	extractor *MockExtractor
	fetcher   *MockFetcher
	shopify   *MockSyncer
	email     *MockSyncer
	archive   *MockArchive
	runner    *recordingRunner
	metrics   *countingMetrics
	catalog   *catalog.Catalog
}

func newFixture(t *testing.T, withArchive bool) *fixture {
	t.Helper()

	c, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		generator: &MockGenerator{},
		extractor: &MockExtractor{},
		fetcher:   &MockFetcher{},
		shopify:   &MockSyncer{name: "shopify", enabled: true},
		email:     &MockSyncer{name: "mailerlite", enabled: false},
		archive:   &MockArchive{},
		runner:    &recordingRunner{},
		metrics:   &countingMetrics{},
		catalog:   c,
	}

	deps := Dependencies{
		Catalog:       c,
		Generator:     f.generator,
		Extractor:     f.extractor,
		Fetcher:       f.fetcher,
		Syncers:       []outbound.PlanSyncer{f.shopify, f.email},
		Runner:        f.runner,
		Metrics:       f.metrics,
		TransformLink: "https://dailynoats.com/pages/transform",
		Logger:        zaptest.NewLogger(t),
	}
	if withArchive {
		deps.Archive = f.archive
	}

	f.service = NewService(deps).(*Service)
	f.service.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

const planReply = `{"plan_markdown":"## Week 1","recommended_products":[
	{"id":"naked-noats","reason":"Lowest carbs"},
	{"id":"keto-pancakes-9000","reason":"Invented"},
	{"id":"protein-boost","reason":"More protein"}
]}`

func TestCreatePlan(t *testing.T) {
	f := newFixture(t, false)
	f.generator.On("Generate", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(user string) bool {
		return assert.Contains(t, user, `"goal": "weight loss"`)
	}), outbound.GenerateOptions{JSONMode: true, Kind: "plan"}).Return(planReply, nil)

	result, err := f.service.CreatePlan(context.Background(), planner.ProfileInput{
		Goal:         "weight loss",
		Restrictions: []string{"keto"},
	})
	require.NoError(t, err)

	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "naked-noats", result.Recommendations[0].ID)
	assert.Equal(t, "protein-boost", result.Recommendations[1].ID)
	assert.Equal(t, "## Week 1", result.PlanMarkdown)
	assert.Equal(t, "https://dailynoats.com/pages/transform", result.TransformLink)
	assert.Empty(t, result.ID)
	assert.Equal(t, 1, f.metrics.dropped["plan"])

	// no email, no sync
	assert.Empty(t, f.runner.names)
	f.generator.AssertExpectations(t)
}

func TestCreatePlan_NoIDWhenArchiveTaskDropped(t *testing.T) {
	f := newFixture(t, true)
	f.runner.full = true
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(planReply, nil)

	result, err := f.service.CreatePlan(context.Background(), planner.ProfileInput{Goal: "energy"})
	require.NoError(t, err)

	assert.Empty(t, result.ID)
	assert.Len(t, result.Recommendations, 2)
	f.archive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreatePlan_SubmitsSyncAndArchiveWithoutRunningThem(t *testing.T) {
	f := newFixture(t, true)
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(planReply, nil)

	result, err := f.service.CreatePlan(context.Background(), planner.ProfileInput{Email: " Shopper@Example.com "})
	require.NoError(t, err)
	require.NotEmpty(t, result.ID)

	assert.Equal(t, []string{"archive_plan", "sync_shopify"}, f.runner.names)
	f.shopify.AssertNotCalled(t, "SyncPlan", mock.Anything, mock.Anything)

	f.shopify.On("SyncPlan", mock.Anything, mock.MatchedBy(func(r outbound.SyncRecord) bool {
		return r.Email == "shopper@example.com" && len(r.Recommendations) == 2
	})).Return(assert.AnError)
	f.archive.On("Save", mock.Anything, mock.MatchedBy(func(p planner.PlanResult) bool {
		return p.ID == result.ID
	}), mock.Anything).Return(nil)

	f.runner.runAll(t)

	f.shopify.AssertExpectations(t)
	f.archive.AssertExpectations(t)
	f.email.AssertNotCalled(t, "SyncPlan", mock.Anything, mock.Anything)
}

func TestCreatePlan_UpstreamErrors(t *testing.T) {
	t.Run("unparseable reply", func(t *testing.T) {
		f := newFixture(t, false)
		f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("not json", nil)

		_, err := f.service.CreatePlan(context.Background(), planner.ProfileInput{Email: "a@b.co"})
		assert.True(t, apperrors.Is(err, apperrors.CodeUpstreamFormat))
		assert.Empty(t, f.runner.names)
	})

	t.Run("provider failure passes through", func(t *testing.T) {
		f := newFixture(t, false)
		f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", apperrors.NewUpstreamUnavailableError(assert.AnError))

		_, err := f.service.CreatePlan(context.Background(), planner.ProfileInput{})
		assert.True(t, apperrors.Is(err, apperrors.CodeUpstreamUnavailable))
	})
}

func TestGenerateRecipes(t *testing.T) {
	f := newFixture(t, false)
	reply := `{"recipes":[{"title":"Bowl","base_product_ids":["naked-noats","protein-boost"],"servings":2}]}`
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(func(user string) bool {
		return assert.Contains(t, user, "Only these product ids: naked-noats")
	}), outbound.GenerateOptions{JSONMode: true, Kind: "recipes"}).Return(reply, nil)

	result, err := f.service.GenerateRecipes(context.Background(), planner.RecipeRequest{
		BaseProductIDs: []string{"naked-noats", " "},
	})
	require.NoError(t, err)

	require.Len(t, result.Recipes, 1)
	require.Len(t, result.Recipes[0].BaseProducts, 1)
	assert.Equal(t, "naked-noats", result.Recipes[0].BaseProducts[0].ID)
	assert.Equal(t, 1, f.metrics.dropped["recipes"])
	assert.Equal(t, "https://dailynoats.com/pages/transform", result.TransformLink)
}

func TestGenerateRecipes_Validation(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.service.GenerateRecipes(context.Background(), planner.RecipeRequest{BaseProductIDs: []string{"ghost"}})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))

	_, err = f.service.GenerateRecipes(context.Background(), planner.RecipeRequest{Servings: 40})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))

	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConvertRecipe_Validation(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.service.ConvertRecipe(context.Background(), planner.ConversionRequest{RecipeText: "   "})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))

	_, err = f.service.ConvertRecipe(context.Background(), planner.ConversionRequest{
		Images: []planner.ImageInput{{Data: "JVBERi0=", MimeType: "application/pdf"}},
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeUnsupportedInput))

	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.extractor.AssertNotCalled(t, "ExtractTextFromImages", mock.Anything, mock.Anything)
}

func TestConvertRecipe_CombinesSources(t *testing.T) {
	f := newFixture(t, false)
	photo := planner.ImageInput{Data: "aGVsbG8=", MimeType: "image/png"}

	f.fetcher.On("FetchRecipeText", mock.Anything, "https://example.com/pancakes").Return("Fetched pancakes", nil)
	f.extractor.On("ExtractTextFromImages", mock.Anything, []planner.ImageInput{photo}).Return("Photo text", nil)
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.MatchedBy(func(user string) bool {
		return assert.Contains(t, user, "Typed text\n\nFetched pancakes\n\nPhoto text")
	}), outbound.GenerateOptions{JSONMode: true, Kind: "conversion"}).Return(`{"status":"success","confidence_score":0.9}`, nil)

	result, err := f.service.ConvertRecipe(context.Background(), planner.ConversionRequest{
		RecipeText: "Typed text",
		RecipeURL:  "https://example.com/pancakes",
		Images:     []planner.ImageInput{photo, {Data: "JVBERi0=", MimeType: "application/pdf"}},
	})
	require.NoError(t, err)

	assert.Equal(t, planner.StatusSuccess, result.Status)
	assert.Equal(t, 0.9, result.ConfidenceScore)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "PDF")
	f.extractor.AssertExpectations(t)
	f.fetcher.AssertExpectations(t)
}

func TestConvertRecipe_NoTextFromImages(t *testing.T) {
	f := newFixture(t, false)
	f.extractor.On("ExtractTextFromImages", mock.Anything, mock.Anything).Return("  ", nil)

	_, err := f.service.ConvertRecipe(context.Background(), planner.ConversionRequest{
		Images: []planner.ImageInput{{Data: "aGVsbG8=", MimeType: "image/jpeg"}},
	})
	assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
}

func TestGetPlan(t *testing.T) {
	const id = "3f2c8f5e-7c1a-4b53-9a8e-1f5a2b7c9d10"

	t.Run("archive disabled", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.service.GetPlan(context.Background(), id)
		assert.True(t, apperrors.Is(err, apperrors.CodeNotFound))
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.service.GetPlan(context.Background(), "../etc")
		assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput))
	})

	t.Run("found", func(t *testing.T) {
		f := newFixture(t, true)
		f.archive.On("FindByID", mock.Anything, id).Return(&planner.PlanResult{ID: id}, nil)

		plan, err := f.service.GetPlan(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, plan.ID)
		assert.Equal(t, "https://dailynoats.com/pages/transform", plan.TransformLink)
	})
}

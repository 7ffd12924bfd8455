// Package testutil provides test data factories shared by package tests
package testutil

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dailynoats/planner/internal/domain/catalog"
	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/google/uuid"
)

var (
	goals        = []string{"weight loss", "more energy", "blood sugar control", "build muscle", "gut health"}
	restrictions = []string{"keto", "vegan", "gluten-free", "dairy-free", "nut-free"}
	activity     = []string{"sedentary", "light", "moderate", "very active"}
	flavors      = []string{"vanilla", "chocolate", "cinnamon", "berry", "peanut butter"}
)

// PlanFactory builds plan fixtures from a catalog
type PlanFactory struct {
	faker   *gofakeit.Faker
	catalog *catalog.Catalog
}

// NewPlanFactory creates a new plan factory with seeded faker
func NewPlanFactory(seed int64, c *catalog.Catalog) *PlanFactory {
	return &PlanFactory{
		faker:   gofakeit.New(seed),
		catalog: c,
	}
}

// Profile returns a quiz submission with an email address
func (f *PlanFactory) Profile() planner.ProfileInput {
	return planner.ProfileInput{
		Email:         f.faker.Email(),
		Goal:          f.pick(goals),
		Restrictions:  []string{f.pick(restrictions)},
		ActivityLevel: f.pick(activity),
		Flavors:       []string{f.pick(flavors)},
	}
}

// Recommendations returns n annotated catalog products in catalog order
func (f *PlanFactory) Recommendations(n int) []planner.RecommendedProduct {
	products := f.catalog.Products()
	if n > len(products) {
		n = len(products)
	}

	out := make([]planner.RecommendedProduct, 0, n)
	for _, p := range products[:n] {
		out = append(out, planner.RecommendedProduct{
			ID:       p.ID,
			Reason:   f.faker.Sentence(6),
			Name:     p.Name,
			Price:    p.Price,
			Dietary:  append([]string{}, p.Dietary...),
			NetCarbs: p.NetCarbs,
			Protein:  p.Protein,
			Fiber:    p.Fiber,
		})
	}
	return out
}

// Plan returns an archivable plan result
func (f *PlanFactory) Plan() planner.PlanResult {
	return planner.PlanResult{
		ID: uuid.NewString(),
		SanitizedPlan: planner.SanitizedPlan{
			PlanMarkdown:    "## Your breakfast plan\n\n" + f.faker.Paragraph(2, 3, 8, "\n\n"),
			Recommendations: f.Recommendations(1 + f.faker.Number(0, 2)),
		},
		CreatedAt: f.faker.DateRange(
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		).UTC().Truncate(time.Second),
	}
}

// PlanReply returns a model reply naming the given product ids
func (f *PlanFactory) PlanReply(ids ...string) string {
	type item struct {
		ID     string `json:"id"`
		Reason string `json:"reason"`
	}
	items := make([]item, 0, len(ids))
	for _, id := range ids {
		items = append(items, item{ID: id, Reason: f.faker.Sentence(5)})
	}

	raw, _ := json.Marshal(map[string]interface{}{
		"plan_markdown":        "## Plan\n" + f.faker.Paragraph(1, 2, 6, " "),
		"recommended_products": items,
	})
	return string(raw)
}

func (f *PlanFactory) pick(values []string) string {
	return values[f.faker.Number(0, len(values)-1)]
}

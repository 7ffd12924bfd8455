package sanitize

import (
	"github.com/dailynoats/planner/internal/application/prompt"
	"github.com/dailynoats/planner/internal/domain/catalog"
	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/tidwall/gjson"
)

// PlanResponse validates a plan reply against the catalog.
//
// Recommendations whose id is not a catalog id are dropped silently; the
// survivors keep their relative order and carry the catalog's name, price
// and macros, never the model's. Zero survivors is a valid, empty result.
// Repeated ids keep their first occurrence and at most
// prompt.MaxRecommendations survive; later catalog entries are dropped too.
func PlanResponse(raw string, c *catalog.Catalog) (planner.SanitizedPlan, Stats, error) {
	root, err := parse(raw)
	if err != nil {
		return planner.SanitizedPlan{}, Stats{}, err
	}

	result := planner.SanitizedPlan{
		PlanMarkdown:    "",
		Recommendations: []planner.RecommendedProduct{},
	}
	if plan := root.Get("plan_markdown"); plan.Type == gjson.String {
		result.PlanMarkdown = plan.Str
	}

	var stats Stats
	seen := make(map[string]bool)

	candidates := root.Get("recommended_products")
	if candidates.IsArray() {
		candidates.ForEach(func(_, item gjson.Result) bool {
			stats.Candidates++

			id := text(item.Get("id"))
			product, ok := c.Lookup(id)
			if !item.IsObject() || !ok || seen[id] || len(result.Recommendations) >= prompt.MaxRecommendations {
				stats.Dropped++
				return true
			}
			seen[id] = true

			result.Recommendations = append(result.Recommendations, annotate(product, text(item.Get("reason"))))
			return true
		})
	}

	return result, stats, nil
}

func annotate(p catalog.Product, reason string) planner.RecommendedProduct {
	return planner.RecommendedProduct{
		ID:       p.ID,
		Reason:   reason,
		Name:     p.Name,
		Price:    p.Price,
		Dietary:  p.Dietary,
		NetCarbs: p.NetCarbs,
		Protein:  p.Protein,
		Fiber:    p.Fiber,
	}
}

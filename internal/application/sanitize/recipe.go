package sanitize

import (
	"github.com/dailynoats/planner/internal/application/prompt"
	"github.com/dailynoats/planner/internal/domain/catalog"
	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/tidwall/gjson"
)

// RecipeResponse validates a recipes reply. Each recipe's base products are
// filtered down to catalog products; a recipe left with none is kept, since
// its ingredients and steps are still useful. Stats counts base product ids.
func RecipeResponse(raw string, c *catalog.Catalog) ([]planner.Recipe, Stats, error) {
	root, err := parse(raw)
	if err != nil {
		return nil, Stats{}, err
	}

	recipes := []planner.Recipe{}
	var stats Stats

	list := root.Get("recipes")
	if !list.IsArray() {
		return recipes, stats, nil
	}

	list.ForEach(func(_, item gjson.Result) bool {
		if len(recipes) >= prompt.MaxRecipes {
			return false
		}
		if !item.IsObject() {
			return true
		}
		recipes = append(recipes, recipe(item, c, &stats))
		return true
	})

	return recipes, stats, nil
}

func recipe(item gjson.Result, c *catalog.Catalog, stats *Stats) planner.Recipe {
	r := planner.Recipe{
		Title:        text(item.Get("title")),
		Description:  text(item.Get("description")),
		BaseProducts: []planner.BaseProduct{},
		Ingredients:  textList(item.Get("ingredients")),
		Steps:        textList(item.Get("steps")),
		Tags:         textList(item.Get("tags")),
		Servings:     wholeNumber(item.Get("servings")),
	}
	if r.Servings < 1 {
		r.Servings = 1
	}

	macros := item.Get("macros")
	r.Macros = planner.RecipeMacros{
		Calories: nonNegative(number(macros.Get("calories"))),
		NetCarbs: nonNegative(number(macros.Get("net_carbs"))),
		Protein:  nonNegative(number(macros.Get("protein"))),
		Fiber:    nonNegative(number(macros.Get("fiber"))),
	}

	seen := make(map[string]bool)
	for _, id := range baseProductIDs(item) {
		stats.Candidates++
		product, ok := c.Lookup(id)
		if !ok || seen[id] {
			stats.Dropped++
			continue
		}
		seen[id] = true
		r.BaseProducts = append(r.BaseProducts, planner.BaseProduct{ID: product.ID, Name: product.Name})
	}

	return r
}

// baseProductIDs reads "base_product_ids", falling back to "base_products"
// given either as ids or as objects with an "id" field
func baseProductIDs(item gjson.Result) []string {
	var ids []string
	collect := func(_, v gjson.Result) bool {
		switch {
		case v.Type == gjson.String:
			ids = append(ids, text(v))
		case v.IsObject():
			ids = append(ids, text(v.Get("id")))
		default:
			ids = append(ids, "")
		}
		return true
	}

	if list := item.Get("base_product_ids"); list.IsArray() {
		list.ForEach(collect)
		return ids
	}
	if list := item.Get("base_products"); list.IsArray() {
		list.ForEach(collect)
	}
	return ids
}

package prompt

import (
	"fmt"
	"strings"

	"github.com/dailynoats/planner/internal/domain/planner"
)

// MaxRecipes is the most recipes one request returns
const MaxRecipes = 3

// BuildRecipePrompts builds the instructions for simple Daily N'Oats recipes.
// catalogSummary must be the recipe catalog view. req.BaseProductIDs is the
// allowed subset; when empty any catalog product may be used.
func BuildRecipePrompts(req planner.RecipeRequest, catalogSummary string) Prompts {
	allowed := "Any product id from the catalog above."
	if len(req.BaseProductIDs) > 0 {
		allowed = "Only these product ids: " + strings.Join(req.BaseProductIDs, ", ")
	}

	system := section(
		brandIntro+"\n\nYou create simple, delicious breakfast recipes built on Daily N'Oats products.",
		preparationRules,
		languageRules,
		"DAILY N'OATS PRODUCT CATALOG (SOURCE OF TRUTH):\n\n"+catalogSummary,
		`STRICT RULES:
- Every recipe MUST be built on at least one Daily N'Oats product from the catalog, referenced by "id".
- You MUST NOT invent product ids or mention other brands.
- Keep recipes low-carb and realistic for a home kitchen.
- Macros are per serving estimates in grams (calories in kcal).`,
	)

	user := section(
		"Create Daily N'Oats recipes for these preferences.",
		"PREFERENCES (JSON):\n"+toJSON(req),
		"ALLOWED BASE PRODUCTS:\n"+allowed,
		fmt.Sprintf(`OUTPUT FORMAT:
Return ONLY valid JSON (no markdown, no extra commentary) in this exact structure:

{
  "recipes": [
    {
      "title": "string",
      "description": "one or two sentences",
      "base_product_ids": ["product-id-from-catalog"],
      "ingredients": ["1 Daily N'Oats cup", "1/2 cup almond milk"],
      "steps": ["step one", "step two"],
      "macros": { "calories": 0, "net_carbs": 0, "protein": 0, "fiber": 0 },
      "tags": ["tag"],
      "servings": 1
    }
  ]
}

REQUIREMENTS:
- "recipes" must contain between 1 and %d items.
- Every "base_product_ids" entry MUST be one of the allowed base products.
- Use the requested number of servings when one is given.`, MaxRecipes),
	)

	return Prompts{System: system, User: user}
}

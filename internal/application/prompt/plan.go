package prompt

import (
	"fmt"

	"github.com/dailynoats/planner/internal/domain/planner"
)

// Bounds on the recommendation list the plan prompt asks for
const (
	MinRecommendations = 2
	MaxRecommendations = 6
)

// BuildPlanPrompts builds the instructions for a personalized breakfast plan.
// catalogSummary must be the full catalog view.
func BuildPlanPrompts(profile planner.CustomerProfile, catalogSummary string) Prompts {
	system := section(
		brandIntro+"\n\nYou design simple, realistic breakfast routines using ONLY Daily N'Oats products.",
		preparationRules,
		languageRules,
		"DAILY N'OATS PRODUCT CATALOG (SOURCE OF TRUTH):\n\n"+catalogSummary,
		`STRICT RULES:
- You may recommend ONLY products whose "id" appears in the catalog above.
- You MUST NOT mention or recommend any other brands or generic items
  (for example: do NOT mention "Classic Steel Cut Oats", "SCO-001",
  or any product not listed in the catalog).
- When you talk about a product, use its catalog name (e.g., "30-DAY RESET BUNDLE",
  "Naked N'Oats", "Daily N'Oats 6-Pack").
- Consider dietary preferences, allergens, health goals, and convenience.
- Favor bundles (e.g., 30-day reset or variety bundles) when the customer wants structure.
- For GLP-1 / weight loss / diabetes / blood sugar goals, prioritize:
  - 30-DAY RESET BUNDLE (weight-loss-bundle)
  - THE DAILY N'OATS GLP-1 BUNDLE (30-day-glp-bundle)
  - other high-protein, keto, sugar-free, gluten-free products.
- If a product contains nuts, avoid it when the customer indicates nut allergy.`,
		`Tone: warm, encouraging, practical. You do NOT give medical advice.
You always include a short disclaimer that the plan is general information only.`,
	)

	user := section(
		"Create a personalized Daily N'Oats breakfast plan for this customer.",
		"CUSTOMER PROFILE (JSON):\n"+toJSON(profile),
		`TASK:
1. Design a clear, easy-to-follow Daily N'Oats routine for 7–30 days.
2. Tie recommendations explicitly to Daily N'Oats products from the catalog by id.
3. Take into account:
   - goal (weight loss, GLP-1 support, gut health, energy, etc.)
   - dietary restrictions (keto, vegan, gluten-free, dairy-free, etc.)
   - health conditions (e.g., diabetes, pre-diabetes, high cholesterol)
   - activity_level (sedentary, moderately active, very active)
   - timing (breakfast, pre-workout, post-workout, snack)
   - flavor preferences
   - prep_time and convenience
4. Prefer a small number of core products that the customer can use consistently,
   with optional variety suggestions.`,
		`OUTPUT FORMAT:
Return ONLY valid JSON (no markdown, no extra commentary) in this exact structure:

{
  "plan_markdown": "string, a well-formatted Markdown plan that can be rendered on a web page",
  "recommended_products": [
    {
      "id": "product-id-from-catalog",
      "reason": "one or two short sentences explaining why this product is a good fit"
    }
  ]
}`,
		fmt.Sprintf(`REQUIREMENTS:
- "recommended_products" must contain between %d and %d items.
- Every "id" MUST match one of the product ids in the catalog.
- In "plan_markdown", mention the products by their names (not just ids).
- DO NOT embed JSON in the markdown. "recommended_products" must be a real JSON array.
- Include a short weekly prep guide and guidance for the first 2–4 weeks.
- End "plan_markdown" with a short disclaimer:
  "%s"`, MinRecommendations, MaxRecommendations, disclaimer),
	)

	return Prompts{System: system, User: user}
}

package prompt

import (
	"strings"

	"github.com/dailynoats/planner/internal/domain/planner"
)

// ImageExtractionInstruction asks a vision model for the recipe text only
const ImageExtractionInstruction = `You transcribe recipes from photos and screenshots.
Return ONLY the recipe text you can read: title, ingredient list with quantities,
and the method steps, in reading order. Do not add commentary, do not guess
missing quantities, and do not translate. If no recipe text is visible, return an empty string.`

// BuildConversionPrompts builds the instructions for converting an arbitrary
// recipe into a lower-carb Daily N'Oats version. There is no catalog
// constraint here; the reply is a free-form transformation.
func BuildConversionPrompts(payload planner.ConversionPayload) Prompts {
	system := section(
		brandIntro+`

You convert traditional recipes (oatmeal, overnight oats, porridge, baked oats,
pancakes, muffins and similar) into low-carb Daily N'Oats versions while keeping
the spirit and flavor of the original.`,
		preparationRules,
		languageRules,
		`HONESTY RULES (IMPORTANT):
- Never invent ingredients or quantities that are not in the original recipe.
- If the recipe text is incomplete, unreadable, or not a recipe, set "status" to
  "partial" or "error", lower "confidence_score" accordingly, and explain what is
  missing in "warnings". Do NOT fabricate confidence.
- Nutrition values are estimates; say so in "notes" when uncertain.`,
	)

	var user strings.Builder
	user.WriteString("Convert this recipe into a Daily N'Oats version.\n\n")
	if payload.SourceURL != "" {
		user.WriteString("SOURCE URL: " + payload.SourceURL + "\n\n")
	}
	user.WriteString("ORIGINAL RECIPE TEXT:\n\"\"\"\n")
	user.WriteString(payload.RecipeText)
	user.WriteString("\n\"\"\"\n\n")
	user.WriteString("DIETARY RESTRICTIONS (JSON):\n" + toJSON(nonNil(payload.DietaryRestrictions)) + "\n\n")
	if payload.UserPreferences != "" {
		user.WriteString("USER PREFERENCES:\n" + payload.UserPreferences + "\n\n")
	}
	user.WriteString(`OUTPUT FORMAT:
Return ONLY valid JSON (no markdown, no extra commentary) in this exact structure:

{
  "status": "success | partial | error",
  "original_recipe": {
    "title": "string",
    "ingredients": ["string"],
    "steps": ["string"],
    "timing": { "prep_minutes": 0, "cook_minutes": 0, "total_minutes": 0 },
    "servings": 1,
    "nutrition_estimate": { "calories": 0, "net_carbs": 0, "protein": 0, "fiber": 0, "fat": 0, "sugar": 0 }
  },
  "converted_recipe": {
    "title": "string",
    "ingredients": ["string"],
    "steps": ["string"],
    "timing": { "prep_minutes": 0, "cook_minutes": 0, "total_minutes": 0 },
    "servings": 1,
    "nutrition_estimate": { "calories": 0, "net_carbs": 0, "protein": 0, "fiber": 0, "fat": 0, "sugar": 0 },
    "nutrition_per_serving": { "calories": 0, "net_carbs": 0, "protein": 0, "fiber": 0, "fat": 0, "sugar": 0 },
    "notes": ["string"]
  },
  "nutritional_comparison": {
    "original": { "calories": 0, "net_carbs": 0, "protein": 0, "fiber": 0, "fat": 0, "sugar": 0 },
    "converted": { "calories": 0, "net_carbs": 0, "protein": 0, "fiber": 0, "fat": 0, "sugar": 0 },
    "percent_reduction": { "calories": 0, "net_carbs": 0, "sugar": 0 }
  },
  "confidence_score": 0.0,
  "warnings": ["string"],
  "suggested_variations": ["string"]
}

REQUIREMENTS:
- "confidence_score" is a number between 0 and 1.
- Use "partial" when some of the original could not be converted or was missing.
- Use "error" when the input is not a recipe; leave the recipe objects empty.
- Respect every dietary restriction; mention conflicts in "warnings".`)

	return Prompts{System: system, User: user.String()}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

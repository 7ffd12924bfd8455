package sanitize

import (
	"strings"

	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/tidwall/gjson"
)

// NeutralConfidence is used when the model omits a confidence score
const NeutralConfidence = 0.5

// WarningMissingStatus is appended when the reply has no usable status
const WarningMissingStatus = "status missing from model reply"

// ConversionResponse normalizes a conversion reply. There is no catalog
// check; every sub-object is defaulted so the result is always complete.
// An absent or unknown status becomes "partial" rather than "success".
func ConversionResponse(raw string) (planner.ConversionResult, error) {
	root, err := parse(raw)
	if err != nil {
		return planner.ConversionResult{}, err
	}

	result := planner.ConversionResult{
		OriginalRecipe:      details(root.Get("original_recipe")),
		Warnings:            textList(root.Get("warnings")),
		SuggestedVariations: textList(root.Get("suggested_variations")),
		ConfidenceScore:     NeutralConfidence,
	}

	status := planner.ConversionStatus(strings.ToLower(text(root.Get("status"))))
	if !status.Valid() {
		status = planner.StatusPartial
		result.Warnings = append(result.Warnings, WarningMissingStatus)
	}
	result.Status = status

	converted := root.Get("converted_recipe")
	result.ConvertedRecipe = planner.ConvertedRecipe{
		RecipeDetails:       details(converted),
		NutritionPerServing: nutrition(converted.Get("nutrition_per_serving")),
		Notes:               textList(converted.Get("notes")),
	}

	if score := root.Get("confidence_score"); score.Type == gjson.Number || score.Type == gjson.String {
		result.ConfidenceScore = clamp01(number(score))
	}

	comparison := root.Get("nutritional_comparison")
	result.NutritionalComparison = planner.NutritionalComparison{
		Original:  nutrition(comparison.Get("original")),
		Converted: nutrition(comparison.Get("converted")),
	}
	reduction := comparison.Get("percent_reduction")
	if reduction.IsObject() {
		result.NutritionalComparison.PercentReduction = planner.PercentReduction{
			Calories: round1(number(reduction.Get("calories"))),
			NetCarbs: round1(number(reduction.Get("net_carbs"))),
			Sugar:    round1(number(reduction.Get("sugar"))),
		}
	} else {
		o, c := result.NutritionalComparison.Original, result.NutritionalComparison.Converted
		result.NutritionalComparison.PercentReduction = planner.PercentReduction{
			Calories: percentLower(o.Calories, c.Calories),
			NetCarbs: percentLower(o.NetCarbs, c.NetCarbs),
			Sugar:    percentLower(o.Sugar, c.Sugar),
		}
	}

	return result, nil
}

func details(obj gjson.Result) planner.RecipeDetails {
	timing := obj.Get("timing")
	return planner.RecipeDetails{
		Title:       text(obj.Get("title")),
		Ingredients: textList(obj.Get("ingredients")),
		Steps:       textList(obj.Get("steps")),
		Timing: planner.Timing{
			PrepMinutes:  wholeNumber(timing.Get("prep_minutes")),
			CookMinutes:  wholeNumber(timing.Get("cook_minutes")),
			TotalMinutes: wholeNumber(timing.Get("total_minutes")),
		},
		Servings:          wholeNumber(obj.Get("servings")),
		NutritionEstimate: nutrition(obj.Get("nutrition_estimate")),
	}
}

func nutrition(obj gjson.Result) planner.Nutrition {
	return planner.Nutrition{
		Calories: nonNegative(number(obj.Get("calories"))),
		NetCarbs: nonNegative(number(obj.Get("net_carbs"))),
		Protein:  nonNegative(number(obj.Get("protein"))),
		Fiber:    nonNegative(number(obj.Get("fiber"))),
		Fat:      nonNegative(number(obj.Get("fat"))),
		Sugar:    nonNegative(number(obj.Get("sugar"))),
	}
}

func percentLower(original, converted float64) float64 {
	if original <= 0 {
		return 0
	}
	return round1((original - converted) / original * 100)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

package planner

// ConversionStatus is the outcome the model reports for a recipe conversion
type ConversionStatus string

const (
	StatusSuccess ConversionStatus = "success"
	StatusPartial ConversionStatus = "partial"
	StatusError   ConversionStatus = "error"
)

// Valid reports whether s is one of the known statuses
func (s ConversionStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusPartial, StatusError:
		return true
	}
	return false
}

// ImageInput is an uploaded image, base64 encoded
type ImageInput struct {
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// IsPDF reports whether the upload is a PDF document
func (i ImageInput) IsPDF() bool {
	return i.MimeType == "application/pdf"
}

// ConversionRequest is a recipe to rework into a Daily N'Oats version
type ConversionRequest struct {
	RecipeText          string
	Images              []ImageInput
	RecipeURL           string
	DietaryRestrictions []string
	UserPreferences     string
}

// ConversionPayload is what the conversion prompt is built from, after
// images and URLs have been turned into text
type ConversionPayload struct {
	RecipeText          string   `json:"recipe_text"`
	SourceURL           string   `json:"source_url,omitempty"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	UserPreferences     string   `json:"user_preferences,omitempty"`
}

// Timing is preparation time in minutes
type Timing struct {
	PrepMinutes  int `json:"prep_minutes"`
	CookMinutes  int `json:"cook_minutes"`
	TotalMinutes int `json:"total_minutes"`
}

// Nutrition is a macro snapshot
type Nutrition struct {
	Calories float64 `json:"calories"`
	NetCarbs float64 `json:"net_carbs"`
	Protein  float64 `json:"protein"`
	Fiber    float64 `json:"fiber"`
	Fat      float64 `json:"fat"`
	Sugar    float64 `json:"sugar"`
}

// RecipeDetails describes one side of a conversion
type RecipeDetails struct {
	Title             string    `json:"title"`
	Ingredients       []string  `json:"ingredients"`
	Steps             []string  `json:"steps"`
	Timing            Timing    `json:"timing"`
	Servings          int       `json:"servings"`
	NutritionEstimate Nutrition `json:"nutrition_estimate"`
}

// ConvertedRecipe is the reworked recipe
type ConvertedRecipe struct {
	RecipeDetails
	NutritionPerServing Nutrition `json:"nutrition_per_serving"`
	Notes               []string  `json:"notes"`
}

// PercentReduction is how much lower the converted recipe is, per macro
type PercentReduction struct {
	Calories float64 `json:"calories"`
	NetCarbs float64 `json:"net_carbs"`
	Sugar    float64 `json:"sugar"`
}

// NutritionalComparison compares original and converted macros
type NutritionalComparison struct {
	Original         Nutrition        `json:"original"`
	Converted        Nutrition        `json:"converted"`
	PercentReduction PercentReduction `json:"percent_reduction"`
}

// ConversionResult is returned by the recipe conversion route. It is not
// checked against the catalog.
type ConversionResult struct {
	Status                ConversionStatus      `json:"status"`
	OriginalRecipe        RecipeDetails         `json:"original_recipe"`
	ConvertedRecipe       ConvertedRecipe       `json:"converted_recipe"`
	NutritionalComparison NutritionalComparison `json:"nutritional_comparison"`
	ConfidenceScore       float64               `json:"confidence_score"`
	Warnings              []string              `json:"warnings"`
	SuggestedVariations   []string              `json:"suggested_variations"`
}

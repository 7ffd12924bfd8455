package planner

// RecipeRequest carries the preferences for simple recipe generation
type RecipeRequest struct {
	Goal           *string  `json:"goal"`
	Dietary        []string `json:"dietary"`
	Flavors        []string `json:"flavors"`
	PrepTime       *string  `json:"prep_time"`
	Style          *string  `json:"style"`
	BaseProductIDs []string `json:"base_product_ids"`
	Servings       int      `json:"servings"`
}

// BaseProduct references the catalog product a recipe is built on
type BaseProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecipeMacros is a per-serving macro estimate
type RecipeMacros struct {
	Calories float64 `json:"calories"`
	NetCarbs float64 `json:"net_carbs"`
	Protein  float64 `json:"protein"`
	Fiber    float64 `json:"fiber"`
}

// Recipe is a generated recipe. BaseProducts only ever holds catalog products
// and may be empty when none of the model's ids were real.
type Recipe struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	BaseProducts []BaseProduct `json:"base_products"`
	Ingredients  []string      `json:"ingredients"`
	Steps        []string      `json:"steps"`
	Macros       RecipeMacros  `json:"macros"`
	Tags         []string      `json:"tags"`
	Servings     int           `json:"servings"`
}

// RecipesResult is returned by the recipes route
type RecipesResult struct {
	Recipes       []Recipe `json:"recipes"`
	TransformLink string   `json:"transform_link,omitempty"`
}

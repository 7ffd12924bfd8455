package planner

import "time"

// RecommendedProduct is a catalog product the model recommended, annotated
// with the catalog's own attributes. ID is always a catalog identifier.
type RecommendedProduct struct {
	ID       string   `json:"id"`
	Reason   string   `json:"reason"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Dietary  []string `json:"dietary"`
	NetCarbs float64  `json:"netCarbs"`
	Protein  float64  `json:"protein"`
	Fiber    float64  `json:"fiber"`
}

// SanitizedPlan is the validated content of a plan reply
type SanitizedPlan struct {
	PlanMarkdown    string               `json:"plan_markdown"`
	Recommendations []RecommendedProduct `json:"recommended_products"`
}

// PlanResult is returned by the plan route
type PlanResult struct {
	ID string `json:"plan_id,omitempty"`
	SanitizedPlan
	TransformLink string    `json:"transform_link,omitempty"`
	CreatedAt     time.Time `json:"-"`
}

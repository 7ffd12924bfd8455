// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"

	"github.com/dailynoats/planner/internal/domain/planner"
)

// PlannerService defines the use cases behind the HTTP routes
type PlannerService interface {
	// CreatePlan builds a breakfast plan restricted to catalog products
	CreatePlan(ctx context.Context, input planner.ProfileInput) (*planner.PlanResult, error)
	// GenerateRecipes builds up to three recipes around catalog products
	GenerateRecipes(ctx context.Context, req planner.RecipeRequest) (*planner.RecipesResult, error)
	// ConvertRecipe reworks a user's recipe into a Daily N'Oats version
	ConvertRecipe(ctx context.Context, req planner.ConversionRequest) (*planner.ConversionResult, error)
	// GetPlan returns an archived plan
	GetPlan(ctx context.Context, id string) (*planner.PlanResult, error)
}

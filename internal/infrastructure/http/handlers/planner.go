// Package handlers implements the HTTP adapters for the planner use cases
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/dailynoats/planner/internal/ports/inbound"
	apperrors "github.com/dailynoats/planner/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// PlannerHandler serves the plan, recipe and conversion routes. Errors are
// recorded with c.Error and rendered by the error middleware.
type PlannerHandler struct {
	service inbound.PlannerService
	logger  *zap.Logger
}

// NewPlannerHandler creates the handler
func NewPlannerHandler(service inbound.PlannerService, logger *zap.Logger) *PlannerHandler {
	RegisterValidators()
	return &PlannerHandler{
		service: service,
		logger:  logger.Named("planner-handler"),
	}
}

// RegisterRoutes mounts the routes on the /api group
func (h *PlannerHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/nutrition-plan", h.CreatePlan)
	api.GET("/nutrition-plan/:id", h.GetPlan)
	api.POST("/recipes", h.GenerateRecipes)
	api.POST("/recipe-convert", h.ConvertRecipe)
}

// CreatePlan handles POST /api/nutrition-plan
func (h *PlannerHandler) CreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.service.CreatePlan(c.Request.Context(), req.ToInput())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPlan handles GET /api/nutrition-plan/:id
func (h *PlannerHandler) GetPlan(c *gin.Context) {
	result, err := h.service.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GenerateRecipes handles POST /api/recipes
func (h *PlannerHandler) GenerateRecipes(c *gin.Context) {
	var req RecipesRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.service.GenerateRecipes(c.Request.Context(), req.ToRequest())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ConvertRecipe handles POST /api/recipe-convert
func (h *PlannerHandler) ConvertRecipe(c *gin.Context) {
	var req ConvertRequest
	if err := bindJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.service.ConvertRecipe(c.Request.Context(), req.ToRequest())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// bindJSON decodes and validates the body. An empty body binds as {}.
func bindJSON(c *gin.Context, dst interface{}) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return err
	}

	if errors.Is(err, io.EOF) {
		if verr := binding.Validator.ValidateStruct(dst); verr != nil {
			return validationError(verr)
		}
		return nil
	}

	return validationError(err)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.NewInvalidInputError(validationMessage(verrs[0])).WithCause(err)
	}
	return apperrors.NewInvalidInputError("Request body must be a JSON object with the documented fields.").WithCause(err)
}

package handlers

import (
	"encoding/base64"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// PlanRequest is the body of POST /api/nutrition-plan
type PlanRequest struct {
	Email            string             `json:"email" binding:"omitempty,email,max=254"`
	Goal             string             `json:"goal" binding:"max=200"`
	Restrictions     planner.StringList `json:"restrictions" binding:"max=20,dive,max=100"`
	HealthConditions planner.StringList `json:"health_conditions" binding:"max=20,dive,max=100"`
	ActivityLevel    string             `json:"activity_level" binding:"max=100"`
	Timing           planner.StringList `json:"timing" binding:"max=20,dive,max=100"`
	Flavors          planner.StringList `json:"flavors" binding:"max=20,dive,max=100"`
	PrepTime         string             `json:"prep_time" binding:"max=100"`
	Priority         string             `json:"priority" binding:"max=200"`
}

// ToInput converts the request to the service input
func (r PlanRequest) ToInput() planner.ProfileInput {
	return planner.ProfileInput{
		Email:            r.Email,
		Goal:             r.Goal,
		Restrictions:     r.Restrictions,
		HealthConditions: r.HealthConditions,
		ActivityLevel:    r.ActivityLevel,
		Timing:           r.Timing,
		Flavors:          r.Flavors,
		PrepTime:         r.PrepTime,
		Priority:         r.Priority,
	}
}

// RecipesRequest is the body of POST /api/recipes
type RecipesRequest struct {
	Goal           string             `json:"goal" binding:"max=200"`
	Dietary        planner.StringList `json:"dietary" binding:"max=20,dive,max=100"`
	Flavors        planner.StringList `json:"flavors" binding:"max=20,dive,max=100"`
	PrepTime       string             `json:"prep_time" binding:"max=100"`
	Style          string             `json:"style" binding:"max=200"`
	BaseProductIDs planner.StringList `json:"base_product_ids" binding:"max=20,dive,max=100"`
	Servings       int                `json:"servings" binding:"omitempty,min=1,max=12"`
}

// ToRequest converts the body to the service request
func (r RecipesRequest) ToRequest() planner.RecipeRequest {
	return planner.RecipeRequest{
		Goal:           optional(r.Goal),
		Dietary:        r.Dietary,
		Flavors:        r.Flavors,
		PrepTime:       optional(r.PrepTime),
		Style:          optional(r.Style),
		BaseProductIDs: r.BaseProductIDs,
		Servings:       r.Servings,
	}
}

// ImageUpload is a base64 image, optionally wrapped in a data URL
type ImageUpload struct {
	Data     string `json:"data" binding:"required,dataurl_image"`
	MimeType string `json:"mime_type" binding:"omitempty,oneof=image/jpeg image/png image/webp image/gif image/heic image/heif application/pdf"`
}

// ConvertRequest is the body of POST /api/recipe-convert
type ConvertRequest struct {
	RecipeText          string             `json:"recipe_text" binding:"max=50000"`
	Images              []ImageUpload      `json:"images" binding:"max=5,dive"`
	RecipeURL           string             `json:"recipe_url" binding:"omitempty,url,max=2048"`
	DietaryRestrictions planner.StringList `json:"dietary_restrictions" binding:"max=20,dive,max=100"`
	UserPreferences     string             `json:"user_preferences" binding:"max=2000"`
}

// ToRequest converts the body to the service request. Data URLs are split
// into their media type and payload.
func (r ConvertRequest) ToRequest() planner.ConversionRequest {
	images := make([]planner.ImageInput, 0, len(r.Images))
	for _, img := range r.Images {
		mime, data := splitDataURL(img.Data)
		if img.MimeType != "" {
			mime = img.MimeType
		}
		images = append(images, planner.ImageInput{Data: data, MimeType: mime})
	}
	return planner.ConversionRequest{
		RecipeText:          r.RecipeText,
		Images:              images,
		RecipeURL:           r.RecipeURL,
		DietaryRestrictions: r.DietaryRestrictions,
		UserPreferences:     r.UserPreferences,
	}
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// splitDataURL returns the media type and base64 payload of a data URL.
// Bare base64 is returned unchanged with an empty media type.
func splitDataURL(s string) (string, string) {
	if !strings.HasPrefix(s, "data:") {
		return "", s
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return "", s
	}
	return strings.TrimSuffix(meta, ";base64"), payload
}

func validImageData(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.HasPrefix(s, "data:") {
		meta, _, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return false
		}
		_, s = splitDataURL(s)
	}
	if s == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules and reports fields by
// their JSON names
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("dataurl_image", validImageData)
	})
}

// validationMessage turns the first failed rule into a user facing sentence
func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", field)
	case "email":
		return "Please provide a valid email address."
	case "url":
		return "recipe_url must be a full http or https link."
	case "dataurl_image":
		return "Each image must be base64 encoded data."
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s.", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s.", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s can have at most %s entries.", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s.", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid.", field)
	}
}

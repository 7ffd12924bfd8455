// Package gorm provides GORM model definitions and repositories
package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanModel is an archived nutrition plan
type PlanModel struct {
	ID              uuid.UUID          `gorm:"type:char(36);primaryKey"`
	Email           *string            `gorm:"type:varchar(255);index"`
	Goal            *string            `gorm:"type:varchar(255)"`
	Restrictions    StringSlice        `gorm:"type:json"`
	PlanMarkdown    string             `gorm:"type:text;not null"`
	Recommendations RecommendationList `gorm:"type:json"`
	CreatedAt       time.Time          `gorm:"index"`
}

// TableName pins the table name
func (PlanModel) TableName() string {
	return "plans"
}

// BeforeCreate hook for PlanModel
func (p *PlanModel) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// StringSlice custom type for handling string slices in JSON
type StringSlice []string

// Scan implements the sql.Scanner interface
func (s *StringSlice) Scan(value interface{}) error {
	return scanJSON(value, s, func() { *s = StringSlice{} })
}

// Value implements the driver.Valuer interface
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// RecommendationList stores annotated recommendations as JSON
type RecommendationList []planner.RecommendedProduct

// Scan implements the sql.Scanner interface
func (r *RecommendationList) Scan(value interface{}) error {
	return scanJSON(value, r, func() { *r = RecommendationList{} })
}

// Value implements the driver.Valuer interface
func (r RecommendationList) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(r)
	return string(b), err
}

func scanJSON(value interface{}, dest interface{}, empty func()) error {
	switch v := value.(type) {
	case nil:
		empty()
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
}

// PlanToModel maps an archived plan and its profile to a row
func PlanToModel(plan planner.PlanResult, profile planner.CustomerProfile) (*PlanModel, error) {
	id, err := uuid.Parse(plan.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid plan id %q: %w", plan.ID, err)
	}
	return &PlanModel{
		ID:              id,
		Email:           profile.Email,
		Goal:            profile.Goal,
		Restrictions:    StringSlice(profile.Restrictions),
		PlanMarkdown:    plan.PlanMarkdown,
		Recommendations: RecommendationList(plan.Recommendations),
		CreatedAt:       plan.CreatedAt,
	}, nil
}

// ModelToPlan maps a row back to the plan shape served by the API
func ModelToPlan(m *PlanModel) *planner.PlanResult {
	recs := []planner.RecommendedProduct(m.Recommendations)
	if recs == nil {
		recs = []planner.RecommendedProduct{}
	}
	return &planner.PlanResult{
		ID: m.ID.String(),
		SanitizedPlan: planner.SanitizedPlan{
			PlanMarkdown:    m.PlanMarkdown,
			Recommendations: recs,
		},
		CreatedAt: m.CreatedAt,
	}
}

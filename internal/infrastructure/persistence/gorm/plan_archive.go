package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/dailynoats/planner/internal/ports/outbound"
	apperrors "github.com/dailynoats/planner/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlanArchive implements outbound.PlanArchive using GORM
type PlanArchive struct {
	db *gorm.DB
}

var _ outbound.PlanArchive = (*PlanArchive)(nil)

// NewPlanArchive creates a new plan archive
func NewPlanArchive(db *gorm.DB) *PlanArchive {
	return &PlanArchive{db: db}
}

// Save stores a plan. Saving the same id twice overwrites the first row.
func (a *PlanArchive) Save(ctx context.Context, plan planner.PlanResult, profile planner.CustomerProfile) error {
	model, err := PlanToModel(plan, profile)
	if err != nil {
		return err
	}
	if err := a.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save plan %s: %w", plan.ID, err)
	}
	return nil
}

// FindByID returns the plan with the given id
func (a *PlanArchive) FindByID(ctx context.Context, id string) (*planner.PlanResult, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.NewInvalidInputError("Plan id must be a UUID.")
	}

	var model PlanModel
	err = a.db.WithContext(ctx).First(&model, "id = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("Plan")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to load plan").WithCause(err)
	}

	return ModelToPlan(&model), nil
}

// Ping checks the database connection
func (a *PlanArchive) Ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool
func (a *PlanArchive) Close() error {
	return Close(a.db)
}

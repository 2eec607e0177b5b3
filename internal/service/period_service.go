package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/academia-dev/academia-api/internal/models"
	appErrors "github.com/academia-dev/academia-api/pkg/errors"
)

type periodRepository interface {
	ListByYear(ctx context.Context, academicYearID string) ([]models.Period, error)
	FindByID(ctx context.Context, id string) (*models.Period, error)
	Create(ctx context.Context, period *models.Period) error
	Update(ctx context.Context, period *models.Period) error
	Delete(ctx context.Context, id string) error
}

// CreatePeriodRequest captures creation payload.
type CreatePeriodRequest struct {
	AcademicYearID string    `json:"academic_year_id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	StartDate      time.Time `json:"start_date" validate:"required"`
	EndDate        time.Time `json:"end_date" validate:"required"`
}

// UpdatePeriodRequest modifies period fields.
type UpdatePeriodRequest struct {
	Name      string    `json:"name" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// PeriodService coordinates grading period operations. Periods of one
// academic year never overlap and always sit inside the year's bounds.
type PeriodService struct {
	repo      periodRepository
	years     academicYearReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPeriodService constructs PeriodService.
func NewPeriodService(repo periodRepository, years academicYearReader, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{repo: repo, years: years, validator: validate, logger: logger}
}

// ListByYear returns the periods of an academic year ordered by start date.
func (s *PeriodService) ListByYear(ctx context.Context, academicYearID string) ([]models.Period, error) {
	if _, err := s.years.FindByID(ctx, academicYearID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	periods, err := s.repo.ListByYear(ctx, academicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	return periods, nil
}

// Get returns a single period.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.Period, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	return period, nil
}

// Create adds a new period inside an academic year.
func (s *PeriodService) Create(ctx context.Context, req CreatePeriodRequest) (*models.Period, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}

	year, err := s.years.FindByID(ctx, req.AcademicYearID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	candidate := &models.Period{
		AcademicYearID: req.AcademicYearID,
		Name:           req.Name,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	}
	if err := s.validatePlacement(ctx, year, candidate); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, candidate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create period")
	}
	return candidate, nil
}

// Update modifies a period keeping the year's non-overlap invariant.
func (s *PeriodService) Update(ctx context.Context, id string, req UpdatePeriodRequest) (*models.Period, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}
	if !req.StartDate.Before(req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date must precede end date")
	}

	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}

	year, err := s.years.FindByID(ctx, period.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}

	period.Name = req.Name
	period.StartDate = req.StartDate
	period.EndDate = req.EndDate

	if err := s.validatePlacement(ctx, year, period); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
	}
	return period, nil
}

// Delete removes a period. Assignments reference periods informationally, so
// deletion needs no assignment guard.
func (s *PeriodService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete period")
	}
	return nil
}

// validatePlacement enforces two invariants: the period sits inside the
// year's bounds, and it does not overlap a sibling period of the same year.
func (s *PeriodService) validatePlacement(ctx context.Context, year *models.AcademicYear, candidate *models.Period) error {
	if candidate.StartDate.Before(year.StartDate) || candidate.EndDate.After(year.EndDate) {
		return appErrors.Clone(appErrors.ErrValidation, "period must fall within the academic year")
	}

	siblings, err := s.repo.ListByYear(ctx, candidate.AcademicYearID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	for _, sibling := range siblings {
		if sibling.ID == candidate.ID {
			continue
		}
		if candidate.StartDate.Before(sibling.EndDate) && sibling.StartDate.Before(candidate.EndDate) {
			return appErrors.Clone(appErrors.ErrConflict, "period overlaps "+sibling.Name)
		}
	}
	return nil
}

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-dev/academia-api/internal/models"
	appErrors "github.com/academia-dev/academia-api/pkg/errors"
)

type stubPeriodRepo struct {
	periods []models.Period
	created *models.Period
	updated *models.Period
	deleted []string
}

func (s *stubPeriodRepo) ListByYear(ctx context.Context, academicYearID string) ([]models.Period, error) {
	var out []models.Period
	for _, p := range s.periods {
		if p.AcademicYearID == academicYearID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPeriodRepo) FindByID(ctx context.Context, id string) (*models.Period, error) {
	for i := range s.periods {
		if s.periods[i].ID == id {
			p := s.periods[i]
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubPeriodRepo) Create(ctx context.Context, period *models.Period) error {
	if period.ID == "" {
		period.ID = "new-period"
	}
	s.created = period
	return nil
}

func (s *stubPeriodRepo) Update(ctx context.Context, period *models.Period) error {
	s.updated = period
	return nil
}

func (s *stubPeriodRepo) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func date(month time.Month, day int) time.Time {
	return time.Date(2024, month, day, 0, 0, 0, 0, time.UTC)
}

func newTestPeriodService(repo *stubPeriodRepo) *PeriodService {
	refs := defaultReferences()
	refs.years["year-2024"].StartDate = date(time.August, 1)
	refs.years["year-2024"].EndDate = time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	return NewPeriodService(repo, stubYearReader{refs}, nil, nil)
}

func TestPeriodServiceCreate(t *testing.T) {
	repo := &stubPeriodRepo{}
	svc := newTestPeriodService(repo)

	period, err := svc.Create(context.Background(), CreatePeriodRequest{
		AcademicYearID: "year-2024",
		Name:           "First Semester",
		StartDate:      date(time.August, 1),
		EndDate:        date(time.December, 20),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, period.ID)
	assert.Equal(t, "First Semester", repo.created.Name)
}

func TestPeriodServiceCreateOutsideYear(t *testing.T) {
	svc := newTestPeriodService(&stubPeriodRepo{})

	_, err := svc.Create(context.Background(), CreatePeriodRequest{
		AcademicYearID: "year-2024",
		Name:           "Early Term",
		StartDate:      date(time.June, 1),
		EndDate:        date(time.September, 1),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPeriodServiceCreateOverlap(t *testing.T) {
	repo := &stubPeriodRepo{periods: []models.Period{{
		ID:             "period-1",
		AcademicYearID: "year-2024",
		Name:           "First Semester",
		StartDate:      date(time.August, 1),
		EndDate:        date(time.December, 20),
	}}}
	svc := newTestPeriodService(repo)

	_, err := svc.Create(context.Background(), CreatePeriodRequest{
		AcademicYearID: "year-2024",
		Name:           "Overlapping Term",
		StartDate:      date(time.December, 1),
		EndDate:        time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created)
}

func TestPeriodServiceCreateAdjacentAllowed(t *testing.T) {
	repo := &stubPeriodRepo{periods: []models.Period{{
		ID:             "period-1",
		AcademicYearID: "year-2024",
		Name:           "First Semester",
		StartDate:      date(time.August, 1),
		EndDate:        date(time.December, 20),
	}}}
	svc := newTestPeriodService(repo)

	_, err := svc.Create(context.Background(), CreatePeriodRequest{
		AcademicYearID: "year-2024",
		Name:           "Second Semester",
		StartDate:      date(time.December, 20),
		EndDate:        time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
}

func TestPeriodServiceCreateInvertedDates(t *testing.T) {
	svc := newTestPeriodService(&stubPeriodRepo{})

	_, err := svc.Create(context.Background(), CreatePeriodRequest{
		AcademicYearID: "year-2024",
		Name:           "Backwards",
		StartDate:      date(time.December, 1),
		EndDate:        date(time.September, 1),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPeriodServiceUpdateExcludesSelf(t *testing.T) {
	repo := &stubPeriodRepo{periods: []models.Period{{
		ID:             "period-1",
		AcademicYearID: "year-2024",
		Name:           "First Semester",
		StartDate:      date(time.August, 1),
		EndDate:        date(time.December, 20),
	}}}
	svc := newTestPeriodService(repo)

	period, err := svc.Update(context.Background(), "period-1", UpdatePeriodRequest{
		Name:      "First Semester",
		StartDate: date(time.August, 15),
		EndDate:   date(time.December, 20),
	})
	require.NoError(t, err)
	assert.Equal(t, date(time.August, 15), period.StartDate)
}

func TestPeriodServiceUpdateNotFound(t *testing.T) {
	svc := newTestPeriodService(&stubPeriodRepo{})

	_, err := svc.Update(context.Background(), "missing", UpdatePeriodRequest{
		Name:      "Anything",
		StartDate: date(time.August, 1),
		EndDate:   date(time.September, 1),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPeriodServiceDelete(t *testing.T) {
	repo := &stubPeriodRepo{periods: []models.Period{{
		ID:             "period-1",
		AcademicYearID: "year-2024",
	}}}
	svc := newTestPeriodService(repo)

	require.NoError(t, svc.Delete(context.Background(), "period-1"))
	assert.Equal(t, []string{"period-1"}, repo.deleted)
}

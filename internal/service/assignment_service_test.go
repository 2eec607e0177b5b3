package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-dev/academia-api/internal/models"
	appErrors "github.com/academia-dev/academia-api/pkg/errors"
)

type stubAssignmentRepo struct {
	assignments []models.Assignment
	createErr   error
	updateErr   error
	created     *models.Assignment
	updated     *models.Assignment
	deleted     []string
}

func (s *stubAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	return s.assignments, len(s.assignments), nil
}

func (s *stubAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	for i := range s.assignments {
		if s.assignments[i].ID == id {
			a := s.assignments[i]
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubAssignmentRepo) FindDetailByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	if s.created != nil && s.created.ID == id {
		return &models.AssignmentDetail{Assignment: *s.created}, nil
	}
	if s.updated != nil && s.updated.ID == id {
		return &models.AssignmentDetail{Assignment: *s.updated}, nil
	}
	a, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.AssignmentDetail{Assignment: *a}, nil
}

func (s *stubAssignmentRepo) ListActiveByYear(ctx context.Context, academicYearID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.AcademicYearID == academicYearID && a.Status == models.AssignmentActive && a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAssignmentRepo) ListActive(ctx context.Context) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range s.assignments {
		if a.Status == models.AssignmentActive && a.DeletedAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if s.createErr != nil {
		return s.createErr
	}
	if assignment.ID == "" {
		assignment.ID = "new-assignment"
	}
	s.created = assignment
	return nil
}

func (s *stubAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = assignment
	return nil
}

func (s *stubAssignmentRepo) SoftDelete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubReferences struct {
	teachers map[string]*models.Teacher
	subjects map[string]*models.Subject
	groups   map[string]*models.Group
	slots    map[string]*models.TimeSlot
	years    map[string]*models.AcademicYear
	periods  map[string]*models.Period
}

type stubTeacherReader struct{ refs *stubReferences }

func (s stubTeacherReader) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := s.refs.teachers[id]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

type stubSubjectReader struct{ refs *stubReferences }

func (s stubSubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if sub, ok := s.refs.subjects[id]; ok {
		return sub, nil
	}
	return nil, sql.ErrNoRows
}

type stubGroupReader struct{ refs *stubReferences }

func (s stubGroupReader) FindByID(ctx context.Context, id string) (*models.Group, error) {
	if g, ok := s.refs.groups[id]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

type stubSlotReader struct{ refs *stubReferences }

func (s stubSlotReader) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	if slot, ok := s.refs.slots[id]; ok {
		return slot, nil
	}
	return nil, sql.ErrNoRows
}

type stubYearReader struct{ refs *stubReferences }

func (s stubYearReader) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	if y, ok := s.refs.years[id]; ok {
		return y, nil
	}
	return nil, sql.ErrNoRows
}

type stubPeriodReader struct{ refs *stubReferences }

func (s stubPeriodReader) FindByID(ctx context.Context, id string) (*models.Period, error) {
	if p, ok := s.refs.periods[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func defaultReferences() *stubReferences {
	return &stubReferences{
		teachers: map[string]*models.Teacher{
			"teacher-1": {ID: "teacher-1", Active: true},
			"teacher-2": {ID: "teacher-2", Active: true},
			"teacher-3": {ID: "teacher-3", Active: false},
		},
		subjects: map[string]*models.Subject{
			"subject-1": {ID: "subject-1"},
		},
		groups: map[string]*models.Group{
			"group-1": {ID: "group-1", AcademicYearID: "year-2024"},
			"group-2": {ID: "group-2", AcademicYearID: "year-2024"},
		},
		slots: map[string]*models.TimeSlot{
			"slot-1": {ID: "slot-1"},
			"slot-2": {ID: "slot-2"},
		},
		years: map[string]*models.AcademicYear{
			"year-2024": {ID: "year-2024"},
		},
		periods: map[string]*models.Period{
			"period-1": {ID: "period-1", AcademicYearID: "year-2024"},
		},
	}
}

func newTestAssignmentService(repo *stubAssignmentRepo) *AssignmentService {
	refs := defaultReferences()
	cache := NewCacheService(nil, nil, 0, nil, false)
	return NewAssignmentService(
		repo,
		stubTeacherReader{refs},
		stubSubjectReader{refs},
		stubGroupReader{refs},
		stubSlotReader{refs},
		stubYearReader{refs},
		stubPeriodReader{refs},
		cache,
		nil,
		nil,
		nil,
	)
}

func existingAssignment() models.Assignment {
	return models.Assignment{
		ID:             "a-1",
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      models.Monday,
		AcademicYearID: "year-2024",
		Status:         models.AssignmentActive,
	}
}

func TestAssignmentServiceCreate(t *testing.T) {
	repo := &stubAssignmentRepo{}
	svc := newTestAssignmentService(repo)

	detail, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "monday",
		AcademicYearID: "year-2024",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.Monday, detail.DayOfWeek)
	assert.Equal(t, models.AssignmentActive, detail.Status)
}

func TestAssignmentServiceCreateTeacherConflict(t *testing.T) {
	repo := &stubAssignmentRepo{assignments: []models.Assignment{existingAssignment()}}
	svc := newTestAssignmentService(repo)

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-2",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "MONDAY",
		AcademicYearID: "year-2024",
	})
	require.Error(t, err)
	assert.Nil(t, repo.created)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrScheduleConflict.Status, appErr.Status)

	detail, ok := appErr.Details.(*models.AssignmentConflictError)
	require.True(t, ok)
	assert.True(t, detail.TeacherConflict)
	assert.False(t, detail.GroupConflict)
	require.Len(t, detail.Conflicts, 1)
	assert.Equal(t, "a-1", detail.Conflicts[0].AssignmentID)
	assert.Equal(t, models.ConflictAxisTeacher, detail.Conflicts[0].Axis)
}

func TestAssignmentServiceCreateBothAxes(t *testing.T) {
	first := existingAssignment()
	second := existingAssignment()
	second.ID = "a-2"
	second.TeacherID = "teacher-2"
	second.GroupID = "group-2"
	repo := &stubAssignmentRepo{assignments: []models.Assignment{first, second}}
	svc := newTestAssignmentService(repo)

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-2",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "MONDAY",
		AcademicYearID: "year-2024",
	})
	require.Error(t, err)

	detail, ok := appErrors.FromError(err).Details.(*models.AssignmentConflictError)
	require.True(t, ok)
	assert.True(t, detail.TeacherConflict)
	assert.True(t, detail.GroupConflict)
	assert.Len(t, detail.Conflicts, 2)
}

func TestAssignmentServiceCreateInactiveAllowed(t *testing.T) {
	repo := &stubAssignmentRepo{assignments: []models.Assignment{existingAssignment()}}
	svc := newTestAssignmentService(repo)

	detail, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-2",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "MONDAY",
		AcademicYearID: "year-2024",
		Status:         "inactive",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentInactive, detail.Status)
}

func TestAssignmentServiceCreateValidation(t *testing.T) {
	svc := newTestAssignmentService(&stubAssignmentRepo{})

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "FUNDAY",
		AcademicYearID: "year-2024",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateAssignmentRequest{TeacherID: "teacher-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCreateInactiveTeacher(t *testing.T) {
	svc := newTestAssignmentService(&stubAssignmentRepo{})

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-3",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "MONDAY",
		AcademicYearID: "year-2024",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCreateUnknownReference(t *testing.T) {
	svc := newTestAssignmentService(&stubAssignmentRepo{})

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-missing",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "MONDAY",
		AcademicYearID: "year-2024",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCreatePeriodYearMismatch(t *testing.T) {
	svc := newTestAssignmentService(&stubAssignmentRepo{})
	otherPeriod := "period-1"

	refs := defaultReferences()
	refs.periods["period-1"].AcademicYearID = "year-2023"
	svc.periods = stubPeriodReader{refs}

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "MONDAY",
		AcademicYearID: "year-2024",
		PeriodID:       &otherPeriod,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceCreateLostRace(t *testing.T) {
	repo := &stubAssignmentRepo{createErr: &pq.Error{Code: "23505"}}
	svc := newTestAssignmentService(repo)

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "MONDAY",
		AcademicYearID: "year-2024",
	})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrScheduleConflict.Status, appErr.Status)
}

func TestAssignmentServiceCreateStorageError(t *testing.T) {
	repo := &stubAssignmentRepo{createErr: errors.New("connection reset")}
	svc := newTestAssignmentService(repo)

	_, err := svc.Create(context.Background(), CreateAssignmentRequest{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      "MONDAY",
		AcademicYearID: "year-2024",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceUpdatePatch(t *testing.T) {
	repo := &stubAssignmentRepo{assignments: []models.Assignment{existingAssignment()}}
	svc := newTestAssignmentService(repo)

	slot := "slot-2"
	detail, err := svc.Update(context.Background(), "a-1", UpdateAssignmentRequest{TimeSlotID: &slot})
	require.NoError(t, err)
	assert.Equal(t, "slot-2", detail.TimeSlotID)
	assert.Equal(t, "teacher-1", detail.TeacherID)
}

func TestAssignmentServiceUpdateIntoConflict(t *testing.T) {
	blocker := existingAssignment()
	blocker.ID = "a-2"
	blocker.TeacherID = "teacher-2"
	blocker.GroupID = "group-2"
	blocker.TimeSlotID = "slot-2"

	repo := &stubAssignmentRepo{assignments: []models.Assignment{existingAssignment(), blocker}}
	svc := newTestAssignmentService(repo)

	slot := "slot-2"
	group := "group-2"
	_, err := svc.Update(context.Background(), "a-1", UpdateAssignmentRequest{TimeSlotID: &slot, GroupID: &group})
	require.Error(t, err)
	assert.Nil(t, repo.updated)

	detail, ok := appErrors.FromError(err).Details.(*models.AssignmentConflictError)
	require.True(t, ok)
	assert.True(t, detail.GroupConflict)
	assert.False(t, detail.TeacherConflict)
}

func TestAssignmentServiceUpdateSelfExcluded(t *testing.T) {
	repo := &stubAssignmentRepo{assignments: []models.Assignment{existingAssignment()}}
	svc := newTestAssignmentService(repo)

	teacher := "teacher-2"
	detail, err := svc.Update(context.Background(), "a-1", UpdateAssignmentRequest{TeacherID: &teacher})
	require.NoError(t, err)
	assert.Equal(t, "teacher-2", detail.TeacherID)
}

func TestAssignmentServiceUpdateDeactivateSkipsCheck(t *testing.T) {
	first := existingAssignment()
	second := existingAssignment()
	second.ID = "a-2"
	second.TeacherID = "teacher-2"
	second.GroupID = "group-2"
	repo := &stubAssignmentRepo{assignments: []models.Assignment{first, second}}
	svc := newTestAssignmentService(repo)

	status := "INACTIVE"
	detail, err := svc.Update(context.Background(), "a-1", UpdateAssignmentRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentInactive, detail.Status)
}

func TestAssignmentServiceUpdateReactivateChecks(t *testing.T) {
	sleeping := existingAssignment()
	sleeping.Status = models.AssignmentInactive
	blocker := existingAssignment()
	blocker.ID = "a-2"
	blocker.GroupID = "group-2"

	repo := &stubAssignmentRepo{assignments: []models.Assignment{sleeping, blocker}}
	svc := newTestAssignmentService(repo)

	status := "ACTIVE"
	_, err := svc.Update(context.Background(), "a-1", UpdateAssignmentRequest{Status: &status})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceUpdateNotFound(t *testing.T) {
	svc := newTestAssignmentService(&stubAssignmentRepo{})

	_, err := svc.Update(context.Background(), "missing", UpdateAssignmentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceDelete(t *testing.T) {
	repo := &stubAssignmentRepo{assignments: []models.Assignment{existingAssignment()}}
	svc := newTestAssignmentService(repo)

	require.NoError(t, svc.Delete(context.Background(), "a-1"))
	assert.Equal(t, []string{"a-1"}, repo.deleted)
}

func TestAssignmentServiceSystemConflicts(t *testing.T) {
	first := existingAssignment()
	second := existingAssignment()
	second.ID = "a-2"
	second.GroupID = "group-2"
	repo := &stubAssignmentRepo{assignments: []models.Assignment{first, second}}
	svc := newTestAssignmentService(repo)

	report, err := svc.SystemConflicts(context.Background(), "year-2024")
	require.NoError(t, err)
	assert.Equal(t, "year-2024", report.AcademicYearID)
	assert.Equal(t, 2, report.TotalActive)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, models.ConflictAxisTeacher, report.Clusters[0].Axis)
}

func TestAssignmentServiceSystemConflictsUnknownYear(t *testing.T) {
	svc := newTestAssignmentService(&stubAssignmentRepo{})

	_, err := svc.SystemConflicts(context.Background(), "year-1999")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignmentServiceExportConflictsCSV(t *testing.T) {
	first := existingAssignment()
	second := existingAssignment()
	second.ID = "a-2"
	second.GroupID = "group-2"
	repo := &stubAssignmentRepo{assignments: []models.Assignment{first, second}}
	svc := newTestAssignmentService(repo)

	data, contentType, err := svc.ExportConflicts(context.Background(), "year-2024", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "Axis")
	assert.Contains(t, string(data), "a-1")
	assert.Contains(t, string(data), "a-2")
}

func TestAssignmentServiceExportConflictsUnknownFormat(t *testing.T) {
	svc := newTestAssignmentService(&stubAssignmentRepo{})

	_, _, err := svc.ExportConflicts(context.Background(), "", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

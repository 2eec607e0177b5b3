package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-dev/academia-api/internal/models"
)

func newAssignmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "teacher_id", "subject_id", "group_id", "time_slot_id", "day_of_week", "academic_year_id", "period_id", "status", "created_at", "updated_at", "deleted_at"})
}

func TestAssignmentRepositoryListActiveByYear(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rows := assignmentRows().
		AddRow("a-1", "teacher-1", "subject-1", "group-1", "slot-1", "MONDAY", "year-2024", nil, "ACTIVE", time.Now(), time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, subject_id, group_id, time_slot_id, day_of_week, academic_year_id, period_id, status, created_at, updated_at, deleted_at FROM assignments WHERE academic_year_id = $1 AND status = $2 AND deleted_at IS NULL")).
		WithArgs("year-2024", models.AssignmentActive).
		WillReturnRows(rows)

	assignments, err := repo.ListActiveByYear(context.Background(), "year-2024")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, models.Monday, assignments[0].DayOfWeek)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WithArgs(sqlmock.AnyArg(), "teacher-1", "subject-1", "group-1", "slot-1", "MONDAY", "year-2024", nil, "ACTIVE", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.Assignment{
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      models.Monday,
		AcademicYearID: "year-2024",
		Status:         models.AssignmentActive,
	}
	require.NoError(t, repo.Create(context.Background(), assignment))
	assert.NotEmpty(t, assignment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("UPDATE assignments SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Assignment{
		ID:             "missing",
		TeacherID:      "teacher-1",
		SubjectID:      "subject-1",
		GroupID:        "group-1",
		TimeSlotID:     "slot-1",
		DayOfWeek:      models.Monday,
		AcademicYearID: "year-2024",
		Status:         models.AssignmentActive,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("UPDATE assignments SET deleted_at").
		WithArgs(sqlmock.AnyArg(), "a-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "a-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/academia-dev/academia-api/internal/models"
	"github.com/academia-dev/academia-api/internal/repository"
	"github.com/academia-dev/academia-api/internal/scheduling"
	appErrors "github.com/academia-dev/academia-api/pkg/errors"
	"github.com/academia-dev/academia-api/pkg/export"
)

const conflictReportCachePrefix = "conflicts:report:"

type assignmentRepo interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	FindDetailByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	ListActiveByYear(ctx context.Context, academicYearID string) ([]models.Assignment, error)
	ListActive(ctx context.Context) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	SoftDelete(ctx context.Context, id string) error
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type groupReader interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

type timeSlotReader interface {
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
}

type academicYearReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
}

// CreateAssignmentRequest describes payload for creating an assignment.
type CreateAssignmentRequest struct {
	TeacherID      string  `json:"teacher_id" validate:"required"`
	SubjectID      string  `json:"subject_id" validate:"required"`
	GroupID        string  `json:"group_id" validate:"required"`
	TimeSlotID     string  `json:"time_slot_id" validate:"required"`
	DayOfWeek      string  `json:"day_of_week" validate:"required"`
	AcademicYearID string  `json:"academic_year_id" validate:"required"`
	PeriodID       *string `json:"period_id"`
	Status         string  `json:"status"`
}

// UpdateAssignmentRequest patches an assignment; nil fields keep current values.
type UpdateAssignmentRequest struct {
	TeacherID      *string `json:"teacher_id"`
	SubjectID      *string `json:"subject_id"`
	GroupID        *string `json:"group_id"`
	TimeSlotID     *string `json:"time_slot_id"`
	DayOfWeek      *string `json:"day_of_week"`
	AcademicYearID *string `json:"academic_year_id"`
	PeriodID       *string `json:"period_id"`
	Status         *string `json:"status"`
}

// AssignmentService is the only path allowed to persist assignments. Every
// create and update runs the conflict detector against the candidate's
// academic year before touching storage; the storage layer's partial unique
// indexes close the remaining check-then-act window between racing writers.
type AssignmentService struct {
	repo      assignmentRepo
	teachers  teacherReader
	subjects  subjectReader
	groups    groupReader
	slots     timeSlotReader
	years     academicYearReader
	periods   periodReader
	cache     *CacheService
	metrics   *MetricsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService creates a service instance.
func NewAssignmentService(
	repo assignmentRepo,
	teachers teacherReader,
	subjects subjectReader,
	groups groupReader,
	slots timeSlotReader,
	years academicYearReader,
	periods periodReader,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:      repo,
		teachers:  teachers,
		subjects:  subjects,
		groups:    groups,
		slots:     slots,
		years:     years,
		periods:   periods,
		cache:     cache,
		metrics:   metrics,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns assignments with pagination metadata.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return assignments, pagination, nil
}

// Get returns an assignment with related names resolved.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return detail, nil
}

// Create inserts a new assignment after conflict detection.
func (s *AssignmentService) Create(ctx context.Context, req CreateAssignmentRequest) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	day := models.DayOfWeek(strings.ToUpper(req.DayOfWeek))
	if !day.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", req.DayOfWeek))
	}

	status := models.AssignmentActive
	if req.Status != "" {
		status = models.AssignmentStatus(strings.ToUpper(req.Status))
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
		}
	}

	candidate := models.Assignment{
		TeacherID:      req.TeacherID,
		SubjectID:      req.SubjectID,
		GroupID:        req.GroupID,
		TimeSlotID:     req.TimeSlotID,
		DayOfWeek:      day,
		AcademicYearID: req.AcademicYearID,
		PeriodID:       req.PeriodID,
		Status:         status,
	}

	if err := s.ensureReferences(ctx, candidate); err != nil {
		return nil, err
	}

	if candidate.Status == models.AssignmentActive {
		if err := s.ensureNoConflict(ctx, candidate); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, &candidate); err != nil {
		return nil, s.mapPersistError(ctx, candidate, err, "failed to create assignment")
	}

	s.invalidateReportCache(ctx)
	return s.loadDetail(ctx, candidate.ID)
}

// Update patches an assignment, re-running conflict detection whenever the
// change could introduce a collision. Deactivating skips the check entirely:
// an inactive assignment can never conflict.
func (s *AssignmentService) Update(ctx context.Context, id string, req UpdateAssignmentRequest) (*models.AssignmentDetail, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	candidate, err := mergePatch(*existing, req)
	if err != nil {
		return nil, err
	}

	if err := s.ensureReferences(ctx, candidate); err != nil {
		return nil, err
	}

	if candidate.Status == models.AssignmentActive && conflictKeyAffected(*existing, candidate) {
		if err := s.ensureNoConflict(ctx, candidate); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, &candidate); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, s.mapPersistError(ctx, candidate, err, "failed to update assignment")
	}

	s.invalidateReportCache(ctx)
	return s.loadDetail(ctx, candidate.ID)
}

// Delete soft-removes an assignment; it exits the conflict universe
// unconditionally, so no conflict check runs.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	s.invalidateReportCache(ctx)
	return nil
}

// SystemConflicts builds the read-only audit of exclusivity violations among
// active assignments, optionally scoped to one academic year.
func (s *AssignmentService) SystemConflicts(ctx context.Context, academicYearID string) (*models.ConflictReport, error) {
	cacheKey := conflictReportCachePrefix + "all"
	if academicYearID != "" {
		cacheKey = conflictReportCachePrefix + academicYearID
	}

	var cached models.ConflictReport
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	var assignments []models.Assignment
	var err error
	if academicYearID != "" {
		if _, err = s.years.FindByID(ctx, academicYearID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
		}
		assignments, err = s.repo.ListActiveByYear(ctx, academicYearID)
	} else {
		assignments, err = s.repo.ListActive(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignments")
	}

	start := time.Now()
	report := scheduling.BuildReport(assignments)
	report.AcademicYearID = academicYearID
	if s.metrics != nil {
		s.metrics.ObserveReportBuild(time.Since(start))
	}

	s.cache.Set(ctx, cacheKey, report)
	return &report, nil
}

// Export formats supported by ExportConflicts.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportConflicts renders the conflict report as CSV or PDF.
func (s *AssignmentService) ExportConflicts(ctx context.Context, academicYearID, format string) ([]byte, string, error) {
	report, err := s.SystemConflicts(ctx, academicYearID)
	if err != nil {
		return nil, "", err
	}

	dataset := conflictDataset(report)
	switch strings.ToLower(format) {
	case ExportFormatCSV, "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return data, "text/csv", nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "assignment conflicts")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export format %q", format))
	}
}

func (s *AssignmentService) ensureNoConflict(ctx context.Context, candidate models.Assignment) error {
	others, err := s.repo.ListActiveByYear(ctx, candidate.AcademicYearID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignments")
	}

	res := scheduling.Detect(candidate, others)
	if s.metrics != nil {
		s.metrics.RecordConflictCheck(res.HasConflict())
	}
	if res.HasConflict() {
		return conflictError(res)
	}
	return nil
}

// mapPersistError classifies storage failures from create/update. A unique
// violation means a concurrent writer took the slot between our check and
// commit; it is reported exactly like a detected conflict, never as a 500.
func (s *AssignmentService) mapPersistError(ctx context.Context, candidate models.Assignment, err error, message string) error {
	if !repository.IsUniqueViolation(err) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}

	s.logger.Info("assignment lost conflict race",
		zap.String("teacher_id", candidate.TeacherID),
		zap.String("group_id", candidate.GroupID),
		zap.String("academic_year_id", candidate.AcademicYearID),
	)

	if others, lerr := s.repo.ListActiveByYear(ctx, candidate.AcademicYearID); lerr == nil {
		if res := scheduling.Detect(candidate, others); res.HasConflict() {
			return conflictError(res)
		}
	}
	return appErrors.Clone(appErrors.ErrScheduleConflict, "assignment conflicts with a concurrent change")
}

func (s *AssignmentService) ensureReferences(ctx context.Context, candidate models.Assignment) error {
	teacher, err := s.teachers.FindByID(ctx, candidate.TeacherID)
	if err != nil {
		return referenceError(err, "teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher inactive")
	}
	if _, err := s.subjects.FindByID(ctx, candidate.SubjectID); err != nil {
		return referenceError(err, "subject")
	}
	if _, err := s.groups.FindByID(ctx, candidate.GroupID); err != nil {
		return referenceError(err, "group")
	}
	if _, err := s.slots.FindByID(ctx, candidate.TimeSlotID); err != nil {
		return referenceError(err, "time slot")
	}
	if _, err := s.years.FindByID(ctx, candidate.AcademicYearID); err != nil {
		return referenceError(err, "academic year")
	}
	if candidate.PeriodID != nil {
		period, err := s.periods.FindByID(ctx, *candidate.PeriodID)
		if err != nil {
			return referenceError(err, "period")
		}
		if period.AcademicYearID != candidate.AcademicYearID {
			return appErrors.Clone(appErrors.ErrValidation, "period does not belong to the academic year")
		}
	}
	return nil
}

func (s *AssignmentService) loadDetail(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment detail")
	}
	return detail, nil
}

func (s *AssignmentService) invalidateReportCache(ctx context.Context) {
	s.cache.InvalidatePattern(ctx, conflictReportCachePrefix+"*")
}

func referenceError(err error, entity string) error {
	if err == sql.ErrNoRows {
		return appErrors.Clone(appErrors.ErrValidation, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}

func mergePatch(existing models.Assignment, req UpdateAssignmentRequest) (models.Assignment, error) {
	candidate := existing
	if req.TeacherID != nil {
		candidate.TeacherID = *req.TeacherID
	}
	if req.SubjectID != nil {
		candidate.SubjectID = *req.SubjectID
	}
	if req.GroupID != nil {
		candidate.GroupID = *req.GroupID
	}
	if req.TimeSlotID != nil {
		candidate.TimeSlotID = *req.TimeSlotID
	}
	if req.DayOfWeek != nil {
		day := models.DayOfWeek(strings.ToUpper(*req.DayOfWeek))
		if !day.Valid() {
			return candidate, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day of week %q", *req.DayOfWeek))
		}
		candidate.DayOfWeek = day
	}
	if req.AcademicYearID != nil {
		candidate.AcademicYearID = *req.AcademicYearID
	}
	if req.PeriodID != nil {
		if *req.PeriodID == "" {
			candidate.PeriodID = nil
		} else {
			candidate.PeriodID = req.PeriodID
		}
	}
	if req.Status != nil {
		status := models.AssignmentStatus(strings.ToUpper(*req.Status))
		if !status.Valid() {
			return candidate, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", *req.Status))
		}
		candidate.Status = status
	}
	return candidate, nil
}

// conflictKeyAffected reports whether the patch touched a field that can
// introduce a new collision: one of the key axes, the owning identities, or a
// reactivation. Updating only the subject or period never needs a re-check.
func conflictKeyAffected(existing, candidate models.Assignment) bool {
	if existing.Status != models.AssignmentActive && candidate.Status == models.AssignmentActive {
		return true
	}
	return existing.TeacherID != candidate.TeacherID ||
		existing.GroupID != candidate.GroupID ||
		existing.TimeSlotID != candidate.TimeSlotID ||
		existing.DayOfWeek != candidate.DayOfWeek ||
		existing.AcademicYearID != candidate.AcademicYearID
}

func conflictError(res scheduling.Result) error {
	var message string
	switch {
	case res.TeacherConflict() && res.GroupConflict():
		message = "teacher and group already have a class at this time"
	case res.TeacherConflict():
		message = "teacher already has a class at this time"
	default:
		message = "group already has a class at this time"
	}

	detail := &models.AssignmentConflictError{
		Message:         message,
		TeacherConflict: res.TeacherConflict(),
		GroupConflict:   res.GroupConflict(),
		Conflicts:       res.Conflicts(),
	}
	appErr := appErrors.Wrap(detail, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, message)
	appErr.Details = detail
	return appErr
}

func conflictDataset(report *models.ConflictReport) export.Dataset {
	headers := []string{"Axis", "Academic Year", "Day", "Time Slot", "Teacher", "Group", "Assignment", "Subject", "Period"}
	rows := make([]map[string]string, 0)
	for _, cluster := range report.Clusters {
		for _, a := range cluster.Assignments {
			period := ""
			if a.PeriodID != nil {
				period = *a.PeriodID
			}
			rows = append(rows, map[string]string{
				"Axis":          string(cluster.Axis),
				"Academic Year": cluster.AcademicYearID,
				"Day":           string(cluster.DayOfWeek),
				"Time Slot":     cluster.TimeSlotID,
				"Teacher":       a.TeacherID,
				"Group":         a.GroupID,
				"Assignment":    a.ID,
				"Subject":       a.SubjectID,
				"Period":        period,
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

package models

import "time"

// DayOfWeek is the recurring-schedule axis. Values are stored upper-case.
type DayOfWeek string

const (
	Monday    DayOfWeek = "MONDAY"
	Tuesday   DayOfWeek = "TUESDAY"
	Wednesday DayOfWeek = "WEDNESDAY"
	Thursday  DayOfWeek = "THURSDAY"
	Friday    DayOfWeek = "FRIDAY"
	Saturday  DayOfWeek = "SATURDAY"
	Sunday    DayOfWeek = "SUNDAY"
)

var dayOfWeekSet = map[DayOfWeek]struct{}{
	Monday: {}, Tuesday: {}, Wednesday: {}, Thursday: {}, Friday: {}, Saturday: {}, Sunday: {},
}

// Valid reports whether d belongs to the closed weekday enumeration.
func (d DayOfWeek) Valid() bool {
	_, ok := dayOfWeekSet[d]
	return ok
}

// AssignmentStatus controls participation in conflict checks.
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "ACTIVE"
	AssignmentInactive AssignmentStatus = "INACTIVE"
)

// Valid reports whether s is a known assignment status.
func (s AssignmentStatus) Valid() bool {
	return s == AssignmentActive || s == AssignmentInactive
}

// Assignment binds a teacher and a subject to a group at a recurring
// day/time-slot within an academic year. Only ACTIVE assignments take part in
// conflict detection; the period is informational and never part of the
// conflict key.
type Assignment struct {
	ID             string           `db:"id" json:"id"`
	TeacherID      string           `db:"teacher_id" json:"teacher_id"`
	SubjectID      string           `db:"subject_id" json:"subject_id"`
	GroupID        string           `db:"group_id" json:"group_id"`
	TimeSlotID     string           `db:"time_slot_id" json:"time_slot_id"`
	DayOfWeek      DayOfWeek        `db:"day_of_week" json:"day_of_week"`
	AcademicYearID string           `db:"academic_year_id" json:"academic_year_id"`
	PeriodID       *string          `db:"period_id" json:"period_id,omitempty"`
	Status         AssignmentStatus `db:"status" json:"status"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time       `db:"deleted_at" json:"deleted_at,omitempty"`
}

// AssignmentDetail enriches assignments with descriptive fields for responses.
type AssignmentDetail struct {
	Assignment
	TeacherName  string  `db:"teacher_name" json:"teacher_name"`
	SubjectName  string  `db:"subject_name" json:"subject_name"`
	GroupName    string  `db:"group_name" json:"group_name"`
	TimeSlotName string  `db:"time_slot_name" json:"time_slot_name"`
	PeriodName   *string `db:"period_name" json:"period_name,omitempty"`
}

// AssignmentFilter describes query params for listing assignments.
type AssignmentFilter struct {
	AcademicYearID string
	PeriodID       string
	TeacherID      string
	GroupID        string
	SubjectID      string
	TimeSlotID     string
	DayOfWeek      DayOfWeek
	Status         AssignmentStatus
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// ConflictAxis names the exclusivity dimension an assignment collides on.
type ConflictAxis string

const (
	ConflictAxisTeacher ConflictAxis = "TEACHER"
	ConflictAxisGroup   ConflictAxis = "GROUP"
)

// AssignmentConflict describes an existing assignment that collides with a candidate.
type AssignmentConflict struct {
	AssignmentID   string       `json:"assignment_id"`
	Axis           ConflictAxis `json:"axis"`
	TeacherID      string       `json:"teacher_id"`
	SubjectID      string       `json:"subject_id"`
	GroupID        string       `json:"group_id"`
	TimeSlotID     string       `json:"time_slot_id"`
	DayOfWeek      DayOfWeek    `json:"day_of_week"`
	AcademicYearID string       `json:"academic_year_id"`
	PeriodID       *string      `json:"period_id,omitempty"`
}

// AssignmentConflictError is returned when a candidate assignment collides
// with existing active assignments. Both axes are reported when both collide.
type AssignmentConflictError struct {
	Message         string               `json:"message"`
	TeacherConflict bool                 `json:"teacher_conflict"`
	GroupConflict   bool                 `json:"group_conflict"`
	Conflicts       []AssignmentConflict `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *AssignmentConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// ConflictCluster groups the active assignments that share one conflict key.
type ConflictCluster struct {
	Axis           ConflictAxis `json:"axis"`
	AcademicYearID string       `json:"academic_year_id"`
	DayOfWeek      DayOfWeek    `json:"day_of_week"`
	TimeSlotID     string       `json:"time_slot_id"`
	TeacherID      string       `json:"teacher_id,omitempty"`
	GroupID        string       `json:"group_id,omitempty"`
	Assignments    []Assignment `json:"assignments"`
}

// ConflictReport is the system-wide audit of exclusivity violations among
// active assignments. Empty Clusters means the data is consistent.
type ConflictReport struct {
	GeneratedAt    time.Time         `json:"generated_at"`
	AcademicYearID string            `json:"academic_year_id,omitempty"`
	TotalActive    int               `json:"total_active"`
	Clusters       []ConflictCluster `json:"clusters"`
}

package models

import "time"

// Group represents a student group (section) within a grade and academic year.
type Group struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Grade          string    `db:"grade" json:"grade"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// GroupFilter defines filter criteria for listing groups.
type GroupFilter struct {
	Grade          string
	AcademicYearID string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

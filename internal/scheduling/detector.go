// Package scheduling implements conflict detection for teaching assignments.
// Everything here is pure computation over in-memory values: no persistence,
// no transport, safe for concurrent use without synchronization. Callers are
// responsible for scoping the set of existing assignments (typically to one
// academic year) and for the storage-level uniqueness guard that closes the
// check-then-act window between concurrent writers.
package scheduling

import (
	"sort"

	"github.com/academia-dev/academia-api/internal/models"
)

// Result reports, per exclusivity axis, the active assignments a candidate
// collides with. Both axes are evaluated independently and a candidate can
// conflict on both at once.
type Result struct {
	TeacherConflicts []models.Assignment
	GroupConflicts   []models.Assignment
}

// TeacherConflict reports whether the candidate double-books its teacher.
func (r Result) TeacherConflict() bool {
	return len(r.TeacherConflicts) > 0
}

// GroupConflict reports whether the candidate double-books its group.
func (r Result) GroupConflict() bool {
	return len(r.GroupConflicts) > 0
}

// HasConflict reports whether either axis collides.
func (r Result) HasConflict() bool {
	return r.TeacherConflict() || r.GroupConflict()
}

// Conflicts flattens the result into diagnostic records, teacher axis first.
func (r Result) Conflicts() []models.AssignmentConflict {
	out := make([]models.AssignmentConflict, 0, len(r.TeacherConflicts)+len(r.GroupConflicts))
	for _, a := range r.TeacherConflicts {
		out = append(out, toConflict(a, models.ConflictAxisTeacher))
	}
	for _, a := range r.GroupConflicts {
		out = append(out, toConflict(a, models.ConflictAxisGroup))
	}
	return out
}

func toConflict(a models.Assignment, axis models.ConflictAxis) models.AssignmentConflict {
	return models.AssignmentConflict{
		AssignmentID:   a.ID,
		Axis:           axis,
		TeacherID:      a.TeacherID,
		SubjectID:      a.SubjectID,
		GroupID:        a.GroupID,
		TimeSlotID:     a.TimeSlotID,
		DayOfWeek:      a.DayOfWeek,
		AcademicYearID: a.AcademicYearID,
		PeriodID:       a.PeriodID,
	}
}

// Detect evaluates whether the candidate assignment collides with any of the
// given assignments on the teacher or group axis.
//
// Two assignments occupy the same calendar moment when their academic year,
// day of week and time slot are all equal; the period deliberately plays no
// part in the key, so the same weekly slot recurring across periods of one
// year still counts as the same moment. Equality of the three axes is
// re-checked here even though callers usually pre-filter by year.
//
// Inactive assignments and the candidate itself (matched by id, so updates
// never conflict with their own stored row) are skipped. All matches are
// collected rather than stopping at the first, and the result is sorted by
// assignment id so output does not depend on the iteration order of others.
func Detect(candidate models.Assignment, others []models.Assignment) Result {
	var res Result
	for _, other := range others {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.Status != models.AssignmentActive || other.DeletedAt != nil {
			continue
		}
		if other.AcademicYearID != candidate.AcademicYearID ||
			other.DayOfWeek != candidate.DayOfWeek ||
			other.TimeSlotID != candidate.TimeSlotID {
			continue
		}
		if other.TeacherID == candidate.TeacherID {
			res.TeacherConflicts = append(res.TeacherConflicts, other)
		}
		if other.GroupID == candidate.GroupID {
			res.GroupConflicts = append(res.GroupConflicts, other)
		}
	}

	sortByID(res.TeacherConflicts)
	sortByID(res.GroupConflicts)
	return res
}

func sortByID(assignments []models.Assignment) {
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].ID < assignments[j].ID
	})
}

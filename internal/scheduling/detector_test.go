package scheduling

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-dev/academia-api/internal/models"
)

func activeAssignment(id, teacherID, groupID string) models.Assignment {
	return models.Assignment{
		ID:             id,
		TeacherID:      teacherID,
		SubjectID:      "subject-1",
		GroupID:        groupID,
		TimeSlotID:     "slot-0800",
		DayOfWeek:      models.Monday,
		AcademicYearID: "year-2024",
		Status:         models.AssignmentActive,
	}
}

func TestDetectTeacherConflict(t *testing.T) {
	existing := activeAssignment("a-1", "teacher-t", "group-g1")
	candidate := activeAssignment("", "teacher-t", "group-g2")

	res := Detect(candidate, []models.Assignment{existing})
	assert.True(t, res.TeacherConflict())
	assert.False(t, res.GroupConflict())
	require.Len(t, res.TeacherConflicts, 1)
	assert.Equal(t, "a-1", res.TeacherConflicts[0].ID)
}

func TestDetectGroupConflictOnly(t *testing.T) {
	// Group G1 is already taught by another teacher at this slot; the
	// candidate teacher is free, so only the group axis collides.
	existing := activeAssignment("a-1", "teacher-t2", "group-g1")
	candidate := activeAssignment("", "teacher-t", "group-g1")

	res := Detect(candidate, []models.Assignment{existing})
	assert.False(t, res.TeacherConflict())
	assert.True(t, res.GroupConflict())
	require.Len(t, res.GroupConflicts, 1)
	assert.Equal(t, "a-1", res.GroupConflicts[0].ID)
}

func TestDetectDifferentDayNoConflict(t *testing.T) {
	existing := activeAssignment("a-1", "teacher-t", "group-g1")
	candidate := activeAssignment("", "teacher-t", "group-g1")
	candidate.DayOfWeek = models.Tuesday

	res := Detect(candidate, []models.Assignment{existing})
	assert.False(t, res.HasConflict())
}

func TestDetectDifferentYearNoConflict(t *testing.T) {
	existing := activeAssignment("a-1", "teacher-t", "group-g1")
	candidate := activeAssignment("", "teacher-t", "group-g1")
	candidate.AcademicYearID = "year-2023"

	res := Detect(candidate, []models.Assignment{existing})
	assert.False(t, res.HasConflict())
}

func TestDetectDifferentSlotNoConflict(t *testing.T) {
	existing := activeAssignment("a-1", "teacher-t", "group-g1")
	candidate := activeAssignment("", "teacher-t", "group-g1")
	candidate.TimeSlotID = "slot-0900"

	res := Detect(candidate, []models.Assignment{existing})
	assert.False(t, res.HasConflict())
}

func TestDetectPeriodNotPartOfKey(t *testing.T) {
	// Same teacher, same weekly moment, different grading periods of the
	// same year: still a conflict.
	p1, p2 := "period-1", "period-2"
	existing := activeAssignment("a-1", "teacher-t", "group-g1")
	existing.PeriodID = &p1
	candidate := activeAssignment("", "teacher-t", "group-g2")
	candidate.PeriodID = &p2

	res := Detect(candidate, []models.Assignment{existing})
	assert.True(t, res.TeacherConflict())
}

func TestDetectSelfExcluded(t *testing.T) {
	existing := activeAssignment("a-1", "teacher-t", "group-g1")
	candidate := existing

	res := Detect(candidate, []models.Assignment{existing})
	assert.False(t, res.HasConflict())
}

func TestDetectInactiveAndDeletedIgnored(t *testing.T) {
	inactive := activeAssignment("a-1", "teacher-t", "group-g1")
	inactive.Status = models.AssignmentInactive
	deletedAt := time.Now()
	deleted := activeAssignment("a-2", "teacher-t", "group-g1")
	deleted.DeletedAt = &deletedAt

	candidate := activeAssignment("", "teacher-t", "group-g1")
	res := Detect(candidate, []models.Assignment{inactive, deleted})
	assert.False(t, res.HasConflict())

	// Reactivating re-subjects the assignment to the check.
	inactive.Status = models.AssignmentActive
	res = Detect(candidate, []models.Assignment{inactive})
	assert.True(t, res.TeacherConflict())
	assert.True(t, res.GroupConflict())
}

func TestDetectBothAxesAgainstDifferentAssignments(t *testing.T) {
	teacherBusy := activeAssignment("a-1", "teacher-t", "group-other")
	groupBusy := activeAssignment("a-2", "teacher-other", "group-g1")
	candidate := activeAssignment("", "teacher-t", "group-g1")

	res := Detect(candidate, []models.Assignment{teacherBusy, groupBusy})
	assert.True(t, res.TeacherConflict())
	assert.True(t, res.GroupConflict())

	conflicts := res.Conflicts()
	require.Len(t, conflicts, 2)
	assert.Equal(t, models.ConflictAxisTeacher, conflicts[0].Axis)
	assert.Equal(t, "a-1", conflicts[0].AssignmentID)
	assert.Equal(t, models.ConflictAxisGroup, conflicts[1].Axis)
	assert.Equal(t, "a-2", conflicts[1].AssignmentID)
}

func TestDetectCollectsAllMatches(t *testing.T) {
	// Dirty data can already hold several colliding rows; every one of them
	// must be reported, not just the first found.
	others := []models.Assignment{
		activeAssignment("a-3", "teacher-t", "group-x"),
		activeAssignment("a-1", "teacher-t", "group-y"),
		activeAssignment("a-2", "teacher-t", "group-z"),
	}
	candidate := activeAssignment("", "teacher-t", "group-g1")

	res := Detect(candidate, others)
	require.Len(t, res.TeacherConflicts, 3)
	assert.Equal(t, "a-1", res.TeacherConflicts[0].ID)
	assert.Equal(t, "a-2", res.TeacherConflicts[1].ID)
	assert.Equal(t, "a-3", res.TeacherConflicts[2].ID)
}

func TestDetectPermutationInvariant(t *testing.T) {
	others := []models.Assignment{
		activeAssignment("a-1", "teacher-t", "group-a"),
		activeAssignment("a-2", "teacher-x", "group-g1"),
		activeAssignment("a-3", "teacher-t", "group-b"),
		activeAssignment("a-4", "teacher-y", "group-c"),
	}
	candidate := activeAssignment("", "teacher-t", "group-g1")
	reference := Detect(candidate, others)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]models.Assignment, len(others))
		copy(shuffled, others)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, reference, Detect(candidate, shuffled))
	}
}

func TestDetectRandomizedExclusivityProperty(t *testing.T) {
	// Generate random assignment sets over a small value domain and check
	// the detector against a brute-force pairwise oracle: every pair of
	// active assignments violating teacher or group exclusivity must be
	// flagged when one of the pair is presented as the candidate.
	rng := rand.New(rand.NewSource(42))
	days := []models.DayOfWeek{models.Monday, models.Tuesday}
	slots := []string{"slot-1", "slot-2"}
	years := []string{"year-2023", "year-2024"}

	for round := 0; round < 50; round++ {
		var set []models.Assignment
		for i := 0; i < 12; i++ {
			a := models.Assignment{
				ID:             fmt.Sprintf("a-%d", i),
				TeacherID:      fmt.Sprintf("teacher-%d", rng.Intn(3)),
				SubjectID:      "subject-1",
				GroupID:        fmt.Sprintf("group-%d", rng.Intn(3)),
				TimeSlotID:     slots[rng.Intn(len(slots))],
				DayOfWeek:      days[rng.Intn(len(days))],
				AcademicYearID: years[rng.Intn(len(years))],
				Status:         models.AssignmentActive,
			}
			if rng.Intn(4) == 0 {
				a.Status = models.AssignmentInactive
			}
			set = append(set, a)
		}

		for i, candidate := range set {
			if candidate.Status != models.AssignmentActive {
				continue
			}
			res := Detect(candidate, set)
			for j, other := range set {
				if i == j || other.Status != models.AssignmentActive {
					continue
				}
				sameMoment := other.AcademicYearID == candidate.AcademicYearID &&
					other.DayOfWeek == candidate.DayOfWeek &&
					other.TimeSlotID == candidate.TimeSlotID
				if sameMoment && other.TeacherID == candidate.TeacherID {
					assert.Contains(t, ids(res.TeacherConflicts), other.ID,
						"round %d: teacher pair %s/%s not flagged", round, candidate.ID, other.ID)
				}
				if sameMoment && other.GroupID == candidate.GroupID {
					assert.Contains(t, ids(res.GroupConflicts), other.ID,
						"round %d: group pair %s/%s not flagged", round, candidate.ID, other.ID)
				}
			}
		}
	}
}

func ids(assignments []models.Assignment) []string {
	out := make([]string, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, a.ID)
	}
	return out
}

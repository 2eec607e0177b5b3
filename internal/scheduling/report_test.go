package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-dev/academia-api/internal/models"
)

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil)
	assert.Zero(t, report.TotalActive)
	assert.Empty(t, report.Clusters)
	assert.NotNil(t, report.Clusters)
}

func TestBuildReportCleanData(t *testing.T) {
	report := BuildReport([]models.Assignment{
		activeAssignment("a-1", "teacher-1", "group-1"),
		activeAssignment("a-2", "teacher-2", "group-2"),
	})
	assert.Equal(t, 2, report.TotalActive)
	assert.Empty(t, report.Clusters)
}

func TestBuildReportTeacherCluster(t *testing.T) {
	report := BuildReport([]models.Assignment{
		activeAssignment("a-2", "teacher-1", "group-b"),
		activeAssignment("a-1", "teacher-1", "group-a"),
		activeAssignment("a-3", "teacher-2", "group-c"),
	})

	require.Len(t, report.Clusters, 1)
	cluster := report.Clusters[0]
	assert.Equal(t, models.ConflictAxisTeacher, cluster.Axis)
	assert.Equal(t, "teacher-1", cluster.TeacherID)
	assert.Empty(t, cluster.GroupID)
	require.Len(t, cluster.Assignments, 2)
	assert.Equal(t, "a-1", cluster.Assignments[0].ID)
	assert.Equal(t, "a-2", cluster.Assignments[1].ID)
}

func TestBuildReportBothAxes(t *testing.T) {
	// a-1/a-2 share a teacher, a-2/a-3 share a group: two distinct clusters.
	a1 := activeAssignment("a-1", "teacher-1", "group-a")
	a2 := activeAssignment("a-2", "teacher-1", "group-b")
	a3 := activeAssignment("a-3", "teacher-2", "group-b")

	report := BuildReport([]models.Assignment{a1, a2, a3})
	require.Len(t, report.Clusters, 2)
	assert.Equal(t, models.ConflictAxisGroup, report.Clusters[0].Axis)
	assert.Equal(t, "group-b", report.Clusters[0].GroupID)
	assert.Equal(t, models.ConflictAxisTeacher, report.Clusters[1].Axis)
	assert.Equal(t, "teacher-1", report.Clusters[1].TeacherID)
}

func TestBuildReportSkipsInactiveAndDeleted(t *testing.T) {
	inactive := activeAssignment("a-2", "teacher-1", "group-a")
	inactive.Status = models.AssignmentInactive
	deletedAt := time.Now()
	deleted := activeAssignment("a-3", "teacher-1", "group-a")
	deleted.DeletedAt = &deletedAt

	report := BuildReport([]models.Assignment{
		activeAssignment("a-1", "teacher-1", "group-a"),
		inactive,
		deleted,
	})
	assert.Equal(t, 1, report.TotalActive)
	assert.Empty(t, report.Clusters)
}

func TestBuildReportSeparatesCalendarMoments(t *testing.T) {
	other := activeAssignment("a-2", "teacher-1", "group-a")
	other.DayOfWeek = models.Friday

	report := BuildReport([]models.Assignment{
		activeAssignment("a-1", "teacher-1", "group-a"),
		other,
	})
	assert.Empty(t, report.Clusters)
}

func TestBuildReportDeterministicOrder(t *testing.T) {
	set := []models.Assignment{
		activeAssignment("a-4", "teacher-2", "group-b"),
		activeAssignment("a-3", "teacher-2", "group-b"),
		activeAssignment("a-2", "teacher-1", "group-a"),
		activeAssignment("a-1", "teacher-1", "group-a"),
	}
	first := BuildReport(set)

	reversed := []models.Assignment{set[3], set[2], set[1], set[0]}
	second := BuildReport(reversed)

	require.Equal(t, len(first.Clusters), len(second.Clusters))
	for i := range first.Clusters {
		assert.Equal(t, first.Clusters[i].Axis, second.Clusters[i].Axis)
		assert.Equal(t, first.Clusters[i].TeacherID, second.Clusters[i].TeacherID)
		assert.Equal(t, first.Clusters[i].GroupID, second.Clusters[i].GroupID)
		assert.Equal(t, first.Clusters[i].Assignments, second.Clusters[i].Assignments)
	}
}

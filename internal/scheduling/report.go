package scheduling

import (
	"sort"
	"time"

	"github.com/academia-dev/academia-api/internal/models"
)

type clusterKey struct {
	academicYearID string
	dayOfWeek      models.DayOfWeek
	timeSlotID     string
	ownerID        string
}

// BuildReport audits a set of assignments for exclusivity violations already
// present in the data (bulk imports and racing writers can introduce them
// behind the per-request check).
//
// Instead of running the pairwise detector over every combination, active
// assignments are bucketed once by (year, day, slot, teacher) and once by
// (year, day, slot, group); any bucket with more than one member is a
// conflict cluster. One pass, so the audit stays responsive on sets far
// larger than the per-year scope a single create touches.
func BuildReport(assignments []models.Assignment) models.ConflictReport {
	teacherBuckets := make(map[clusterKey][]models.Assignment)
	groupBuckets := make(map[clusterKey][]models.Assignment)

	active := 0
	for _, a := range assignments {
		if a.Status != models.AssignmentActive || a.DeletedAt != nil {
			continue
		}
		active++
		base := clusterKey{academicYearID: a.AcademicYearID, dayOfWeek: a.DayOfWeek, timeSlotID: a.TimeSlotID}

		tk := base
		tk.ownerID = a.TeacherID
		teacherBuckets[tk] = append(teacherBuckets[tk], a)

		gk := base
		gk.ownerID = a.GroupID
		groupBuckets[gk] = append(groupBuckets[gk], a)
	}

	report := models.ConflictReport{
		GeneratedAt: time.Now().UTC(),
		TotalActive: active,
		Clusters:    []models.ConflictCluster{},
	}

	report.Clusters = append(report.Clusters, collectClusters(teacherBuckets, models.ConflictAxisTeacher)...)
	report.Clusters = append(report.Clusters, collectClusters(groupBuckets, models.ConflictAxisGroup)...)

	sort.Slice(report.Clusters, func(i, j int) bool {
		a, b := report.Clusters[i], report.Clusters[j]
		if a.Axis != b.Axis {
			return a.Axis < b.Axis
		}
		if a.AcademicYearID != b.AcademicYearID {
			return a.AcademicYearID < b.AcademicYearID
		}
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.TimeSlotID != b.TimeSlotID {
			return a.TimeSlotID < b.TimeSlotID
		}
		return a.TeacherID+a.GroupID < b.TeacherID+b.GroupID
	})

	return report
}

func collectClusters(buckets map[clusterKey][]models.Assignment, axis models.ConflictAxis) []models.ConflictCluster {
	var clusters []models.ConflictCluster
	for key, members := range buckets {
		if len(members) < 2 {
			continue
		}
		sortByID(members)
		cluster := models.ConflictCluster{
			Axis:           axis,
			AcademicYearID: key.academicYearID,
			DayOfWeek:      key.dayOfWeek,
			TimeSlotID:     key.timeSlotID,
			Assignments:    members,
		}
		switch axis {
		case models.ConflictAxisTeacher:
			cluster.TeacherID = key.ownerID
		case models.ConflictAxisGroup:
			cluster.GroupID = key.ownerID
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

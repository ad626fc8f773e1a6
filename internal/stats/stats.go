// Package stats computes dashboard aggregates over a project's
// requirements. Snapshots are cached per project and recomputed on demand
// after an invalidation.
package stats

import (
	"math"

	"reqtrace/internal/requirement/models"
)

// Snapshot is one project's dashboard rollup. Percentages are whole numbers;
// StatusPercentages always carries every known status, zero valued ones
// included.
type Snapshot struct {
	TotalRequirements             int                   `json:"total_requirements"`
	StatusPercentages             map[models.Status]int `json:"status_percentages"`
	ChildrenAssignmentPercentage  int                   `json:"children_assignment_percentage"`
	VerificationMethodsPercentage int                   `json:"verification_methods_percentage"`
}

// Compute derives a snapshot from the full requirement set of one project.
// An empty set yields zero percentages across the board.
func Compute(requirements []*models.Requirement) Snapshot {
	snapshot := Snapshot{
		TotalRequirements: len(requirements),
		StatusPercentages: make(map[models.Status]int, len(models.AllStatuses())),
	}
	for _, status := range models.AllStatuses() {
		snapshot.StatusPercentages[status] = 0
	}
	if len(requirements) == 0 {
		return snapshot
	}

	statusCounts := make(map[models.Status]int)
	withChildren := 0
	withMethods := 0
	for _, r := range requirements {
		statusCounts[r.Status]++
		if len(r.ChildIDs) > 0 {
			withChildren++
		}
		if len(r.VerificationMethods) > 0 {
			withMethods++
		}
	}

	total := len(requirements)
	for status, count := range statusCounts {
		snapshot.StatusPercentages[status] = percent(count, total)
	}
	snapshot.ChildrenAssignmentPercentage = percent(withChildren, total)
	snapshot.VerificationMethodsPercentage = percent(withMethods, total)
	return snapshot
}

func percent(count, total int) int {
	return int(math.Round(float64(count) / float64(total) * 100))
}

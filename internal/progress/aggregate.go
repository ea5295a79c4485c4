// Package progress computes enrollment completion percentages.
package progress

import "math"

// Input is the raw material for one learner and one course.
type Input struct {
	// DistanceLessonIDs are lessons of modules that have no session slots.
	DistanceLessonIDs []int64
	// CompletedLessonIDs are lessons the learner completed, from any module.
	CompletedLessonIDs []int64
	// TotalBookings and PresentBookings count the learner's bookings for the course's sessions.
	TotalBookings   int
	PresentBookings int
	// StoredOverall is the persisted enrollment progress.
	StoredOverall int
}

// Snapshot is the read-time view of a learner's progress, each value 0..100.
type Snapshot struct {
	DistanceProgress int `json:"distance_progress"`
	SessionProgress  int `json:"session_progress"`
	OverallProgress  int `json:"overall_progress"`
}

// Aggregate computes the distance and session percentages and passes the stored overall through.
func Aggregate(in Input) Snapshot {
	distance := make(map[int64]struct{}, len(in.DistanceLessonIDs))
	for _, id := range in.DistanceLessonIDs {
		distance[id] = struct{}{}
	}

	done := make(map[int64]struct{}, len(in.CompletedLessonIDs))
	for _, id := range in.CompletedLessonIDs {
		if _, ok := distance[id]; ok {
			done[id] = struct{}{}
		}
	}

	return Snapshot{
		DistanceProgress: Percent(len(done), len(distance)),
		SessionProgress:  Percent(in.PresentBookings, in.TotalBookings),
		OverallProgress:  clamp(in.StoredOverall),
	}
}

// Percent returns round(100*done/total), 0 when total is not positive.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return clamp(int(math.Round(100 * float64(done) / float64(total))))
}

// OverallAfterCompletion is the overall enrollment progress written when a lesson is completed:
// completed lessons over all lessons of the course.
func OverallAfterCompletion(completed, total int) int {
	return Percent(completed, total)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

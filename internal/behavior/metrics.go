package behavior

import (
	"math"
	"sort"
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

// #region constants

const (
	// DefaultWindowDays is the analysis window for the completion rate.
	DefaultWindowDays = 5

	// UnboundedInactivity is returned when no activity was ever recorded.
	// Large enough to trip every inactivity threshold.
	UnboundedInactivity = math.MaxInt32
)

// #endregion

// #region completion-rate

// CompletionRate computes round(completed/attempted*100) among tasks
// created within the window ending at evalDate. Pending tasks are not
// outcomes yet and stay out of the denominator, so an empty or
// all-pending window yields 100.
func CompletionRate(tasks []plan.Task, evalDate time.Time, windowDays int) int {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	cutoff := evalDate.AddDate(0, 0, -windowDays)

	var completed, attempted int
	for _, t := range tasks {
		if t.CreatedAt.Before(cutoff) || t.CreatedAt.After(evalDate) {
			continue
		}
		switch t.Status {
		case plan.TaskCompleted:
			completed++
			attempted++
		case plan.TaskSkipped, plan.TaskOverdue:
			attempted++
		}
	}
	if attempted == 0 {
		return 100
	}
	return int(math.Round(float64(completed) / float64(attempted) * 100))
}

// #endregion

// #region consecutive-failures

// ConsecutiveFailures counts the unbroken run of skipped/overdue tasks
// starting from the most recently created task, ignoring interleaved
// pending tasks and stopping at the first completed one.
func ConsecutiveFailures(tasks []plan.Task) int {
	sorted := make([]plan.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	count := 0
	for _, t := range sorted {
		switch t.Status {
		case plan.TaskPending:
			continue
		case plan.TaskSkipped, plan.TaskOverdue:
			count++
		case plan.TaskCompleted:
			return count
		}
	}
	return count
}

// #endregion

// #region inactive-days

// InactiveDays returns the whole days elapsed since the last recorded
// activity, floored and clamped at zero. A nil lastActivity means no
// activity was ever recorded and returns UnboundedInactivity.
func InactiveDays(lastActivity *time.Time, evalDate time.Time) int {
	if lastActivity == nil {
		return UnboundedInactivity
	}
	days := int(math.Floor(evalDate.Sub(*lastActivity).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// #endregion

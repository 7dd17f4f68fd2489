package plan

import "time"

// #region difficulty
// Difficulty is the ordered task difficulty scale.
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
	DifficultyExtreme Difficulty = "extreme"
)

// difficultyOrder defines the scale easy < medium < hard < extreme.
var difficultyOrder = []Difficulty{
	DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExtreme,
}

// Rank returns the position of d on the ordered scale, or -1 for an
// unknown value.
func (d Difficulty) Rank() int {
	for i, v := range difficultyOrder {
		if v == d {
			return i
		}
	}
	return -1
}

// Valid reports whether d is one of the four known levels.
func (d Difficulty) Valid() bool {
	return d.Rank() >= 0
}

// StepDown returns the next easier level. ok is false when d is already
// the easiest level or unknown.
func (d Difficulty) StepDown() (Difficulty, bool) {
	r := d.Rank()
	if r <= 0 {
		return d, false
	}
	return difficultyOrder[r-1], true
}

// StepUp returns the next harder level. ok is false when d is already
// the hardest level or unknown.
func (d Difficulty) StepUp() (Difficulty, bool) {
	r := d.Rank()
	if r < 0 || r == len(difficultyOrder)-1 {
		return d, false
	}
	return difficultyOrder[r+1], true
}

// StepsBetween returns the absolute distance between two levels on the
// ordered scale, or -1 when either is unknown.
func StepsBetween(a, b Difficulty) int {
	ra, rb := a.Rank(), b.Rank()
	if ra < 0 || rb < 0 {
		return -1
	}
	if ra > rb {
		return ra - rb
	}
	return rb - ra
}

// #endregion difficulty

// #region task-status
// TaskStatus is the lifecycle state of a single task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskSkipped   TaskStatus = "skipped"
	TaskOverdue   TaskStatus = "overdue"
)

// #endregion task-status

// #region task
// Task is an atomic unit of work under a goal. Tasks are owned by the
// surrounding task-management layer; this core reads them to compute
// behavior and writes difficulty/frequency/status when applying an
// accepted adaptation or a harm override.
type Task struct {
	ID               string
	GoalID           string
	Title            string
	Status           TaskStatus
	Difficulty       Difficulty
	FrequencyPerWeek int
	DurationMinutes  int
	SortOrder        int
	Unrealistic      bool // user flagged the task as unrealistic
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// #endregion task

// #region goal
// Goal is a user's tracked objective, decomposed into tasks.
type Goal struct {
	ID             string
	UserID         string
	Title          string
	Difficulty     Difficulty // predominant difficulty across the plan
	PlanVersion    int
	Active         bool
	LastActivityAt *time.Time
	CreatedAt      time.Time
}

// #endregion goal

// #region snapshot
// TaskSnapshot captures the restorable fields of one task at a point in
// time. Snapshots are written before an adaptation mutates anything and
// are the only rollback mechanism.
type TaskSnapshot struct {
	TaskID           string     `json:"task_id"`
	Status           TaskStatus `json:"status"`
	Difficulty       Difficulty `json:"difficulty"`
	FrequencyPerWeek int        `json:"frequency_per_week"`
	DurationMinutes  int        `json:"duration_minutes"`
	SortOrder        int        `json:"sort_order"`
}

// StateSnapshot is the full pre-adaptation state of a goal and its tasks.
type StateSnapshot struct {
	GoalDifficulty Difficulty     `json:"goal_difficulty"`
	PlanVersion    int            `json:"plan_version"`
	Tasks          []TaskSnapshot `json:"tasks"`
}

// SnapshotTasks converts live tasks into their snapshot form.
func SnapshotTasks(tasks []Task) []TaskSnapshot {
	snaps := make([]TaskSnapshot, len(tasks))
	for i, t := range tasks {
		snaps[i] = TaskSnapshot{
			TaskID:           t.ID,
			Status:           t.Status,
			Difficulty:       t.Difficulty,
			FrequencyPerWeek: t.FrequencyPerWeek,
			DurationMinutes:  t.DurationMinutes,
			SortOrder:        t.SortOrder,
		}
	}
	return snaps
}

// #endregion snapshot

// #region new-state
// TaskChange is a per-task field change inside a proposed new state.
// Zero values mean "leave unchanged".
type TaskChange struct {
	TaskID           string     `json:"task_id"`
	Difficulty       Difficulty `json:"difficulty,omitempty"`
	FrequencyPerWeek int        `json:"frequency_per_week,omitempty"`
	DurationMinutes  int        `json:"duration_minutes,omitempty"`
}

// NewState is the proposed change set of an adaptation. It is produced
// by the refinement collaborator from an intent and applied on accept.
type NewState struct {
	Description       string       `json:"description"`
	TargetDifficulty  Difficulty   `json:"target_difficulty,omitempty"`
	BufferDays        int          `json:"buffer_days,omitempty"`
	ReduceFrequency   bool         `json:"reduce_frequency,omitempty"`
	RescheduleTaskIDs []string     `json:"reschedule_task_ids,omitempty"`
	TaskChanges       []TaskChange `json:"task_changes,omitempty"`
}

// #endregion new-state

// #region predominant
// PredominantDifficulty returns the most common difficulty across tasks.
// Ties resolve toward the easier level; empty input returns medium.
func PredominantDifficulty(tasks []Task) Difficulty {
	if len(tasks) == 0 {
		return DifficultyMedium
	}
	counts := make(map[Difficulty]int)
	for _, t := range tasks {
		if t.Difficulty.Valid() {
			counts[t.Difficulty]++
		}
	}
	best := DifficultyMedium
	bestCount := -1
	for _, d := range difficultyOrder {
		if counts[d] > bestCount {
			best = d
			bestCount = counts[d]
		}
	}
	return best
}

// #endregion predominant

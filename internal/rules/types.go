package rules

import (
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/behavior"
	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

// #region intent-type

// IntentType enumerates the adaptation proposals the rules engine can emit.
type IntentType string

const (
	IntentDifficultyChange IntentType = "difficulty_change"
	IntentReschedule       IntentType = "reschedule"
	IntentBufferAdd        IntentType = "buffer_add"
)

// #endregion

// #region intent

// Intent is a transient, bounded adaptation proposal. It is never
// persisted as-is; after refinement and validation it becomes the
// new-state payload of a stored adaptation.
type Intent struct {
	Type              IntentType
	GoalID            string
	TaskIDs           []string
	Reason            string
	Signal            behavior.Signal
	Metrics           behavior.Metrics
	CurrentDifficulty plan.Difficulty
	Changes           plan.NewState
	Priority          int
	CreatedBy         string
	GeneratedAt       time.Time
}

// #endregion

// #region context

// Context carries the current plan state into intent generation.
type Context struct {
	GoalID            string
	CurrentDifficulty plan.Difficulty
	OpenTaskIDs       []string
	EvalDate          time.Time
}

// #endregion

// #region result

// Result is the output of evaluating a batch of signals: intents sorted
// by descending priority plus a human-readable summary.
type Result struct {
	Intents []Intent
	Summary string
}

// #endregion

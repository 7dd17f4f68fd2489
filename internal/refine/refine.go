// Package refine turns a rule-derived adaptation intent into the
// concrete new-state payload stored on the adaptation. The AI-backed
// implementation is treated as an opaque black box: only the typed
// fields it returns are inspected, and every returned difficulty target
// is re-validated against the single-step constraint.
package refine

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
	"github.com/danielpatrickdp/adaptive-coach/internal/rules"
)

// #region refiner

// Refiner produces a validated NewState from an intent.
type Refiner interface {
	Refine(ctx context.Context, intent rules.Intent) (plan.NewState, error)
}

// #endregion refiner

// #region static

// StaticRefiner derives the new state directly from the intent with no
// external call. Used offline and as the fallback when no AI endpoint
// is configured.
type StaticRefiner struct{}

func (StaticRefiner) Refine(_ context.Context, intent rules.Intent) (plan.NewState, error) {
	ns := intent.Changes
	if ns.Description == "" {
		ns.Description = intent.Reason
	}
	return Validate(ns, intent)
}

// #endregion static

// #region validate

// Validate checks the typed fields of a proposed new state against the
// intent that requested it. Free-form content passes through untouched.
func Validate(ns plan.NewState, intent rules.Intent) (plan.NewState, error) {
	if ns.TargetDifficulty != "" {
		if !ns.TargetDifficulty.Valid() {
			return plan.NewState{}, fmt.Errorf("unknown difficulty %q", ns.TargetDifficulty)
		}
		if !rules.IsValidDifficultyChange(intent.CurrentDifficulty, ns.TargetDifficulty) {
			return plan.NewState{}, fmt.Errorf("difficulty change %s to %s is not a single step",
				intent.CurrentDifficulty, ns.TargetDifficulty)
		}
	}
	for _, c := range ns.TaskChanges {
		if c.Difficulty != "" && !c.Difficulty.Valid() {
			return plan.NewState{}, fmt.Errorf("task %s: unknown difficulty %q", c.TaskID, c.Difficulty)
		}
		if c.FrequencyPerWeek < 0 || c.DurationMinutes < 0 {
			return plan.NewState{}, fmt.Errorf("task %s: negative field values", c.TaskID)
		}
	}
	if ns.BufferDays < 0 {
		return plan.NewState{}, fmt.Errorf("negative buffer days %d", ns.BufferDays)
	}
	return ns, nil
}

// #endregion validate

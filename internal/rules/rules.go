package rules

import (
	"fmt"
	"sort"

	"github.com/danielpatrickdp/adaptive-coach/internal/behavior"
	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

// #region constants

const (
	// CreatedBySystem marks intents generated by the rules engine.
	CreatedBySystem = "system"

	strugglingBufferDays = 2
	criticalBufferDays   = 3
)

// priorityBySeverity derives intent priority purely from signal severity.
var priorityBySeverity = map[behavior.Severity]int{
	behavior.SeverityCritical: 4,
	behavior.SeverityHigh:     3,
	behavior.SeverityMedium:   2,
	behavior.SeverityLow:      1,
}

// #endregion

// #region validate

// IsValidDifficultyChange reports whether moving from one level to
// another is a legal single-step change. Used both when computing the
// adjacent level and when validating externally supplied targets.
func IsValidDifficultyChange(from, to plan.Difficulty) bool {
	return plan.StepsBetween(from, to) == 1
}

// #endregion

// #region build-intent

// BuildIntent maps one behavioral signal to at most one intent. Returns
// false for healthy signals (and unknown types), which produce nothing.
func BuildIntent(sig behavior.Signal, metrics behavior.Metrics, ctx Context) (Intent, bool) {
	switch sig.Type {
	case behavior.SignalStruggling:
		return reductionIntent(sig, metrics, ctx, strugglingBufferDays), true
	case behavior.SignalCritical:
		return reductionIntent(sig, metrics, ctx, criticalBufferDays), true
	case behavior.SignalAbandonmentRisk:
		return rescheduleIntent(sig, metrics, ctx), true
	case behavior.SignalHealthy:
		return Intent{}, false
	default:
		return Intent{}, false
	}
}

// reductionIntent prefers a one-step difficulty reduction and falls back
// to adding buffer days when the plan is already at the easiest level.
func reductionIntent(sig behavior.Signal, metrics behavior.Metrics, ctx Context, bufferDays int) Intent {
	base := Intent{
		GoalID:            ctx.GoalID,
		TaskIDs:           ctx.OpenTaskIDs,
		Signal:            sig,
		Metrics:           metrics,
		CurrentDifficulty: ctx.CurrentDifficulty,
		Priority:          priorityBySeverity[sig.Severity],
		CreatedBy:         CreatedBySystem,
		GeneratedAt:       ctx.EvalDate,
	}

	if target, ok := ctx.CurrentDifficulty.StepDown(); ok {
		base.Type = IntentDifficultyChange
		base.Reason = fmt.Sprintf("%s: reduce difficulty from %s to %s", sig.Message, ctx.CurrentDifficulty, target)
		base.Changes = plan.NewState{
			Description:      base.Reason,
			TargetDifficulty: target,
		}
		return base
	}

	// Already at the easiest level.
	base.Type = IntentBufferAdd
	base.Reason = fmt.Sprintf("%s: already at easiest difficulty, adding %d buffer days", sig.Message, bufferDays)
	base.Changes = plan.NewState{
		Description:     base.Reason,
		BufferDays:      bufferDays,
		ReduceFrequency: true,
	}
	return base
}

func rescheduleIntent(sig behavior.Signal, metrics behavior.Metrics, ctx Context) Intent {
	reason := fmt.Sprintf("reschedule open tasks after inactivity (%s)", sig.Message)
	return Intent{
		Type:              IntentReschedule,
		GoalID:            ctx.GoalID,
		TaskIDs:           ctx.OpenTaskIDs,
		Reason:            reason,
		Signal:            sig,
		Metrics:           metrics,
		CurrentDifficulty: ctx.CurrentDifficulty,
		Changes: plan.NewState{
			Description:       reason,
			RescheduleTaskIDs: ctx.OpenTaskIDs,
		},
		Priority:    priorityBySeverity[sig.Severity],
		CreatedBy:   CreatedBySystem,
		GeneratedAt: ctx.EvalDate,
	}
}

// #endregion

// #region build-intents

// BuildIntents evaluates a batch of signals. The output set is
// independent of input order; intents are sorted by descending priority
// before returning.
func BuildIntents(signals []behavior.Signal, metrics behavior.Metrics, ctx Context) Result {
	var intents []Intent
	for _, sig := range signals {
		if intent, ok := BuildIntent(sig, metrics, ctx); ok {
			intents = append(intents, intent)
		}
	}

	sort.SliceStable(intents, func(i, j int) bool {
		if intents[i].Priority != intents[j].Priority {
			return intents[i].Priority > intents[j].Priority
		}
		// Deterministic order among equal priorities.
		return intents[i].Type < intents[j].Type
	})

	return Result{
		Intents: intents,
		Summary: summarize(intents),
	}
}

func summarize(intents []Intent) string {
	if len(intents) == 0 {
		return "no adaptation needed"
	}
	return fmt.Sprintf("%d adaptation intent(s), top: %s", len(intents), intents[0].Type)
}

// #endregion

// Package harm is the safety layer that watches for signs the coaching
// process is hurting the user. It runs independently of the adaptation
// lifecycle and can override it: forcing difficulty down, disabling
// automatic adaptation, and requiring explicit user confirmation before
// automation may resume.
package harm

import (
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

// #region severity

// Severity orders harm signals. Escalation order is
// warning < critical < emergency.
type Severity string

const (
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

var severityOrder = map[Severity]int{
	SeverityWarning:   1,
	SeverityCritical:  2,
	SeverityEmergency: 3,
}

// Rank returns the escalation rank, 0 for unknown severities.
func (s Severity) Rank() int {
	return severityOrder[s]
}

// #endregion severity

// #region signals

// SignalType identifies which detector produced a signal.
type SignalType string

const (
	SignalUnrealisticTasks SignalType = "unrealistic_tasks"
	SignalConsistencyDrop  SignalType = "consistency_drop"
	SignalUserDistress     SignalType = "user_distress"
)

// Signal is one detected harm indicator.
type Signal struct {
	Type     SignalType
	Severity Severity
	Message  string
	Metadata map[string]any
	At       time.Time
}

// MostSevere returns the highest-ranked signal. Ties keep the earlier
// signal so detector order is the deterministic tiebreak.
func MostSevere(signals []Signal) (Signal, bool) {
	if len(signals) == 0 {
		return Signal{}, false
	}
	best := signals[0]
	for _, sig := range signals[1:] {
		if sig.Severity.Rank() > best.Severity.Rank() {
			best = sig
		}
	}
	return best, true
}

// #endregion signals

// #region actions

// ResponseActions are the overrides a detection demands.
type ResponseActions struct {
	ForceDifficulty     bool
	NewDifficulty       plan.Difficulty
	DisableAuto         bool
	ReenableAt          *time.Time // nil means indefinite
	RequireConfirmation bool
}

// Detection is the result of running one or more detectors.
type Detection struct {
	Harm    bool
	Signals []Signal
	Actions ResponseActions
}

// ActionsFor maps a severity to its response actions. Warnings pause
// automation with a scheduled re-enable; critical and emergency also
// force the plan down to easy and stay disabled until the user resolves
// the incident.
func ActionsFor(severity Severity, now time.Time) ResponseActions {
	switch severity {
	case SeverityCritical, SeverityEmergency:
		return ResponseActions{
			ForceDifficulty:     true,
			NewDifficulty:       plan.DifficultyEasy,
			DisableAuto:         true,
			RequireConfirmation: true,
		}
	default:
		reenable := now.Add(WarningCooldown)
		return ResponseActions{
			DisableAuto:         true,
			ReenableAt:          &reenable,
			RequireConfirmation: true,
		}
	}
}

// #endregion actions

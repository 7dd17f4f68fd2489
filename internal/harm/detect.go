package harm

import (
	"fmt"
	"strings"
	"time"
)

// #region thresholds

// Detector thresholds are fixed domain constants, not tunable per call.
const (
	unrealisticWarning   = 5
	unrealisticCritical  = 7
	unrealisticEmergency = 10

	dropWarning   = 30.0
	dropCritical  = 40.0
	dropEmergency = 50.0

	distressCriticalMatches = 3

	// WarningCooldown is how long automatic adaptation stays paused
	// after a warning-level incident before it may expire on its own.
	WarningCooldown = 7 * 24 * time.Hour
)

// #endregion thresholds

// #region unrealistic

// DetectUnrealisticTasks fires when the user has flagged enough of
// their plan as unrealistic that the plan itself is the problem.
func DetectUnrealisticTasks(flagged int, now time.Time) Detection {
	if flagged < unrealisticWarning {
		return Detection{}
	}
	severity := SeverityWarning
	switch {
	case flagged >= unrealisticEmergency:
		severity = SeverityEmergency
	case flagged >= unrealisticCritical:
		severity = SeverityCritical
	}
	sig := Signal{
		Type:     SignalUnrealisticTasks,
		Severity: severity,
		Message:  fmt.Sprintf("%d tasks flagged unrealistic", flagged),
		Metadata: map[string]any{"flagged_count": flagged},
		At:       now,
	}
	return Detection{Harm: true, Signals: []Signal{sig}, Actions: ActionsFor(severity, now)}
}

// #endregion unrealistic

// #region consistency

// DetectConsistencyDrop fires when completion consistency fell sharply
// after an adaptation, measured in percentage points.
func DetectConsistencyDrop(previous, current float64, now time.Time) Detection {
	drop := previous - current
	if drop < dropWarning {
		return Detection{}
	}
	severity := SeverityWarning
	switch {
	case drop >= dropEmergency:
		severity = SeverityEmergency
	case drop >= dropCritical:
		severity = SeverityCritical
	}
	sig := Signal{
		Type:     SignalConsistencyDrop,
		Severity: severity,
		Message:  fmt.Sprintf("consistency dropped %.0f points (%.0f%% to %.0f%%)", drop, previous, current),
		Metadata: map[string]any{"previous": previous, "current": current, "drop": drop},
		At:       now,
	}
	return Detection{Harm: true, Signals: []Signal{sig}, Actions: ActionsFor(severity, now)}
}

// #endregion consistency

// #region distress

var distressKeywords = []string{
	"overwhelmed",
	"burnout",
	"burned out",
	"exhausted",
	"too much",
	"can't cope",
	"stressed",
	"anxious",
}

var highDistressKeywords = []string{
	"quitting",
	"giving up",
	"hopeless",
	"worthless",
}

// DetectDistress scans a user message for distress language. Any
// high-severity keyword, or three or more matches overall, escalates to
// critical; otherwise a match is a warning.
func DetectDistress(message string, now time.Time) Detection {
	lower := strings.ToLower(message)

	var matched []string
	high := false
	for _, kw := range distressKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	for _, kw := range highDistressKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
			high = true
		}
	}
	if len(matched) == 0 {
		return Detection{}
	}

	severity := SeverityWarning
	if high || len(matched) >= distressCriticalMatches {
		severity = SeverityCritical
	}
	sig := Signal{
		Type:     SignalUserDistress,
		Severity: severity,
		Message:  fmt.Sprintf("distress language detected (%d keyword(s))", len(matched)),
		Metadata: map[string]any{"keywords": matched},
		At:       now,
	}
	return Detection{Harm: true, Signals: []Signal{sig}, Actions: ActionsFor(severity, now)}
}

// #endregion distress

// Merge combines detector results into one detection whose actions
// follow the single most severe signal.
func Merge(now time.Time, detections ...Detection) Detection {
	var out Detection
	for _, d := range detections {
		if !d.Harm {
			continue
		}
		out.Harm = true
		out.Signals = append(out.Signals, d.Signals...)
	}
	if top, ok := MostSevere(out.Signals); ok {
		out.Actions = ActionsFor(top.Severity, now)
	}
	return out
}

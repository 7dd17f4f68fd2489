package behavior

import (
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

// #region signal-type

// SignalType classifies the user's behavioral state.
type SignalType string

const (
	SignalHealthy         SignalType = "healthy"
	SignalStruggling      SignalType = "struggling"
	SignalCritical        SignalType = "critical"
	SignalAbandonmentRisk SignalType = "abandonment_risk"
)

// #endregion

// #region severity

// Severity grades how strongly a signal fired.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the severity position on the ordered scale, 0 for unknown.
func (s Severity) Rank() int {
	return severityOrder[s]
}

// #endregion

// #region signal

// Signal is one classified behavioral finding. Transient: computed per
// evaluation call, never persisted by this core.
type Signal struct {
	Type     SignalType
	Severity Severity
	Message  string
	Metadata map[string]any
	At       time.Time // the evaluation date, not wall-clock
}

// #endregion

// #region metrics

// Metrics is the raw numeric output of the metrics calculator.
type Metrics struct {
	CompletionRate      int // percent, 0-100
	ConsecutiveFailures int
	InactiveDays        int
}

// #endregion

// #region eval-io

// EvalInput is everything the engine needs for one evaluation. The
// evaluation date is supplied by the caller so identical inputs always
// produce identical signals.
type EvalInput struct {
	Tasks        []plan.Task
	LastActivity *time.Time
	EvalDate     time.Time
	WindowDays   int // 0 = default analysis window
}

// Evaluation bundles the signals and metrics from one engine run.
type Evaluation struct {
	Signals []Signal
	Metrics Metrics

	// ShouldAdapt is true iff a critical or struggling signal fired.
	// Abandonment risk alone takes the reschedule path instead.
	ShouldAdapt bool
}

// #endregion

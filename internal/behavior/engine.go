package behavior

import "fmt"

// #region thresholds

// Fixed domain thresholds. Not tunable per call.
const (
	strugglingFailureThreshold = 3  // consecutive failures
	criticalRateThreshold      = 10 // completion rate percent
	abandonmentInactiveDays    = 7
)

// #endregion

// #region evaluate

// Evaluate classifies a task history snapshot into behavioral signals.
// Critical, struggling, and abandonment risk are independent and can
// co-occur; when none fire a single healthy signal is emitted. The
// function is pure: no clock or randomness beyond input.EvalDate.
func Evaluate(input EvalInput) Evaluation {
	m := Metrics{
		CompletionRate:      CompletionRate(input.Tasks, input.EvalDate, input.WindowDays),
		ConsecutiveFailures: ConsecutiveFailures(input.Tasks),
		InactiveDays:        InactiveDays(input.LastActivity, input.EvalDate),
	}

	window := input.WindowDays
	if window <= 0 {
		window = DefaultWindowDays
	}

	var signals []Signal

	if m.ConsecutiveFailures >= strugglingFailureThreshold {
		signals = append(signals, Signal{
			Type:     SignalStruggling,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("%d consecutive tasks skipped or overdue", m.ConsecutiveFailures),
			Metadata: map[string]any{"consecutive_failures": m.ConsecutiveFailures},
			At:       input.EvalDate,
		})
	}

	if m.CompletionRate < criticalRateThreshold {
		signals = append(signals, Signal{
			Type:     SignalCritical,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("completion rate %d%% over the last %d days", m.CompletionRate, window),
			Metadata: map[string]any{"completion_rate": m.CompletionRate, "window_days": window},
			At:       input.EvalDate,
		})
	}

	if m.InactiveDays >= abandonmentInactiveDays {
		msg := fmt.Sprintf("no activity for %d days", m.InactiveDays)
		if m.InactiveDays == UnboundedInactivity {
			msg = "no activity ever recorded"
		}
		signals = append(signals, Signal{
			Type:     SignalAbandonmentRisk,
			Severity: SeverityMedium,
			Message:  msg,
			Metadata: map[string]any{"inactive_days": m.InactiveDays},
			At:       input.EvalDate,
		})
	}

	shouldAdapt := false
	for _, s := range signals {
		if s.Type == SignalCritical || s.Type == SignalStruggling {
			shouldAdapt = true
		}
	}

	if len(signals) == 0 {
		signals = append(signals, Signal{
			Type:     SignalHealthy,
			Severity: SeverityNone,
			Message:  "on track",
			At:       input.EvalDate,
		})
	}

	return Evaluation{Signals: signals, Metrics: m, ShouldAdapt: shouldAdapt}
}

// #endregion

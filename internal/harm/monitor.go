package harm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/adaptive-coach/internal/audit"
	"github.com/danielpatrickdp/adaptive-coach/internal/notify"
	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
	"github.com/danielpatrickdp/adaptive-coach/internal/store"
)

// #region monitor

// Report is one observation window handed to the monitor. Consistency
// percentages are only compared when HasConsistency is set; Message is
// the user's latest free-form note, empty when there is none.
type Report struct {
	UserID string
	GoalID string

	PreviousConsistency float64
	CurrentConsistency  float64
	HasConsistency      bool

	Message string
}

// Monitor runs the detectors against a report and owns the resulting
// incidents and per-user gate state.
type Monitor struct {
	store  *store.Store
	sink   *audit.Sink
	notify notify.Notifier
	now    func() time.Time
}

// NewMonitor wires a monitor over the shared store and collaborators.
func NewMonitor(st *store.Store, sink *audit.Sink, n notify.Notifier) *Monitor {
	return &Monitor{store: st, sink: sink, notify: n, now: time.Now}
}

// SetClock overrides the monitor's clock. Tests only.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// Evaluate runs all three detectors. The unrealistic-task count comes
// from the store; the other inputs come from the report itself.
func (m *Monitor) Evaluate(ctx context.Context, rep Report) (Detection, error) {
	now := m.now().UTC()

	flagged, err := m.store.CountUnrealistic(ctx, rep.UserID)
	if err != nil {
		return Detection{}, fmt.Errorf("count unrealistic tasks: %w", err)
	}

	detections := []Detection{DetectUnrealisticTasks(flagged, now)}
	if rep.HasConsistency {
		detections = append(detections, DetectConsistencyDrop(rep.PreviousConsistency, rep.CurrentConsistency, now))
	}
	if rep.Message != "" {
		detections = append(detections, DetectDistress(rep.Message, now))
	}
	return Merge(now, detections...), nil
}

// #endregion monitor

// #region process

// ProcessHarm evaluates a report and, when harm is detected, persists
// an incident for the most severe signal, flips the user's gate state,
// applies any forced difficulty reduction, and emits audit and
// notification events. Returns nil when nothing fired.
func (m *Monitor) ProcessHarm(ctx context.Context, rep Report) (*store.HarmIncident, error) {
	det, err := m.Evaluate(ctx, rep)
	if err != nil {
		return nil, err
	}
	if !det.Harm {
		return nil, nil
	}

	now := m.now().UTC()
	top, _ := MostSevere(det.Signals)

	inc := store.HarmIncident{
		ID:           uuid.New().String(),
		UserID:       rep.UserID,
		GoalID:       rep.GoalID,
		SignalType:   string(top.Type),
		Severity:     string(top.Severity),
		Message:      top.Message,
		MetadataJSON: marshalMetadata(top.Metadata),

		ForcedDifficulty:     det.Actions.ForceDifficulty,
		NewDifficulty:        string(det.Actions.NewDifficulty),
		AutoDisabled:         det.Actions.DisableAuto,
		ReenableAt:           det.Actions.ReenableAt,
		RequiresConfirmation: det.Actions.RequireConfirmation,

		Status:    store.IncidentActive,
		CreatedAt: now,
	}
	if err := m.store.InsertIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("persist incident: %w", err)
	}

	st, err := m.store.GetHarmState(ctx, rep.UserID)
	if err != nil {
		return nil, fmt.Errorf("read harm state: %w", err)
	}
	st.AutoDisabled = true
	st.PendingConfirmation = true
	if st.DisablingIncidentID == "" {
		st.DisablingIncidentID = inc.ID
		st.DisabledAt = &now
	}
	if err := m.store.PutHarmState(ctx, st); err != nil {
		return nil, fmt.Errorf("write harm state: %w", err)
	}

	if det.Actions.ForceDifficulty && rep.GoalID != "" {
		lowered, err := m.ForceDifficultyReduction(ctx, rep.GoalID, det.Actions.NewDifficulty)
		if err != nil {
			return nil, fmt.Errorf("forced reduction: %w", err)
		}
		if inc.MetadataJSON != "" {
			top.Metadata["tasks_lowered"] = lowered
			inc.MetadataJSON = marshalMetadata(top.Metadata)
		}
	}

	m.sink.WriteBestEffort(ctx, audit.Record{
		Category:   audit.CategoryHarm,
		EventType:  "harm_incident_created",
		Actor:      "system",
		EntityKind: "harm_incident",
		EntityID:   inc.ID,
		PayloadJSON: audit.Payload(map[string]any{
			"signal_type": inc.SignalType,
			"severity":    inc.Severity,
			"goal_id":     inc.GoalID,
		}),
	})
	notify.BestEffort(ctx, m.notify, notify.Event{
		UserID:  rep.UserID,
		Kind:    "harm_incident",
		Subject: inc.ID,
		Message: top.Message,
	})
	return &inc, nil
}

// ForceDifficultyReduction lowers every task above target to target and
// aligns the goal's difficulty, returning the number of tasks changed.
func (m *Monitor) ForceDifficultyReduction(ctx context.Context, goalID string, target plan.Difficulty) (int, error) {
	lowered, err := m.store.LowerTasksAbove(ctx, goalID, target)
	if err != nil {
		return 0, err
	}
	if err := m.store.SetGoalDifficulty(ctx, goalID, target); err != nil {
		return lowered, err
	}
	return lowered, nil
}

// #endregion process

// #region resolution

// ConfirmIncident records the user's confirm-to-proceed on an active
// incident and recomputes the gate.
func (m *Monitor) ConfirmIncident(ctx context.Context, incidentID string) error {
	return m.closeIncident(ctx, incidentID, store.IncidentUserConfirmed)
}

// ResolveIncident closes an active incident without user confirmation,
// e.g. by an operator, and recomputes the gate.
func (m *Monitor) ResolveIncident(ctx context.Context, incidentID string) error {
	return m.closeIncident(ctx, incidentID, store.IncidentResolved)
}

func (m *Monitor) closeIncident(ctx context.Context, incidentID string, status store.IncidentStatus) error {
	inc, err := m.store.GetIncident(ctx, incidentID)
	if err != nil {
		return err
	}
	now := m.now().UTC()
	ok, err := m.store.SetIncidentStatus(ctx, incidentID, status, &now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("incident %s is not active", incidentID)
	}
	if err := m.recomputeGate(ctx, inc.UserID); err != nil {
		return err
	}

	m.sink.WriteBestEffort(ctx, audit.Record{
		Category:   audit.CategoryHarm,
		EventType:  "harm_incident_" + string(status),
		Actor:      inc.UserID,
		EntityKind: "harm_incident",
		EntityID:   incidentID,
	})
	return nil
}

// ExpireIncidents closes active incidents whose re-enable time has
// passed, then recomputes the user's gate. Indefinite incidents
// (no re-enable time) never expire.
func (m *Monitor) ExpireIncidents(ctx context.Context, userID string) (int, error) {
	actives, err := m.store.ListActiveIncidents(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := m.now().UTC()
	expired := 0
	for _, inc := range actives {
		if inc.ReenableAt == nil || now.Before(*inc.ReenableAt) {
			continue
		}
		ok, err := m.store.SetIncidentStatus(ctx, inc.ID, store.IncidentExpired, &now)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		if err := m.recomputeGate(ctx, userID); err != nil {
			return expired, err
		}
	}
	return expired, nil
}

// recomputeGate rebuilds the user's gate state from the remaining
// active incidents. With none left the gate opens fully; otherwise the
// oldest active incident becomes the blocking cause.
func (m *Monitor) recomputeGate(ctx context.Context, userID string) error {
	actives, err := m.store.ListActiveIncidents(ctx, userID)
	if err != nil {
		return err
	}

	st := store.UserHarmState{UserID: userID}
	if len(actives) > 0 {
		oldest := actives[0]
		st.AutoDisabled = true
		st.DisablingIncidentID = oldest.ID
		createdAt := oldest.CreatedAt
		st.DisabledAt = &createdAt
		for _, inc := range actives {
			if inc.RequiresConfirmation {
				st.PendingConfirmation = true
				break
			}
		}
	}
	return m.store.PutHarmState(ctx, st)
}

// #endregion resolution

// #region gate

// AutoAdaptationDisabled reports whether the harm layer currently
// blocks system-originated adaptations for the user.
func (m *Monitor) AutoAdaptationDisabled(ctx context.Context, userID string) (bool, error) {
	st, err := m.store.GetHarmState(ctx, userID)
	if err != nil {
		return true, err
	}
	return st.AutoDisabled, nil
}

// PendingConfirmation reports whether the user still owes a
// confirm-to-proceed on an incident.
func (m *Monitor) PendingConfirmation(ctx context.Context, userID string) (bool, error) {
	st, err := m.store.GetHarmState(ctx, userID)
	if err != nil {
		return true, err
	}
	return st.PendingConfirmation, nil
}

// #endregion gate

func marshalMetadata(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	b, err := json.Marshal(md)
	if err != nil {
		return ""
	}
	return string(b)
}

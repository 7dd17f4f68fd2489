// Package lifecycle owns the adaptation state machine: suggestions are
// created with a state snapshot, applied on acceptance, blocked for a
// window on rejection, and restored from the snapshot on rollback.
// Every transition is guarded by an atomic conditional update so
// concurrent requests on the same adaptation cannot both pass a guard.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/adaptive-coach/internal/audit"
	"github.com/danielpatrickdp/adaptive-coach/internal/notify"
	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
	"github.com/danielpatrickdp/adaptive-coach/internal/rules"
	"github.com/danielpatrickdp/adaptive-coach/internal/store"
)

// #region windows

const (
	// RollbackWindow is how long after acceptance an adaptation may be
	// reverted.
	RollbackWindow = 7 * 24 * time.Hour

	// BlockWindow is how long after rejection or rollback the same
	// adaptation type cannot be re-suggested for that goal.
	BlockWindow = 7 * 24 * time.Hour
)

// #endregion windows

// #region manager

// HarmGate is the safety check consulted before creating any
// system-originated suggestion. User-originated adaptations are not
// gated: harm protection targets automatic escalation, not user agency.
type HarmGate interface {
	AutoAdaptationDisabled(ctx context.Context, userID string) (bool, error)
	PendingConfirmation(ctx context.Context, userID string) (bool, error)
}

// Manager drives all adaptation lifecycle transitions.
type Manager struct {
	store  *store.Store
	sink   *audit.Sink
	notify notify.Notifier
	gate   HarmGate
	now    func() time.Time
}

// NewManager wires a manager. gate may be nil, in which case no harm
// gating applies.
func NewManager(st *store.Store, sink *audit.Sink, n notify.Notifier, gate HarmGate) *Manager {
	return &Manager{store: st, sink: sink, notify: n, gate: gate, now: time.Now}
}

// SetClock overrides the manager's clock. Tests only.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// #endregion manager

// #region suggest

// SuggestRequest carries everything needed to create a suggestion.
type SuggestRequest struct {
	UserID    string
	GoalID    string
	Type      rules.IntentType
	Reason    string
	NewState  plan.NewState
	CreatedBy string // rules.CreatedBySystem or a user id tag
}

// Suggest creates an adaptation in the suggested state. The current
// goal and task state is snapshotted before anything is persisted; the
// snapshot is the only means of rollback and never changes afterwards.
func (m *Manager) Suggest(ctx context.Context, req SuggestRequest) (store.Adaptation, error) {
	goal, err := m.store.GetGoal(ctx, req.UserID, req.GoalID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Adaptation{}, failf(CodeGoalNotFound, "goal %s not found", req.GoalID)
	}
	if err != nil {
		return store.Adaptation{}, wrap(CodeInternal, err, "load goal")
	}

	now := m.now().UTC()

	if req.CreatedBy == rules.CreatedBySystem && m.gate != nil {
		disabled, err := m.gate.AutoAdaptationDisabled(ctx, req.UserID)
		if err != nil {
			return store.Adaptation{}, wrap(CodeInternal, err, "harm gate")
		}
		if disabled {
			return store.Adaptation{}, failf(CodeHarmBlocked, "automatic adaptation is disabled for user %s", req.UserID)
		}
		pending, err := m.gate.PendingConfirmation(ctx, req.UserID)
		if err != nil {
			return store.Adaptation{}, wrap(CodeInternal, err, "harm gate")
		}
		if pending {
			return store.Adaptation{}, failf(CodeHarmBlocked, "user %s must confirm a harm incident first", req.UserID)
		}
	}

	blockedUntil, err := m.store.ActiveBlock(ctx, req.GoalID, string(req.Type), now)
	if err != nil {
		return store.Adaptation{}, wrap(CodeInternal, err, "check block")
	}
	if blockedUntil != nil {
		return store.Adaptation{}, failf(CodeBlocked, "%s blocked for another %s",
			req.Type, blockedUntil.Sub(now).Round(time.Minute))
	}

	if req.NewState.TargetDifficulty != "" &&
		!rules.IsValidDifficultyChange(goal.Difficulty, req.NewState.TargetDifficulty) {
		return store.Adaptation{}, failf(CodeValidation, "difficulty change %s to %s is not a single step",
			goal.Difficulty, req.NewState.TargetDifficulty)
	}

	tasks, err := m.store.ListTasks(ctx, req.GoalID)
	if err != nil {
		return store.Adaptation{}, wrap(CodeInternal, err, "snapshot tasks")
	}

	a := store.Adaptation{
		ID:     uuid.New().String(),
		GoalID: req.GoalID,
		Type:   string(req.Type),
		Reason: req.Reason,
		Status: store.StatusSuggested,
		PreviousState: plan.StateSnapshot{
			GoalDifficulty: goal.Difficulty,
			PlanVersion:    goal.PlanVersion,
			Tasks:          plan.SnapshotTasks(tasks),
		},
		NewState:  req.NewState,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
	}
	if err := m.store.InsertAdaptation(ctx, a); err != nil {
		return store.Adaptation{}, wrap(CodeInternal, err, "persist adaptation")
	}

	m.emit(ctx, "adaptation_suggested", req.UserID, a, map[string]any{
		"type": a.Type, "created_by": a.CreatedBy,
	})
	return a, nil
}

// #endregion suggest

// #region accept

// AcceptResult reports what acceptance changed.
type AcceptResult struct {
	Adaptation    store.Adaptation
	TasksModified int
	PlanVersion   int
}

// Accept claims the adaptation with an atomic suggested-to-accepted
// update, then applies the new state and bumps the goal's plan version
// exactly once. The claim comes first so two concurrent accepts cannot
// both apply: the loser sees zero rows affected and fails with a state
// conflict.
func (m *Manager) Accept(ctx context.Context, userID, adaptationID string) (AcceptResult, error) {
	a, err := m.load(ctx, userID, adaptationID)
	if err != nil {
		return AcceptResult{}, err
	}

	now := m.now().UTC()
	ok, err := m.store.TransitionAdaptation(ctx, a.ID, store.StatusSuggested, store.StatusAccepted, &now, nil)
	if err != nil {
		return AcceptResult{}, wrap(CodeInternal, err, "transition")
	}
	if !ok {
		return AcceptResult{}, failf(CodeInvalidStatus, "adaptation %s is not in suggested state", a.ID)
	}
	a.Status = store.StatusAccepted
	a.ProcessedAt = &now

	modified, err := m.applyNewState(ctx, a)
	if err != nil {
		return AcceptResult{}, wrap(CodeApplyFailed, err, "apply new state")
	}

	version, err := m.store.BumpPlanVersion(ctx, a.GoalID)
	if err != nil {
		return AcceptResult{}, wrap(CodeInternal, err, "bump plan version")
	}

	m.emit(ctx, "adaptation_accepted", userID, a, map[string]any{
		"tasks_modified": modified, "plan_version": version,
	})
	return AcceptResult{Adaptation: a, TasksModified: modified, PlanVersion: version}, nil
}

// applyNewState mutates tasks per the accepted new state. Per-task
// changes win over the blanket difficulty path when both are present.
func (m *Manager) applyNewState(ctx context.Context, a store.Adaptation) (int, error) {
	ns := a.NewState
	if len(ns.TaskChanges) > 0 {
		modified := 0
		for _, c := range ns.TaskChanges {
			ok, err := m.store.ApplyTaskChange(ctx, a.GoalID, c)
			if err != nil {
				return modified, err
			}
			if ok {
				modified++
			}
		}
		return modified, nil
	}
	if rules.IntentType(a.Type) == rules.IntentDifficultyChange && ns.TargetDifficulty != "" {
		modified, err := m.store.SetAllTaskDifficulty(ctx, a.GoalID, ns.TargetDifficulty)
		if err != nil {
			return 0, err
		}
		if err := m.store.SetGoalDifficulty(ctx, a.GoalID, ns.TargetDifficulty); err != nil {
			return modified, err
		}
		return modified, nil
	}
	// Reschedules and buffer additions change scheduling metadata held
	// by the surrounding planner, not task rows.
	return 0, nil
}

// #endregion accept

// #region reject

// Reject moves a suggestion to rejected and blocks the same adaptation
// type for the goal for the block window.
func (m *Manager) Reject(ctx context.Context, userID, adaptationID string) (store.Adaptation, error) {
	a, err := m.load(ctx, userID, adaptationID)
	if err != nil {
		return store.Adaptation{}, err
	}

	now := m.now().UTC()
	blocked := now.Add(BlockWindow)
	ok, err := m.store.TransitionAdaptation(ctx, a.ID, store.StatusSuggested, store.StatusRejected, nil, &blocked)
	if err != nil {
		return store.Adaptation{}, wrap(CodeInternal, err, "transition")
	}
	if !ok {
		return store.Adaptation{}, failf(CodeInvalidStatus, "adaptation %s is not in suggested state", a.ID)
	}
	a.Status = store.StatusRejected
	a.BlockedUntil = &blocked

	m.emit(ctx, "adaptation_rejected", userID, a, map[string]any{
		"blocked_until": blocked,
	})
	return a, nil
}

// #endregion reject

// #region rollback

// Rollback reverts an accepted adaptation within the rollback window,
// restoring every snapshotted task field and the goal's difficulty,
// then blocks the type like a rejection. Rolled back is terminal.
func (m *Manager) Rollback(ctx context.Context, userID, adaptationID string) (store.Adaptation, error) {
	a, err := m.load(ctx, userID, adaptationID)
	if err != nil {
		return store.Adaptation{}, err
	}
	if a.Status != store.StatusAccepted {
		return store.Adaptation{}, failf(CodeInvalidStatus, "adaptation %s is not accepted", a.ID)
	}
	if a.ProcessedAt == nil {
		return store.Adaptation{}, failf(CodeInternal, "adaptation %s accepted without processed time", a.ID)
	}

	now := m.now().UTC()
	if now.After(a.ProcessedAt.Add(RollbackWindow)) {
		return store.Adaptation{}, failf(CodeRollbackWindowExpired, "rollback window for %s closed %s ago",
			a.ID, now.Sub(a.ProcessedAt.Add(RollbackWindow)).Round(time.Minute))
	}

	blocked := now.Add(BlockWindow)
	ok, err := m.store.TransitionAdaptation(ctx, a.ID, store.StatusAccepted, store.StatusRolledBack, nil, &blocked)
	if err != nil {
		return store.Adaptation{}, wrap(CodeInternal, err, "transition")
	}
	if !ok {
		return store.Adaptation{}, failf(CodeInvalidStatus, "adaptation %s is not in accepted state", a.ID)
	}
	a.Status = store.StatusRolledBack
	a.BlockedUntil = &blocked

	for _, snap := range a.PreviousState.Tasks {
		if err := m.store.RestoreTaskSnapshot(ctx, a.GoalID, snap); err != nil {
			return store.Adaptation{}, wrap(CodeRestoreFailed, err, "restore task %s", snap.TaskID)
		}
	}
	if err := m.store.SetGoalDifficulty(ctx, a.GoalID, a.PreviousState.GoalDifficulty); err != nil {
		return store.Adaptation{}, wrap(CodeRestoreFailed, err, "restore goal difficulty")
	}
	version, err := m.store.BumpPlanVersion(ctx, a.GoalID)
	if err != nil {
		return store.Adaptation{}, wrap(CodeInternal, err, "bump plan version")
	}

	m.emit(ctx, "adaptation_rolled_back", userID, a, map[string]any{
		"tasks_restored": len(a.PreviousState.Tasks), "plan_version": version,
	})
	return a, nil
}

// #endregion rollback

// #region reads

// Get returns one adaptation, ownership-checked through its goal.
func (m *Manager) Get(ctx context.Context, userID, adaptationID string) (store.Adaptation, error) {
	return m.load(ctx, userID, adaptationID)
}

// ListByGoal returns a goal's adaptations, newest first.
func (m *Manager) ListByGoal(ctx context.Context, userID, goalID string) ([]store.Adaptation, error) {
	if _, err := m.store.GetGoal(ctx, userID, goalID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, failf(CodeGoalNotFound, "goal %s not found", goalID)
		}
		return nil, wrap(CodeInternal, err, "load goal")
	}
	out, err := m.store.ListAdaptationsByGoal(ctx, goalID)
	if err != nil {
		return nil, wrap(CodeInternal, err, "list adaptations")
	}
	return out, nil
}

// Delete removes an adaptation outright. Administrative escape hatch,
// not part of the lifecycle contract.
func (m *Manager) Delete(ctx context.Context, userID, adaptationID string) error {
	a, err := m.load(ctx, userID, adaptationID)
	if err != nil {
		return err
	}
	ok, err := m.store.DeleteAdaptation(ctx, a.ID)
	if err != nil {
		return wrap(CodeInternal, err, "delete adaptation")
	}
	if !ok {
		return failf(CodeNotFound, "adaptation %s not found", adaptationID)
	}
	m.emit(ctx, "adaptation_deleted", userID, a, nil)
	return nil
}

// load fetches the adaptation and verifies the caller owns its goal.
// Both an absent adaptation and an unowned one come back as NOT_FOUND.
func (m *Manager) load(ctx context.Context, userID, adaptationID string) (store.Adaptation, error) {
	a, err := m.store.GetAdaptation(ctx, adaptationID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Adaptation{}, failf(CodeNotFound, "adaptation %s not found", adaptationID)
	}
	if err != nil {
		return store.Adaptation{}, wrap(CodeInternal, err, "load adaptation")
	}
	if _, err := m.store.GetGoal(ctx, userID, a.GoalID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Adaptation{}, failf(CodeNotFound, "adaptation %s not found", adaptationID)
		}
		return store.Adaptation{}, wrap(CodeInternal, err, "load goal")
	}
	return a, nil
}

// #endregion reads

// emit writes the audit record and notification for a transition.
// Neither may fail the primary operation.
func (m *Manager) emit(ctx context.Context, eventType, userID string, a store.Adaptation, payload map[string]any) {
	var payloadJSON string
	if payload != nil {
		payloadJSON = audit.Payload(payload)
	}
	m.sink.WriteBestEffort(ctx, audit.Record{
		Category:    audit.CategoryLifecycle,
		EventType:   eventType,
		Actor:       userID,
		EntityKind:  "adaptation",
		EntityID:    a.ID,
		PayloadJSON: payloadJSON,
	})
	notify.BestEffort(ctx, m.notify, notify.Event{
		UserID:  userID,
		Kind:    eventType,
		Subject: a.ID,
		Message: a.Reason,
	})
}

package harm

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/audit"
	"github.com/danielpatrickdp/adaptive-coach/internal/notify"
	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
	"github.com/danielpatrickdp/adaptive-coach/internal/store"
)

var monitorNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newMonitor(t *testing.T) (*Monitor, *store.Store) {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	m := NewMonitor(st, audit.NewSink(st.DB()), notify.Discard{})
	m.SetClock(func() time.Time { return monitorNow })
	return m, st
}

func seedGoal(t *testing.T, st *store.Store, userID, goalID string, d plan.Difficulty) {
	t.Helper()
	err := st.CreateGoal(context.Background(), plan.Goal{
		ID: goalID, UserID: userID, Title: "run a 10k", Difficulty: d,
		PlanVersion: 1, Active: true, CreatedAt: monitorNow,
	})
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
}

func seedFlaggedTasks(t *testing.T, st *store.Store, goalID string, flagged, plain int) {
	t.Helper()
	for i := 0; i < flagged+plain; i++ {
		err := st.CreateTask(context.Background(), plan.Task{
			ID: fmt.Sprintf("%s-task-%d", goalID, i), GoalID: goalID,
			Title: "interval session", Status: plan.TaskPending,
			Difficulty: plan.DifficultyHard, FrequencyPerWeek: 3,
			DurationMinutes: 30, SortOrder: i, Unrealistic: i < flagged,
			CreatedAt: monitorNow,
		})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}
}

func TestProcessHarmWarning(t *testing.T) {
	m, st := newMonitor(t)
	seedGoal(t, st, "user-1", "goal-1", plan.DifficultyHard)
	seedFlaggedTasks(t, st, "goal-1", 5, 2)

	inc, err := m.ProcessHarm(context.Background(), Report{UserID: "user-1", GoalID: "goal-1"})
	if err != nil {
		t.Fatalf("ProcessHarm: %v", err)
	}
	if inc == nil || inc.Severity != string(SeverityWarning) {
		t.Fatalf("expected warning incident, got %+v", inc)
	}
	if inc.ForcedDifficulty {
		t.Fatal("warning must not force difficulty")
	}

	// Tasks untouched.
	tasks, err := st.ListTasks(context.Background(), "goal-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	for _, task := range tasks {
		if task.Difficulty != plan.DifficultyHard {
			t.Fatalf("task %s should keep its difficulty", task.ID)
		}
	}

	disabled, err := m.AutoAdaptationDisabled(context.Background(), "user-1")
	if err != nil || !disabled {
		t.Fatalf("gate should be closed: disabled=%v err=%v", disabled, err)
	}
	pending, err := m.PendingConfirmation(context.Background(), "user-1")
	if err != nil || !pending {
		t.Fatalf("confirmation should be pending: pending=%v err=%v", pending, err)
	}
}

func TestProcessHarmCriticalForcesReduction(t *testing.T) {
	m, st := newMonitor(t)
	seedGoal(t, st, "user-1", "goal-1", plan.DifficultyHard)
	seedFlaggedTasks(t, st, "goal-1", 7, 1)

	inc, err := m.ProcessHarm(context.Background(), Report{UserID: "user-1", GoalID: "goal-1"})
	if err != nil {
		t.Fatalf("ProcessHarm: %v", err)
	}
	if inc.Severity != string(SeverityCritical) || !inc.ForcedDifficulty {
		t.Fatalf("expected forced critical incident, got %+v", inc)
	}

	tasks, err := st.ListTasks(context.Background(), "goal-1")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	for _, task := range tasks {
		if task.Difficulty != plan.DifficultyEasy {
			t.Fatalf("task %s should have been lowered to easy, got %s", task.ID, task.Difficulty)
		}
	}
	goal, err := st.GetGoal(context.Background(), "user-1", "goal-1")
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if goal.Difficulty != plan.DifficultyEasy {
		t.Fatalf("goal difficulty should follow the reduction, got %s", goal.Difficulty)
	}
}

func TestProcessHarmNothingFires(t *testing.T) {
	m, st := newMonitor(t)
	seedGoal(t, st, "user-1", "goal-1", plan.DifficultyMedium)
	seedFlaggedTasks(t, st, "goal-1", 2, 3)

	inc, err := m.ProcessHarm(context.Background(), Report{
		UserID: "user-1", GoalID: "goal-1",
		Message: "going well, feeling good",
	})
	if err != nil {
		t.Fatalf("ProcessHarm: %v", err)
	}
	if inc != nil {
		t.Fatalf("no detector should fire, got %+v", inc)
	}

	disabled, err := m.AutoAdaptationDisabled(context.Background(), "user-1")
	if err != nil || disabled {
		t.Fatalf("gate should stay open: disabled=%v err=%v", disabled, err)
	}
}

func TestConfirmReopensGate(t *testing.T) {
	m, st := newMonitor(t)
	seedGoal(t, st, "user-1", "goal-1", plan.DifficultyMedium)
	seedFlaggedTasks(t, st, "goal-1", 5, 0)

	inc, err := m.ProcessHarm(context.Background(), Report{UserID: "user-1", GoalID: "goal-1"})
	if err != nil {
		t.Fatalf("ProcessHarm: %v", err)
	}

	if err := m.ConfirmIncident(context.Background(), inc.ID); err != nil {
		t.Fatalf("ConfirmIncident: %v", err)
	}

	disabled, err := m.AutoAdaptationDisabled(context.Background(), "user-1")
	if err != nil || disabled {
		t.Fatalf("gate should reopen after the only incident is confirmed: disabled=%v err=%v", disabled, err)
	}
	pending, err := m.PendingConfirmation(context.Background(), "user-1")
	if err != nil || pending {
		t.Fatalf("no confirmation should remain pending: pending=%v err=%v", pending, err)
	}

	// Confirming twice fails: the incident is no longer active.
	if err := m.ConfirmIncident(context.Background(), inc.ID); err == nil {
		t.Fatal("second confirm should fail")
	}
}

func TestConfirmWithRemainingActiveKeepsGateClosed(t *testing.T) {
	m, st := newMonitor(t)
	seedGoal(t, st, "user-1", "goal-1", plan.DifficultyMedium)
	seedFlaggedTasks(t, st, "goal-1", 5, 0)

	first, err := m.ProcessHarm(context.Background(), Report{UserID: "user-1", GoalID: "goal-1"})
	if err != nil {
		t.Fatalf("ProcessHarm first: %v", err)
	}
	second, err := m.ProcessHarm(context.Background(), Report{
		UserID: "user-1", GoalID: "goal-1",
		Message: "honestly feeling hopeless about this",
	})
	if err != nil {
		t.Fatalf("ProcessHarm second: %v", err)
	}

	if err := m.ConfirmIncident(context.Background(), first.ID); err != nil {
		t.Fatalf("ConfirmIncident: %v", err)
	}

	disabled, err := m.AutoAdaptationDisabled(context.Background(), "user-1")
	if err != nil || !disabled {
		t.Fatalf("gate must stay closed while an incident remains active: disabled=%v err=%v", disabled, err)
	}
	st2, err := st.GetHarmState(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetHarmState: %v", err)
	}
	if st2.DisablingIncidentID != second.ID {
		t.Fatalf("remaining incident should become the blocking cause, got %s", st2.DisablingIncidentID)
	}
}

func TestExpireIncidents(t *testing.T) {
	m, st := newMonitor(t)
	seedGoal(t, st, "user-1", "goal-1", plan.DifficultyMedium)
	seedFlaggedTasks(t, st, "goal-1", 5, 0)

	if _, err := m.ProcessHarm(context.Background(), Report{UserID: "user-1", GoalID: "goal-1"}); err != nil {
		t.Fatalf("ProcessHarm: %v", err)
	}

	// Before the cooldown elapses nothing expires.
	n, err := m.ExpireIncidents(context.Background(), "user-1")
	if err != nil || n != 0 {
		t.Fatalf("expected no expirations yet: n=%d err=%v", n, err)
	}

	m.SetClock(func() time.Time { return monitorNow.Add(WarningCooldown + time.Hour) })
	n, err = m.ExpireIncidents(context.Background(), "user-1")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 expiration: n=%d err=%v", n, err)
	}

	disabled, err := m.AutoAdaptationDisabled(context.Background(), "user-1")
	if err != nil || disabled {
		t.Fatalf("gate should reopen after expiry: disabled=%v err=%v", disabled, err)
	}
}

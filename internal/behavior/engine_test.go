package behavior

import (
	"reflect"
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

func recentActivity() *time.Time {
	t := evalDate.Add(-2 * time.Hour)
	return &t
}

func TestEvaluateHealthy(t *testing.T) {
	tasks := makeTasks(plan.TaskCompleted, plan.TaskCompleted, plan.TaskCompleted)
	ev := Evaluate(EvalInput{Tasks: tasks, LastActivity: recentActivity(), EvalDate: evalDate})

	if len(ev.Signals) != 1 {
		t.Fatalf("expected exactly one signal, got %d", len(ev.Signals))
	}
	if ev.Signals[0].Type != SignalHealthy {
		t.Fatalf("expected healthy, got %s", ev.Signals[0].Type)
	}
	if ev.ShouldAdapt {
		t.Fatal("healthy user should not trigger adaptation")
	}
}

func TestEvaluateStruggling(t *testing.T) {
	tasks := makeTasks(
		plan.TaskSkipped, plan.TaskSkipped, plan.TaskSkipped,
		plan.TaskCompleted, plan.TaskCompleted,
	)
	ev := Evaluate(EvalInput{Tasks: tasks, LastActivity: recentActivity(), EvalDate: evalDate})

	if !hasSignal(ev, SignalStruggling) {
		t.Fatalf("expected struggling signal, got %v", signalTypes(ev))
	}
	if !ev.ShouldAdapt {
		t.Fatal("struggling should trigger adaptation")
	}
	if ev.Metrics.ConsecutiveFailures != 3 {
		t.Fatalf("expected 3 consecutive failures, got %d", ev.Metrics.ConsecutiveFailures)
	}
}

func TestEvaluateCritical(t *testing.T) {
	tasks := makeTasks(
		plan.TaskSkipped, plan.TaskOverdue, plan.TaskSkipped,
		plan.TaskOverdue, plan.TaskSkipped, plan.TaskSkipped,
		plan.TaskOverdue, plan.TaskSkipped, plan.TaskOverdue,
		plan.TaskSkipped, plan.TaskSkipped, plan.TaskCompleted,
	)
	// 1/12 ≈ 8% < 10%
	ev := Evaluate(EvalInput{Tasks: tasks, LastActivity: recentActivity(), EvalDate: evalDate})

	if !hasSignal(ev, SignalCritical) {
		t.Fatalf("expected critical signal, got %v", signalTypes(ev))
	}
	if !ev.ShouldAdapt {
		t.Fatal("critical should trigger adaptation")
	}
}

func TestEvaluateAbandonmentRiskOnly(t *testing.T) {
	tasks := makeTasks(plan.TaskCompleted, plan.TaskCompleted)
	last := evalDate.AddDate(0, 0, -8)
	ev := Evaluate(EvalInput{Tasks: tasks, LastActivity: &last, EvalDate: evalDate})

	if !hasSignal(ev, SignalAbandonmentRisk) {
		t.Fatalf("expected abandonment risk, got %v", signalTypes(ev))
	}
	if ev.ShouldAdapt {
		t.Fatal("abandonment risk alone should not set ShouldAdapt")
	}
}

func TestEvaluateNoActivityEverTripsAbandonment(t *testing.T) {
	ev := Evaluate(EvalInput{EvalDate: evalDate})
	if !hasSignal(ev, SignalAbandonmentRisk) {
		t.Fatalf("expected abandonment risk with no activity, got %v", signalTypes(ev))
	}
}

func TestEvaluateSignalsCanCoOccur(t *testing.T) {
	tasks := makeTasks(
		plan.TaskSkipped, plan.TaskSkipped, plan.TaskSkipped,
		plan.TaskOverdue, plan.TaskSkipped, plan.TaskOverdue,
		plan.TaskSkipped, plan.TaskOverdue, plan.TaskSkipped,
		plan.TaskOverdue,
	)
	last := evalDate.AddDate(0, 0, -9)
	ev := Evaluate(EvalInput{Tasks: tasks, LastActivity: &last, EvalDate: evalDate})

	for _, want := range []SignalType{SignalStruggling, SignalCritical, SignalAbandonmentRisk} {
		if !hasSignal(ev, want) {
			t.Fatalf("expected %s to co-occur, got %v", want, signalTypes(ev))
		}
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	tasks := makeTasks(plan.TaskSkipped, plan.TaskSkipped, plan.TaskSkipped, plan.TaskCompleted)
	input := EvalInput{Tasks: tasks, LastActivity: recentActivity(), EvalDate: evalDate}

	a := Evaluate(input)
	b := Evaluate(input)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical inputs must produce identical evaluations")
	}
}

func hasSignal(ev Evaluation, st SignalType) bool {
	for _, s := range ev.Signals {
		if s.Type == st {
			return true
		}
	}
	return false
}

func signalTypes(ev Evaluation) []SignalType {
	types := make([]SignalType, len(ev.Signals))
	for i, s := range ev.Signals {
		types[i] = s.Type
	}
	return types
}

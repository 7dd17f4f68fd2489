package harm

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

var detectNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestUnrealisticTaskThresholds(t *testing.T) {
	if det := DetectUnrealisticTasks(4, detectNow); det.Harm {
		t.Fatal("4 flagged tasks should not fire")
	}

	det := DetectUnrealisticTasks(5, detectNow)
	if !det.Harm || det.Signals[0].Severity != SeverityWarning {
		t.Fatalf("5 flagged should be a warning, got %+v", det)
	}
	if det.Actions.ForceDifficulty {
		t.Fatal("warnings do not force difficulty")
	}
	if det.Actions.ReenableAt == nil {
		t.Fatal("warnings pause with a scheduled re-enable")
	}

	det = DetectUnrealisticTasks(7, detectNow)
	if det.Signals[0].Severity != SeverityCritical {
		t.Fatalf("7 flagged should be critical, got %s", det.Signals[0].Severity)
	}
	if !det.Actions.ForceDifficulty || det.Actions.NewDifficulty != plan.DifficultyEasy {
		t.Fatalf("critical must force difficulty to easy, got %+v", det.Actions)
	}
	if det.Actions.ReenableAt != nil {
		t.Fatal("critical disables indefinitely")
	}

	if det := DetectUnrealisticTasks(10, detectNow); det.Signals[0].Severity != SeverityEmergency {
		t.Fatalf("10 flagged should be emergency, got %s", det.Signals[0].Severity)
	}
}

func TestConsistencyDropThresholds(t *testing.T) {
	if det := DetectConsistencyDrop(80, 55, detectNow); det.Harm {
		t.Fatal("25-point drop is below the threshold")
	}

	// 80% -> 45% is a 35-point drop: harm, but under the critical line.
	det := DetectConsistencyDrop(80, 45, detectNow)
	if !det.Harm || det.Signals[0].Severity != SeverityWarning {
		t.Fatalf("35-point drop should be a warning, got %+v", det)
	}

	if det := DetectConsistencyDrop(80, 38, detectNow); det.Signals[0].Severity != SeverityCritical {
		t.Fatalf("42-point drop should be critical, got %s", det.Signals[0].Severity)
	}
	if det := DetectConsistencyDrop(90, 30, detectNow); det.Signals[0].Severity != SeverityEmergency {
		t.Fatalf("60-point drop should be emergency, got %s", det.Signals[0].Severity)
	}
}

func TestDistressKeywords(t *testing.T) {
	if det := DetectDistress("making steady progress this week", detectNow); det.Harm {
		t.Fatal("neutral message should not fire")
	}

	det := DetectDistress("I feel a bit Overwhelmed lately", detectNow)
	if !det.Harm || det.Signals[0].Severity != SeverityWarning {
		t.Fatalf("single keyword should be a warning, got %+v", det)
	}

	det = DetectDistress("honestly I'm quitting", detectNow)
	if det.Signals[0].Severity != SeverityCritical {
		t.Fatalf("high-severity keyword should be critical, got %s", det.Signals[0].Severity)
	}

	det = DetectDistress("overwhelmed, exhausted and stressed all the time", detectNow)
	if det.Signals[0].Severity != SeverityCritical {
		t.Fatalf("three keyword matches should be critical, got %s", det.Signals[0].Severity)
	}
}

func TestMergeFollowsMostSevere(t *testing.T) {
	warning := DetectConsistencyDrop(80, 45, detectNow)
	critical := DetectUnrealisticTasks(7, detectNow)

	merged := Merge(detectNow, warning, critical, Detection{})
	if !merged.Harm || len(merged.Signals) != 2 {
		t.Fatalf("expected merged detection with 2 signals, got %+v", merged)
	}
	if !merged.Actions.ForceDifficulty {
		t.Fatal("merged actions must follow the most severe signal")
	}

	if empty := Merge(detectNow); empty.Harm {
		t.Fatal("merging nothing should not detect harm")
	}
}

func TestMostSevereTieKeepsFirst(t *testing.T) {
	a := Signal{Type: SignalUserDistress, Severity: SeverityWarning}
	b := Signal{Type: SignalConsistencyDrop, Severity: SeverityWarning}
	top, ok := MostSevere([]Signal{a, b})
	if !ok || top.Type != SignalUserDistress {
		t.Fatalf("tie should keep the earlier signal, got %+v", top)
	}
	if _, ok := MostSevere(nil); ok {
		t.Fatal("empty slice has no most severe signal")
	}
}

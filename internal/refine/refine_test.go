package refine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
	"github.com/danielpatrickdp/adaptive-coach/internal/rules"
)

func baseIntent() rules.Intent {
	return rules.Intent{
		Type:              rules.IntentDifficultyChange,
		GoalID:            "goal-1",
		Reason:            "completion rate below threshold",
		CurrentDifficulty: plan.DifficultyMedium,
		Changes: plan.NewState{
			TargetDifficulty: plan.DifficultyEasy,
		},
	}
}

func TestStaticRefinerFillsDescription(t *testing.T) {
	ns, err := StaticRefiner{}.Refine(context.Background(), baseIntent())
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if ns.TargetDifficulty != plan.DifficultyEasy {
		t.Fatalf("expected easy, got %s", ns.TargetDifficulty)
	}
	if ns.Description != "completion rate below threshold" {
		t.Fatalf("description should fall back to reason, got %q", ns.Description)
	}
}

func TestValidateRejectsTwoStepChange(t *testing.T) {
	intent := baseIntent()
	_, err := Validate(plan.NewState{TargetDifficulty: plan.DifficultyExtreme}, intent)
	if err == nil {
		t.Fatal("medium → extreme should be rejected")
	}
}

func TestValidateRejectsUnknownDifficulty(t *testing.T) {
	intent := baseIntent()
	_, err := Validate(plan.NewState{TargetDifficulty: "impossible"}, intent)
	if err == nil {
		t.Fatal("unknown difficulty should be rejected")
	}
}

func TestValidateRejectsNegativeTaskFields(t *testing.T) {
	intent := baseIntent()
	_, err := Validate(plan.NewState{
		TaskChanges: []plan.TaskChange{{TaskID: "t1", FrequencyPerWeek: -2}},
	}, intent)
	if err == nil {
		t.Fatal("negative frequency should be rejected")
	}
}

func chatReply(t *testing.T, ns plan.NewState) string {
	t.Helper()
	content, err := json.Marshal(ns)
	if err != nil {
		t.Fatalf("marshal new state: %v", err)
	}
	reply, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": string(content)}},
		},
	})
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return string(reply)
}

func TestHTTPRefinerParsesAndValidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Error("missing bearer token")
		}
		w.Write([]byte(chatReply(t, plan.NewState{
			Description:      "ease the plan for two weeks",
			TargetDifficulty: plan.DifficultyEasy,
			BufferDays:       2,
		})))
	}))
	defer srv.Close()

	r := NewHTTPRefiner(ClientConfig{Endpoint: srv.URL, APIKey: "test-key"})
	ns, err := r.Refine(context.Background(), baseIntent())
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if ns.TargetDifficulty != plan.DifficultyEasy || ns.BufferDays != 2 {
		t.Fatalf("unexpected new state: %+v", ns)
	}
}

func TestHTTPRefinerRejectsOverreach(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply(t, plan.NewState{TargetDifficulty: plan.DifficultyExtreme})))
	}))
	defer srv.Close()

	r := NewHTTPRefiner(ClientConfig{Endpoint: srv.URL})
	if _, err := r.Refine(context.Background(), baseIntent()); err == nil {
		t.Fatal("model response violating the one-step constraint must fail")
	}
}

func TestHTTPRefinerSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewHTTPRefiner(ClientConfig{Endpoint: srv.URL})
	if _, err := r.Refine(context.Background(), baseIntent()); err == nil {
		t.Fatal("non-200 response must surface as error")
	}
}

package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/adaptive-coach/internal/store"
)

func tempSink(t *testing.T) *Sink {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewSink(s.DB())
}

func TestWriteAndList(t *testing.T) {
	sink := tempSink(t)

	err := sink.Write(context.Background(), Record{
		Category:   CategoryLifecycle,
		EventType:  "adaptation_accepted",
		Actor:      "user-1",
		EntityKind: "adaptation",
		EntityID:   "ad-1",
		PayloadJSON: Payload(map[string]any{
			"tasks_modified": 3,
		}),
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	recs, err := sink.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.EventID == "" {
		t.Fatal("event id should be generated")
	}
	if rec.Category != CategoryLifecycle || rec.EventType != "adaptation_accepted" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("created_at should be filled")
	}
}

func TestListNewestFirst(t *testing.T) {
	sink := tempSink(t)
	for _, et := range []string{"first", "second", "third"} {
		if err := sink.Write(context.Background(), Record{
			Category: CategoryHarm, EventType: et, Actor: "system",
			EntityKind: "incident", EntityID: "inc-1",
		}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	recs, err := sink.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(recs))
	}
	if recs[0].EventType != "third" {
		t.Fatalf("expected newest first, got %s", recs[0].EventType)
	}
}

func TestPayloadSwallowsMarshalFailure(t *testing.T) {
	if got := Payload(func() {}); got != "" {
		t.Fatalf("unmarshalable payload should yield empty string, got %q", got)
	}
}

package provenance

import (
	"path/filepath"
	"testing"

	"github.com/draftmark/overlay-engine/internal/persist"
)

func TestLogAndList(t *testing.T) {
	dir := t.TempDir()
	store, err := persist.NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	db := store.DB()

	entries := []Entry{
		{DocumentID: "doc-1", OpID: "op-a", BatchID: "b1", Action: ActionResolve},
		{DocumentID: "doc-1", OpID: "op-a", Action: ActionAccept, Reason: "user accepted"},
		{DocumentID: "doc-2", OpID: "op-b", Action: ActionReject},
	}
	for _, e := range entries {
		if err := LogDecision(db, e); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}

	got, err := List(db, "doc-1", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for doc-1, got %d", len(got))
	}
	// Newest first.
	if got[0].Action != ActionAccept || got[1].Action != ActionResolve {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Reason != "user accepted" {
		t.Fatalf("reason lost: %+v", got[0])
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
}

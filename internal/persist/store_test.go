package persist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/draftmark/overlay-engine/internal/locator"
	"github.com/draftmark/overlay-engine/internal/pending"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleOp(index, start, end int) pending.Operation {
	r := pending.Span{Start: start, End: end}
	return pending.Operation{
		ID:           pending.OpID("b1", index, r),
		BatchID:      "b1",
		Kind:         pending.KindReplace,
		Range:        r,
		OriginalText: "before",
		ProposedText: "after",
		Confidence:   0.9,
		Strategy:     locator.StrategyWhitespace,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := tempStore(t)
	ops := []pending.Operation{sampleOp(0, 0, 6), sampleOp(1, 10, 16)}

	if err := s.SaveOps("doc-1", ops); err != nil {
		t.Fatalf("SaveOps: %v", err)
	}

	loaded, dropped, err := s.LoadOps("doc-1", 100)
	if err != nil {
		t.Fatalf("LoadOps: %v", err)
	}
	if dropped != 0 {
		t.Fatalf("expected no drops, got %d", dropped)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 ops, got %d", len(loaded))
	}
	for i := range ops {
		got, want := loaded[i], ops[i]
		if got.ID != want.ID || got.Range != want.Range || got.Kind != want.Kind {
			t.Fatalf("op %d mismatch: %+v vs %+v", i, got, want)
		}
		if got.OriginalText != want.OriginalText || got.ProposedText != want.ProposedText {
			t.Fatalf("op %d text mismatch", i)
		}
		if got.Strategy != want.Strategy || got.Confidence != want.Confidence {
			t.Fatalf("op %d resolution mismatch", i)
		}
	}
}

func TestSaveReplacesPrevious(t *testing.T) {
	s := tempStore(t)
	if err := s.SaveOps("doc-1", []pending.Operation{sampleOp(0, 0, 6)}); err != nil {
		t.Fatalf("SaveOps: %v", err)
	}
	if err := s.SaveOps("doc-1", []pending.Operation{sampleOp(1, 10, 16)}); err != nil {
		t.Fatalf("SaveOps: %v", err)
	}

	loaded, _, err := s.LoadOps("doc-1", 100)
	if err != nil {
		t.Fatalf("LoadOps: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Range.Start != 10 {
		t.Fatalf("expected only the second snapshot, got %+v", loaded)
	}
}

func TestLoadDropsOutOfRange(t *testing.T) {
	s := tempStore(t)
	ops := []pending.Operation{sampleOp(0, 0, 6), sampleOp(1, 90, 120)}
	if err := s.SaveOps("doc-1", ops); err != nil {
		t.Fatalf("SaveOps: %v", err)
	}

	// The document shrank out-of-band to 50 bytes.
	loaded, dropped, err := s.LoadOps("doc-1", 50)
	if err != nil {
		t.Fatalf("LoadOps: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
	if len(loaded) != 1 || loaded[0].Range.End != 6 {
		t.Fatalf("expected only the in-range op, got %+v", loaded)
	}
}

func TestDocumentsAreIndependent(t *testing.T) {
	s := tempStore(t)
	if err := s.SaveOps("doc-1", []pending.Operation{sampleOp(0, 0, 6)}); err != nil {
		t.Fatalf("SaveOps: %v", err)
	}
	if err := s.SaveOps("doc-2", []pending.Operation{sampleOp(1, 10, 16)}); err != nil {
		t.Fatalf("SaveOps: %v", err)
	}

	one, _, _ := s.LoadOps("doc-1", 100)
	two, _, _ := s.LoadOps("doc-2", 100)
	if len(one) != 1 || len(two) != 1 {
		t.Fatalf("cross-document contamination: %d/%d", len(one), len(two))
	}
	if one[0].Range == two[0].Range {
		t.Fatal("loaded the same op for both documents")
	}
}

func TestQueueWritesAsynchronously(t *testing.T) {
	s := tempStore(t)
	s.Queue("doc-1", []pending.Operation{sampleOp(0, 0, 6)})

	// Last write wins: a second snapshot before the writer runs replaces
	// the first.
	s.Queue("doc-1", []pending.Operation{sampleOp(1, 10, 16)})

	deadline := time.Now().Add(2 * time.Second)
	for {
		loaded, _, err := s.LoadOps("doc-1", 100)
		if err != nil {
			t.Fatalf("LoadOps: %v", err)
		}
		if len(loaded) == 1 && loaded[0].Range.Start == 10 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("queued snapshot never reached disk: %+v", loaded)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

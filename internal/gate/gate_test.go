package gate

import (
	"testing"

	"github.com/draftmark/overlay-engine/internal/locator"
	"github.com/draftmark/overlay-engine/internal/pending"
)

func resolvedOp(index int, confidence float64) pending.Operation {
	r := pending.Span{Start: index * 10, End: index*10 + 5}
	strat := locator.StrategyExact
	if confidence == 0 {
		strat = locator.StrategyNone
		r = pending.Span{}
	}
	return pending.Operation{
		ID:         pending.OpID("b1", index, r),
		BatchID:    "b1",
		Kind:       pending.KindReplace,
		Range:      r,
		Confidence: confidence,
		Strategy:   strat,
	}
}

func TestAdmitAll(t *testing.T) {
	ops := []pending.Operation{resolvedOp(0, 1.0), resolvedOp(1, 0.8)}
	res := Admit(0, ops, DefaultConfig())

	if len(res.Admitted) != 2 || res.Dropped != 0 {
		t.Fatalf("expected all admitted, got %d admitted %d dropped", len(res.Admitted), res.Dropped)
	}
	if res.LowConfidence != 0 {
		t.Fatalf("expected no low-confidence flags, got %d", res.LowConfidence)
	}
}

func TestAdmitFlagsLowConfidence(t *testing.T) {
	ops := []pending.Operation{resolvedOp(0, 1.0), resolvedOp(1, 0.3)}
	res := Admit(0, ops, DefaultConfig())

	if res.LowConfidence != 1 {
		t.Fatalf("expected 1 low-confidence, got %d", res.LowConfidence)
	}
	if !res.Admitted[1].LowConfidence {
		t.Fatal("second op should carry the low-confidence flag")
	}
	if res.Admitted[0].LowConfidence {
		t.Fatal("first op should not be flagged")
	}
}

func TestAdmitKeepsUnresolved(t *testing.T) {
	// A zero-confidence operation is admitted flagged, never dropped.
	ops := []pending.Operation{resolvedOp(0, 0)}
	res := Admit(0, ops, DefaultConfig())

	if len(res.Admitted) != 1 {
		t.Fatal("unresolved op must still be admitted")
	}
	if res.Unresolved != 1 || !res.Admitted[0].LowConfidence {
		t.Fatalf("expected unresolved flagged op, got %+v", res)
	}
}

func TestAdmitCap(t *testing.T) {
	cfg := Config{MaxOperations: 3, MinConfidence: 0.5}
	ops := make([]pending.Operation, 5)
	for i := range ops {
		ops[i] = resolvedOp(i, 1.0)
	}
	res := Admit(0, ops, cfg)

	if len(res.Admitted) != 3 {
		t.Fatalf("expected 3 admitted, got %d", len(res.Admitted))
	}
	if res.Dropped != 2 {
		t.Fatalf("expected 2 dropped, got %d", res.Dropped)
	}
	// Earliest operations keep their slots.
	if res.Admitted[0].ID != ops[0].ID || res.Admitted[2].ID != ops[2].ID {
		t.Fatalf("cap must preserve submission order: %+v", res.Admitted)
	}
}

func TestAdmitCapCountsExisting(t *testing.T) {
	cfg := Config{MaxOperations: 3, MinConfidence: 0.5}
	ops := []pending.Operation{resolvedOp(0, 1.0), resolvedOp(1, 1.0)}
	res := Admit(2, ops, cfg)

	if len(res.Admitted) != 1 || res.Dropped != 1 {
		t.Fatalf("expected 1 admitted 1 dropped, got %d/%d", len(res.Admitted), res.Dropped)
	}
}

func TestAdmitUnresolvedOccupiesSlot(t *testing.T) {
	cfg := Config{MaxOperations: 1, MinConfidence: 0.5}
	ops := []pending.Operation{resolvedOp(0, 0), resolvedOp(1, 1.0)}
	res := Admit(0, ops, cfg)

	if len(res.Admitted) != 1 {
		t.Fatalf("expected 1 admitted, got %d", len(res.Admitted))
	}
	if res.Admitted[0].Confidence != 0 {
		t.Fatal("the unresolved op holds the slot; the resolved one is dropped")
	}
	if res.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", res.Dropped)
	}
}

package rebase

import (
	"strings"
	"testing"
	"time"

	"github.com/draftmark/overlay-engine/internal/pending"
)

func opAt(start, end int, original string) pending.Operation {
	return pending.Operation{
		ID:           "op-1",
		BatchID:      "b1",
		Kind:         pending.KindReplace,
		Range:        pending.Span{Start: start, End: end},
		OriginalText: original,
		ProposedText: "replacement",
	}
}

func TestShiftAfterInsertionBefore(t *testing.T) {
	// Insert 5 characters at offset 0: [10,20) becomes [15,25).
	doc := strings.Repeat("x", 30)
	op := opAt(10, 20, doc[10:20])
	mut := Mutation{FromOld: 0, ToOld: 0, FromNew: 0, ToNew: 5}

	out := Rebase(op, mut, strings.Repeat("x", 35), 30, DefaultConfig(), false)
	if out.Action != ActionShift {
		t.Fatalf("expected shift, got %s (%s)", out.Action, out.Reason)
	}
	if out.Range.Start != 15 || out.Range.End != 25 {
		t.Fatalf("expected [15,25), got [%d,%d)", out.Range.Start, out.Range.End)
	}
}

func TestShiftAfterDeletionBefore(t *testing.T) {
	// Delete [0,5): [10,20) becomes [5,15).
	op := opAt(10, 20, "")
	mut := Mutation{FromOld: 0, ToOld: 5, FromNew: 0, ToNew: 0}

	out := Rebase(op, mut, strings.Repeat("x", 25), 30, DefaultConfig(), false)
	if out.Action != ActionShift {
		t.Fatalf("expected shift, got %s", out.Action)
	}
	if out.Range.Start != 5 || out.Range.End != 15 {
		t.Fatalf("expected [5,15), got [%d,%d)", out.Range.Start, out.Range.End)
	}
}

func TestKeepWhenEditStrictlyAfter(t *testing.T) {
	op := opAt(10, 20, "")
	mut := Mutation{FromOld: 25, ToOld: 28, FromNew: 25, ToNew: 30}

	out := Rebase(op, mut, strings.Repeat("x", 32), 30, DefaultConfig(), false)
	if out.Action != ActionKeep {
		t.Fatalf("expected keep, got %s", out.Action)
	}
	if out.Range.Start != 10 || out.Range.End != 20 {
		t.Fatalf("range moved: [%d,%d)", out.Range.Start, out.Range.End)
	}
}

func TestOverlapInvalidates(t *testing.T) {
	op := opAt(10, 20, "0123456789")
	mut := Mutation{FromOld: 15, ToOld: 16, FromNew: 15, ToNew: 17}

	out := Rebase(op, mut, strings.Repeat("x", 31), 30, DefaultConfig(), false)
	if out.Action != ActionRemove {
		t.Fatalf("expected remove on overlap, got %s", out.Action)
	}
}

func TestOverlapShieldedKeepsIntactContent(t *testing.T) {
	// Shielded mutation overlapping a range whose bytes it did not in
	// fact change: the sibling survives.
	newText := "0123456789" + "0123456789" + "0123456789!"
	op := opAt(10, 20, "0123456789")
	mut := Mutation{FromOld: 15, ToOld: 16, FromNew: 15, ToNew: 16}

	out := Rebase(op, mut, newText, 30, DefaultConfig(), true)
	if out.Action != ActionKeep {
		t.Fatalf("expected shielded keep, got %s (%s)", out.Action, out.Reason)
	}
}

func TestOverlapShieldedRemovesChangedContent(t *testing.T) {
	// An accepted edit that rewrote the bytes inside a sibling's range
	// still invalidates it, shield or not.
	op := opAt(10, 20, "0123456789")
	mut := Mutation{FromOld: 15, ToOld: 16, FromNew: 15, ToNew: 17}

	out := Rebase(op, mut, strings.Repeat("x", 31), 30, DefaultConfig(), true)
	if out.Action != ActionRemove {
		t.Fatalf("expected remove, got %s", out.Action)
	}
}

func TestOverlapShieldedKeepsInsertionPoint(t *testing.T) {
	op := pending.Operation{Kind: pending.KindInsertAfter, Range: pending.Span{Start: 15, End: 15}}
	mut := Mutation{FromOld: 10, ToOld: 20, FromNew: 10, ToNew: 22}

	out := Rebase(op, mut, strings.Repeat("x", 32), 30, DefaultConfig(), true)
	if out.Action != ActionKeep {
		t.Fatalf("expected keep for insertion point, got %s", out.Action)
	}
}

func TestResyncRewriteKeepsIntactRange(t *testing.T) {
	// Whole-document swap that leaves the content at [6,11) identical.
	oldDoc := "hello world goodbye"
	newDoc := "hello world goodbye" // rewrite delivered the same bytes
	op := opAt(6, 11, "world")
	mut := Mutation{FromOld: 0, ToOld: len(oldDoc), FromNew: 0, ToNew: len(newDoc)}

	out := Rebase(op, mut, newDoc, len(oldDoc), DefaultConfig(), false)
	if out.Action != ActionKeep {
		t.Fatalf("expected keep on spurious resync overlap, got %s (%s)", out.Action, out.Reason)
	}
}

func TestResyncRewriteRemovesChangedRange(t *testing.T) {
	oldDoc := "hello world goodbye"
	newDoc := "hello earth goodbye"
	op := opAt(6, 11, "world")
	mut := Mutation{FromOld: 0, ToOld: len(oldDoc), FromNew: 0, ToNew: len(newDoc)}

	out := Rebase(op, mut, newDoc, len(oldDoc), DefaultConfig(), false)
	if out.Action != ActionRemove {
		t.Fatalf("expected remove when resync changed the range, got %s", out.Action)
	}
}

func TestSmallOverlapIgnoresOriginalText(t *testing.T) {
	// A small local edit inside the range invalidates even if the bytes at
	// the stored range happen to still match.
	doc := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	op := opAt(10, 20, doc[10:20])
	mut := Mutation{FromOld: 12, ToOld: 13, FromNew: 12, ToNew: 13}

	out := Rebase(op, mut, doc, len(doc), DefaultConfig(), false)
	if out.Action != ActionRemove {
		t.Fatalf("expected remove for small in-range edit, got %s", out.Action)
	}
}

func TestClampRemovesInvertedRange(t *testing.T) {
	op := opAt(10, 20, "")
	// Deletion of nearly everything pushes the shifted range below zero.
	mut := Mutation{FromOld: 0, ToOld: 2, FromNew: 0, ToNew: 0}

	out := Rebase(op, mut, "abc", 30, DefaultConfig(), false)
	if out.Action != ActionShift && out.Action != ActionRemove {
		t.Fatalf("unexpected action %s", out.Action)
	}
	if out.Action == ActionShift {
		if out.Range.End > 3 || out.Range.Start > out.Range.End {
			t.Fatalf("range not clamped: [%d,%d)", out.Range.Start, out.Range.End)
		}
	}
}

func TestInsertionPointAtMutationBoundary(t *testing.T) {
	// An insertion-point operation exactly at the end of the replaced span
	// shifts with the edit rather than invalidating.
	op := pending.Operation{
		ID:    "ins",
		Kind:  pending.KindInsertAfter,
		Range: pending.Span{Start: 10, End: 10},
	}
	mut := Mutation{FromOld: 5, ToOld: 10, FromNew: 5, ToNew: 12}

	out := Rebase(op, mut, strings.Repeat("x", 32), 30, DefaultConfig(), false)
	if out.Action != ActionShift {
		t.Fatalf("expected shift, got %s (%s)", out.Action, out.Reason)
	}
	if out.Range.Start != 12 || out.Range.End != 12 {
		t.Fatalf("expected point 12, got [%d,%d)", out.Range.Start, out.Range.End)
	}
}

func TestStale(t *testing.T) {
	doc := "hello world"
	if Stale(doc, opAt(0, 5, "hello")) {
		t.Fatal("matching text reported stale")
	}
	if !Stale(doc, opAt(0, 5, "howdy")) {
		t.Fatal("changed text not reported stale")
	}
	ins := pending.Operation{Range: pending.Span{Start: 3, End: 3}}
	if Stale(doc, ins) {
		t.Fatal("insertion point reported stale")
	}
}

func TestShieldCountAndDecay(t *testing.T) {
	clock := time.Now()
	s := NewShield(2, 100*time.Millisecond)
	s.now = func() time.Time { return clock }

	if !s.Consume() {
		t.Fatal("first consume should be shielded")
	}
	if !s.Consume() {
		t.Fatal("second consume should be shielded")
	}
	if s.Consume() {
		t.Fatal("count exhausted, must not shield")
	}

	s.Extend(1, 100*time.Millisecond)
	clock = clock.Add(200 * time.Millisecond)
	if s.Active() {
		t.Fatal("shield must decay after its deadline")
	}
	if s.Consume() {
		t.Fatal("expired shield must not consume")
	}
}

func TestNilShieldInactive(t *testing.T) {
	var s *Shield
	if s.Active() {
		t.Fatal("nil shield must be inactive")
	}
}

package resync

import (
	"testing"
)

func TestChangesSingleInsertion(t *testing.T) {
	oldText := "hello world"
	newText := "hello brave world"

	muts := Changes(oldText, newText)
	if len(muts) != 1 {
		t.Fatalf("expected 1 mutation, got %d: %+v", len(muts), muts)
	}
	m := muts[0]
	if m.OldSpan() != 0 {
		t.Fatalf("insertion must replace nothing, got old span %d", m.OldSpan())
	}
	if m.LengthDelta() != len(newText)-len(oldText) {
		t.Fatalf("expected delta %d, got %d", len(newText)-len(oldText), m.LengthDelta())
	}
	if got := newText[m.FromNew:m.ToNew]; got != "brave " && got != " brave" {
		t.Fatalf("unexpected inserted text %q", got)
	}
}

func TestChangesSingleDeletion(t *testing.T) {
	oldText := "one two three"
	newText := "one three"

	muts := Changes(oldText, newText)
	if len(muts) != 1 {
		t.Fatalf("expected 1 mutation, got %d: %+v", len(muts), muts)
	}
	m := muts[0]
	if m.LengthDelta() != -4 {
		t.Fatalf("expected delta -4, got %d", m.LengthDelta())
	}
	if m.ToNew != m.FromNew {
		t.Fatalf("deletion must insert nothing, got [%d,%d)", m.FromNew, m.ToNew)
	}
}

func TestChangesReplacementCoalesces(t *testing.T) {
	oldText := "Hello world. Goodbye world."
	newText := "Hello world. Farewell, world."

	muts := Changes(oldText, newText)
	if len(muts) != 1 {
		t.Fatalf("expected replacement to coalesce into one region, got %d: %+v", len(muts), muts)
	}
	m := muts[0]
	if m.FromOld < 13 || m.ToOld > 27 {
		t.Fatalf("replaced region [%d,%d) outside expected bounds", m.FromOld, m.ToOld)
	}
}

func TestChangesIdentical(t *testing.T) {
	if muts := Changes("same", "same"); muts != nil {
		t.Fatalf("expected no mutations, got %+v", muts)
	}
}

func TestChangesMultipleRegions(t *testing.T) {
	oldText := "aaa MIDDLE bbb KEEP ccc"
	newText := "aaa CHANGED bbb KEEP ddd"

	muts := Changes(oldText, newText)
	if len(muts) < 2 {
		t.Fatalf("expected at least 2 regions, got %d: %+v", len(muts), muts)
	}
	for i := 1; i < len(muts); i++ {
		if muts[i].FromOld < muts[i-1].ToOld {
			t.Fatalf("regions out of order: %+v", muts)
		}
	}
}

func TestMapPositionThroughInsertion(t *testing.T) {
	diffs := Diff("hello world", "hello brave world")
	// "world" starts at 6 in the old text and 12 in the new.
	if got := MapPosition(6, diffs); got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
	if got := MapPosition(0, diffs); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMapPositionInsideDeletion(t *testing.T) {
	diffs := Diff("abcXYZdef", "abcdef")
	// A position inside the deleted "XYZ" maps to the deletion start.
	if got := MapPosition(4, diffs); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMapPositionPastEnd(t *testing.T) {
	oldText := "abc"
	newText := "abcdef"
	diffs := Diff(oldText, newText)
	if got := MapPosition(len(oldText), diffs); got != len(newText) {
		t.Fatalf("expected %d, got %d", len(newText), got)
	}
}

// Package rebase adjusts pending operation ranges in response to document
// mutations. Rebase itself is a pure function over one operation and one
// mutation; the engine applies its outcomes to the store, so the decision
// logic stays independently testable.
package rebase

import (
	"fmt"

	"github.com/draftmark/overlay-engine/internal/pending"
)

// #region mutation
// Mutation describes one contiguous edit region: [FromOld, ToOld) was
// replaced in the previous text by [FromNew, ToNew) in the new text.
// Offsets are bytes relative to the document at the time of the previous
// notification.
type Mutation struct {
	FromOld int `json:"from_old"`
	ToOld   int `json:"to_old"`
	FromNew int `json:"from_new"`
	ToNew   int `json:"to_new"`
}

// LengthDelta is the net size change the mutation applied.
func (m Mutation) LengthDelta() int {
	return (m.ToNew - m.FromNew) - (m.ToOld - m.FromOld)
}

// OldSpan is the number of bytes the mutation replaced.
func (m Mutation) OldSpan() int { return m.ToOld - m.FromOld }
// #endregion mutation

// #region config
// Config holds rebase tunables.
type Config struct {
	// ResyncMinSpan is the smallest replaced span treated as a possible
	// full-document resynchronization. A mutation also qualifies when its
	// replaced span covers at least half the previous document.
	ResyncMinSpan int
}

// DefaultConfig returns the rebase defaults.
func DefaultConfig() Config {
	return Config{ResyncMinSpan: 1000}
}
// #endregion config

// #region outcome
// Action is what the rebase pass decided for one operation.
type Action string

const (
	ActionKeep   Action = "keep"
	ActionShift  Action = "shift"
	ActionRemove Action = "remove"
)

// Outcome bundles the decision, the new range for shifts, and a reason
// string for removals.
type Outcome struct {
	Action Action
	Range  pending.Span
	Reason string
}
// #endregion outcome

// #region rebase
// Rebase decides how one operation's range reacts to a mutation. newText
// is the document after the mutation, prevDocLen its length before.
// shielded marks the mutation as self-inflicted by an accept, which skips
// overlap invalidation while still applying positional shifts.
func Rebase(op pending.Operation, mut Mutation, newText string, prevDocLen int, cfg Config, shielded bool) Outcome {
	r := op.Range
	delta := mut.LengthDelta()

	switch {
	case r.Start >= mut.ToOld:
		// Edit strictly before the operation: shift both ends.
		return clamp(op, pending.Span{Start: r.Start + delta, End: r.End + delta}, len(newText))

	case r.End <= mut.FromOld:
		// Edit strictly after the operation: untouched.
		return clamp(op, r, len(newText))

	default:
		// The mutation overlaps the operation's range.
		if shielded {
			// Self-inflicted mutation. A sibling is preserved unless the
			// accepted edit actually changed the bytes at its range;
			// insertion points carry nothing to verify and are kept.
			if r.Start == r.End && op.OriginalText == "" {
				return clamp(op, r, len(newText))
			}
			if originalStillAt(newText, op) {
				return clamp(op, r, len(newText))
			}
			return Outcome{Action: ActionRemove, Reason: fmt.Sprintf(
				"accepted edit [%d,%d) changed content at [%d,%d)",
				mut.FromOld, mut.ToOld, r.Start, r.End)}
		}
		if isResync(mut, prevDocLen, cfg) && originalStillAt(newText, op) {
			// Large rewrite that left this span's content intact: the
			// overlap is spurious.
			return clamp(op, r, len(newText))
		}
		return Outcome{Action: ActionRemove, Reason: fmt.Sprintf(
			"edit [%d,%d) overlaps operation range [%d,%d)",
			mut.FromOld, mut.ToOld, r.Start, r.End)}
	}
}

// isResync reports whether the mutation looks like a whole-document
// resynchronization rather than a local user edit.
func isResync(mut Mutation, prevDocLen int, cfg Config) bool {
	span := mut.OldSpan()
	if span >= cfg.ResyncMinSpan {
		return true
	}
	return prevDocLen > 0 && span*2 >= prevDocLen
}

// originalStillAt reports whether the text now present at the operation's
// stored range still equals the text recorded at creation time.
func originalStillAt(newText string, op pending.Operation) bool {
	r := op.Range
	if r.Start < 0 || r.End > len(newText) || r.Start > r.End {
		return false
	}
	return newText[r.Start:r.End] == op.OriginalText
}

// clamp bounds a span into the new document and converts an inverted
// result into a removal.
func clamp(op pending.Operation, r pending.Span, newDocLen int) Outcome {
	clamped := r
	if clamped.Start < 0 {
		clamped.Start = 0
	}
	if clamped.Start > newDocLen {
		clamped.Start = newDocLen
	}
	if clamped.End > newDocLen {
		clamped.End = newDocLen
	}
	if clamped.End < clamped.Start {
		return Outcome{Action: ActionRemove, Reason: fmt.Sprintf(
			"range [%d,%d) invalid after clamping to document length %d",
			r.Start, r.End, newDocLen)}
	}
	if clamped == op.Range {
		return Outcome{Action: ActionKeep, Range: clamped}
	}
	return Outcome{Action: ActionShift, Range: clamped}
}
// #endregion rebase

// #region staleness
// Stale reports whether an operation's recorded original text no longer
// matches the document at its current range. Used opportunistically after
// shifts to detect anchors whose meaning drifted.
func Stale(docText string, op pending.Operation) bool {
	if op.OriginalText == "" && op.Range.Start == op.Range.End {
		return false // pure insertion point, nothing to compare
	}
	r := op.Range
	if r.Start < 0 || r.End > len(docText) || r.Start > r.End {
		return true
	}
	return docText[r.Start:r.End] != op.OriginalText
}
// #endregion staleness

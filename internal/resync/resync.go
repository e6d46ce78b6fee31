// Package resync derives precise mutation regions from whole-document
// text swaps. Some editor surfaces only report "the buffer changed" with
// old and new contents; diffing the two recovers the contiguous edit
// regions the rebaser needs, so those integrations get the same rebase
// fidelity as ones that report offsets directly.
package resync

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/draftmark/overlay-engine/internal/rebase"
)

// #region diff
// Diff computes a semantic-cleaned diff between two document versions.
func Diff(oldText, newText string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	return dmp.DiffCleanupSemantic(diffs)
}
// #endregion diff

// #region changes
// Changes turns a whole-document swap into contiguous mutation regions in
// arrival order. Adjacent insert and delete runs collapse into a single
// region so one replacement reports as one mutation.
func Changes(oldText, newText string) []rebase.Mutation {
	if oldText == newText {
		return nil
	}
	diffs := Diff(oldText, newText)

	var muts []rebase.Mutation
	oldPos, newPos := 0, 0
	for i := 0; i < len(diffs); {
		if diffs[i].Type == diffmatchpatch.DiffEqual {
			oldPos += len(diffs[i].Text)
			newPos += len(diffs[i].Text)
			i++
			continue
		}
		fromOld, fromNew := oldPos, newPos
		for i < len(diffs) && diffs[i].Type != diffmatchpatch.DiffEqual {
			switch diffs[i].Type {
			case diffmatchpatch.DiffDelete:
				oldPos += len(diffs[i].Text)
			case diffmatchpatch.DiffInsert:
				newPos += len(diffs[i].Text)
			}
			i++
		}
		muts = append(muts, rebase.Mutation{
			FromOld: fromOld, ToOld: oldPos,
			FromNew: fromNew, ToNew: newPos,
		})
	}
	return muts
}
// #endregion changes

// #region map-position
// MapPosition translates a byte offset in the old text to its counterpart
// in the new text. Positions inside a deleted run map to the run's start;
// positions in equal runs shift by the net delta accumulated before them.
func MapPosition(oldPos int, diffs []diffmatchpatch.Diff) int {
	currentOld := 0
	currentNew := 0

	for _, d := range diffs {
		n := len(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			if oldPos >= currentOld && oldPos < currentOld+n {
				return currentNew
			}
			currentOld += n
		case diffmatchpatch.DiffInsert:
			currentNew += n
		case diffmatchpatch.DiffEqual:
			if oldPos >= currentOld && oldPos < currentOld+n {
				return currentNew + (oldPos - currentOld)
			}
			currentOld += n
			currentNew += n
		}
	}
	return currentNew
}
// #endregion map-position

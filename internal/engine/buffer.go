package engine

import (
	"fmt"

	"github.com/draftmark/overlay-engine/internal/pending"
	"github.com/draftmark/overlay-engine/internal/rebase"
	"github.com/draftmark/overlay-engine/internal/resync"
)

// #region buffer
// Buffer is an in-memory DocumentMutator that delivers change
// notifications to its engine synchronously, the way a cooperative editor
// surface would. It backs the replay harness, the REPL, and tests; real
// integrations implement DocumentMutator over their own editing surface.
type Buffer struct {
	text   string
	engine *Engine
}

// NewBuffer creates a buffer with initial text.
func NewBuffer(text string) *Buffer {
	return &Buffer{text: text}
}

// Attach wires the buffer's change notifications to an engine.
func (b *Buffer) Attach(e *Engine) { b.engine = e }

// Text returns the current buffer contents.
func (b *Buffer) Text() string { return b.text }

// Replace substitutes a span and notifies the attached engine.
func (b *Buffer) Replace(span pending.Span, text string) error {
	if !span.Valid(len(b.text)) {
		return fmt.Errorf("replace span [%d,%d) out of bounds for length %d", span.Start, span.End, len(b.text))
	}
	b.text = b.text[:span.Start] + text + b.text[span.End:]
	if b.engine != nil {
		b.engine.NotifyMutation(rebase.Mutation{
			FromOld: span.Start, ToOld: span.End,
			FromNew: span.Start, ToNew: span.Start + len(text),
		})
	}
	return nil
}

// SetText swaps the whole buffer contents, deriving the contiguous change
// regions by diff and notifying the engine once per region. Regions are
// applied in order, so each notification's old offsets are relative to
// the document as of the previous one.
func (b *Buffer) SetText(text string) {
	muts := resync.Changes(b.text, text)
	for _, m := range muts {
		// Earlier regions have already been applied, so this region's
		// position in the intermediate document is its new-text offset.
		from := m.FromNew
		adjusted := rebase.Mutation{
			FromOld: from, ToOld: from + m.OldSpan(),
			FromNew: m.FromNew, ToNew: m.ToNew,
		}
		b.text = b.text[:adjusted.FromOld] + text[m.FromNew:m.ToNew] + b.text[adjusted.ToOld:]
		if b.engine != nil {
			b.engine.NotifyMutation(adjusted)
		}
	}
}
// #endregion buffer

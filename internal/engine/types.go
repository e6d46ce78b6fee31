package engine

import (
	"errors"
	"strings"
	"time"

	"github.com/draftmark/overlay-engine/internal/gate"
	"github.com/draftmark/overlay-engine/internal/locator"
	"github.com/draftmark/overlay-engine/internal/pending"
	"github.com/draftmark/overlay-engine/internal/rebase"
)

// ErrDocumentNotRegistered is returned when a caller addresses a document
// that was never acquired. This is the one contract violation that
// propagates as an error; everything related to fuzzy matching and stale
// ranges is a normal operating condition and never crosses the boundary.
var ErrDocumentNotRegistered = errors.New("document not registered")

// #region document-mutator
// DocumentMutator is the engine's single channel to the text it overlays.
// The embedding editor owns the document; the engine only observes it and
// mutates it here. Implementations must report every Replace back through
// the engine's NotifyMutation exactly once, the same way they report user
// edits.
type DocumentMutator interface {
	// Text returns the current document text.
	Text() string

	// Replace substitutes the span with text. An empty text deletes; a
	// zero-length span inserts.
	Replace(span pending.Span, text string) error
}
// #endregion document-mutator

// #region proposal
// Proposal pairs a fuzzy anchor with what the proposer wants at its
// target. Kind may be left empty to be inferred: an insertion anchor
// means insertAfter, empty proposed text means delete, otherwise replace.
type Proposal struct {
	Anchor       locator.Anchor `json:"anchor"`
	Kind         pending.Kind   `json:"kind,omitempty"`
	ProposedText string         `json:"proposed_text,omitempty"`
}

func (p Proposal) kind() pending.Kind {
	if p.Kind != "" {
		return p.Kind
	}
	if p.Anchor.IsInsertion() {
		return pending.KindInsertAfter
	}
	if p.ProposedText == "" {
		return pending.KindDelete
	}
	return pending.KindReplace
}
// #endregion proposal

// #region results
// SubmitResult reports what one proposer turn produced.
type SubmitResult struct {
	BatchID       string
	Operations    []pending.Operation // admitted, in submission order
	Superseded    int                 // prior-batch ops removed
	Dropped       int                 // beyond the concurrent-operation cap
	LowConfidence int
	Unresolved    int
}

// AcceptedEvent is emitted after an accept applied its edit.
type AcceptedEvent struct {
	DocumentID string
	OpID       string
	Applied    rebase.Mutation
}

// RejectedEvent is emitted after a reject discarded a proposal.
type RejectedEvent struct {
	DocumentID string
	OpID       string
}
// #endregion results

// #region config
// Config bundles the per-stage tunables of one engine.
type Config struct {
	Locator locator.Config
	Gate    gate.Config
	Rebase  rebase.Config

	// ShieldTTL bounds how long an accept's self-inflicted mutation stays
	// shielded from overlap invalidation.
	ShieldTTL time.Duration

	// PrefixEnd locates the end of a structural prefix block that anchors
	// must never target. Nil means no prefix.
	PrefixEnd func(doc string) int
}

// DefaultConfig returns engine defaults with frontmatter detection as the
// structural prefix.
func DefaultConfig() Config {
	return Config{
		Locator:   locator.DefaultConfig(),
		Gate:      gate.DefaultConfig(),
		Rebase:    rebase.DefaultConfig(),
		ShieldTTL: rebase.DefaultShieldTTL,
		PrefixEnd: FrontmatterEnd,
	}
}

// FrontmatterEnd returns the byte offset just past a leading "---" fenced
// metadata block, or 0 when the document has none.
func FrontmatterEnd(doc string) int {
	if !strings.HasPrefix(doc, "---\n") {
		return 0
	}
	idx := strings.Index(doc[4:], "\n---")
	if idx < 0 {
		return 0
	}
	end := 4 + idx + len("\n---")
	if end < len(doc) && doc[end] == '\n' {
		end++
	}
	return end
}
// #endregion config

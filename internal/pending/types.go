package pending

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/draftmark/overlay-engine/internal/locator"
)

// #region kind
// Kind is the edit operation category.
type Kind string

const (
	KindReplace     Kind = "replace"
	KindDelete      Kind = "delete"
	KindInsertAfter Kind = "insertAfter"
)
// #endregion kind

// #region span
// Span is a half-open byte range [Start, End) in the current document.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Valid reports whether the span is ordered and within a document of the
// given length.
func (s Span) Valid(docLen int) bool {
	return s.Start >= 0 && s.Start <= s.End && s.End <= docLen
}
// #endregion span

// #region operation
// Operation is one in-flight edit proposal. Range is the only field that
// changes after creation; observers must not cache it across mutation
// events.
type Operation struct {
	ID            string           `json:"id"`
	BatchID       string           `json:"batch_id"`
	Kind          Kind             `json:"kind"`
	Range         Span             `json:"range"`
	OriginalText  string           `json:"original_text"`
	ProposedText  string           `json:"proposed_text"`
	Confidence    float64          `json:"confidence"`
	Strategy      locator.Strategy `json:"strategy"`
	LowConfidence bool             `json:"low_confidence"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Resolved reports whether the locator pinned this operation to a range.
func (o Operation) Resolved() bool { return o.Strategy != locator.StrategyNone }
// #endregion operation

// #region op-id
// OpID derives a stable operation id from the batch, the anchor's index
// within it, and the resolved range. Re-delivery of the same proposal set
// against unchanged text therefore reproduces the same ids.
func OpID(batchID string, index int, r Span) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d|%d", batchID, index, r.Start, r.End)))
	return hex.EncodeToString(sum[:])[:12]
}
// #endregion op-id

// #region events
// EventKind categorizes store notifications.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventRemoved EventKind = "removed"
	EventShifted EventKind = "rangeShifted"
	EventCleared EventKind = "cleared"
)

// Event is delivered synchronously to subscribers on every store change.
type Event struct {
	Kind   EventKind
	Op     Operation // zero value for EventCleared
	Reason string
}
// #endregion events

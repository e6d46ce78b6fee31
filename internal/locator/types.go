package locator

// #region anchor
// Anchor is a proposer-supplied, approximate description of a target span.
// At least one of ExactText, InsertAfterText, or LeftContext/RightContext
// must be set for resolution to be attempted.
type Anchor struct {
	// ExactText is expected to occur literally in the document.
	// Used for replace and delete proposals.
	ExactText string `json:"exact_text,omitempty"`

	// InsertAfterText is expected to literally precede an insertion point.
	InsertAfterText string `json:"insert_after_text,omitempty"`

	// LeftContext and RightContext are short strings expected adjacent to
	// the target. Used to disambiguate when the anchor text occurs more
	// than once, or to bridge a span when ExactText is absent.
	LeftContext  string `json:"left_context,omitempty"`
	RightContext string `json:"right_context,omitempty"`

	// OccurrenceIndex selects which match to prefer when several identical
	// candidates exist. 0 means the first occurrence.
	OccurrenceIndex int `json:"occurrence_index,omitempty"`
}

// IsInsertion reports whether the anchor describes an insertion point
// rather than a span to replace or delete.
func (a Anchor) IsInsertion() bool {
	return a.ExactText == "" && a.InsertAfterText != ""
}

// Empty reports whether the anchor carries no anchoring field at all.
func (a Anchor) Empty() bool {
	return a.ExactText == "" && a.InsertAfterText == "" &&
		a.LeftContext == "" && a.RightContext == ""
}
// #endregion anchor

// #region strategy
// Strategy identifies which cascade tier produced a resolved range.
type Strategy string

const (
	StrategyExact      Strategy = "exact"
	StrategyWhitespace Strategy = "whitespace"
	StrategySentence   Strategy = "sentence"
	StrategyKeyPhrase  Strategy = "keyphrase"
	StrategyContext    Strategy = "context"
	StrategyNone       Strategy = "none"
)
// #endregion strategy

// #region range
// Range is a resolved target span in byte offsets, with the confidence of
// the strategy that produced it. For pure insertions Start == End.
type Range struct {
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Confidence float64  `json:"confidence"`
	Strategy   Strategy `json:"strategy"`
}

// Len returns the span length in bytes.
func (r Range) Len() int { return r.End - r.Start }
// #endregion range

// #region config
// Config holds tunables for the resolution cascade.
type Config struct {
	// MinConfidence is the threshold below which a resolution is flagged
	// low-confidence for the UI. Resolutions below it are still returned.
	MinConfidence float64

	// SentenceWindow bounds how far past the first sentence fragment the
	// sentence strategy searches for the anchor's trailing words.
	SentenceWindow int

	// KeyPhraseWords is how many leading and trailing words the key-phrase
	// strategy matches independently.
	KeyPhraseWords int

	// MaxBridge bounds the gap the key-phrase strategy tolerates between
	// the head and tail phrases, in bytes beyond the anchor's own length.
	MaxBridge int
}

// DefaultConfig returns the resolution defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:  0.5,
		SentenceWindow: 120,
		KeyPhraseWords: 3,
		MaxBridge:      256,
	}
}
// #endregion config

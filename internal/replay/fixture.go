package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/draftmark/overlay-engine/internal/engine"
	"github.com/draftmark/overlay-engine/internal/pending"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description  string        `json:"description"`
	InitialText  string        `json:"initial_text"`
	Config       FixtureConfig `json:"config"`
	Steps        []FixtureStep `json:"steps"`
	Expectations []Expectation `json:"expectations,omitempty"`
}

// FixtureConfig mirrors the engine's tunables with JSON tags. Zero-valued
// fields keep the engine default, so fixtures only state what they vary.
type FixtureConfig struct {
	MinConfidence  float64 `json:"min_confidence,omitempty"`
	SentenceWindow int     `json:"sentence_window,omitempty"`
	KeyPhraseWords int     `json:"key_phrase_words,omitempty"`
	MaxBridge      int     `json:"max_bridge,omitempty"`
	MaxOperations  int     `json:"max_operations,omitempty"`
	ResyncMinSpan  int     `json:"resync_min_span,omitempty"`
	ShieldTTLMs    int     `json:"shield_ttl_ms,omitempty"`
}

// FixtureStep is one recorded action against the document. Kind selects
// which of the remaining fields are meaningful.
type FixtureStep struct {
	ID   string `json:"id,omitempty"`
	Kind string `json:"kind"` // "submit" | "mutate" | "set_text" | "accept" | "reject"

	// submit
	BatchID   string            `json:"batch_id,omitempty"`
	Proposals []engine.Proposal `json:"proposals,omitempty"`

	// mutate: replace [start,end) with text. set_text: text is the whole
	// new document.
	Start int    `json:"start,omitempty"`
	End   int    `json:"end,omitempty"`
	Text  string `json:"text,omitempty"`

	// accept / reject: op_id when the fixture knows it, otherwise op_index
	// into the live operations in submission order.
	OpID    string `json:"op_id,omitempty"`
	OpIndex int    `json:"op_index,omitempty"`
}

// Expectation is a post-run assertion keyed by step id. Empty step id
// means after the final step.
type Expectation struct {
	AfterStep    string  `json:"after_step,omitempty"`
	PendingCount *int    `json:"pending_count,omitempty"`
	Text         *string `json:"text,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToEngineConfig converts fixture tunables to an engine config, keeping
// defaults for everything the fixture left at zero.
func (fc *FixtureConfig) ToEngineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if fc.MinConfidence != 0 {
		cfg.Locator.MinConfidence = fc.MinConfidence
		cfg.Gate.MinConfidence = fc.MinConfidence
	}
	if fc.SentenceWindow != 0 {
		cfg.Locator.SentenceWindow = fc.SentenceWindow
	}
	if fc.KeyPhraseWords != 0 {
		cfg.Locator.KeyPhraseWords = fc.KeyPhraseWords
	}
	if fc.MaxBridge != 0 {
		cfg.Locator.MaxBridge = fc.MaxBridge
	}
	if fc.MaxOperations != 0 {
		cfg.Gate.MaxOperations = fc.MaxOperations
	}
	if fc.ResyncMinSpan != 0 {
		cfg.Rebase.ResyncMinSpan = fc.ResyncMinSpan
	}
	if fc.ShieldTTLMs != 0 {
		cfg.ShieldTTL = time.Duration(fc.ShieldTTLMs) * time.Millisecond
	}
	return cfg
}

// ToStep converts a FixtureStep to a domain Step.
func (fs *FixtureStep) ToStep() (Step, error) {
	s := Step{
		ID:        fs.ID,
		BatchID:   fs.BatchID,
		Proposals: fs.Proposals,
		Span:      pending.Span{Start: fs.Start, End: fs.End},
		Text:      fs.Text,
		OpID:      fs.OpID,
		OpIndex:   fs.OpIndex,
	}
	switch fs.Kind {
	case "submit":
		s.Kind = StepSubmit
	case "mutate":
		s.Kind = StepMutate
	case "set_text":
		s.Kind = StepSetText
	case "accept":
		s.Kind = StepAccept
	case "reject":
		s.Kind = StepReject
	default:
		return Step{}, fmt.Errorf("step %q: unknown kind %q", fs.ID, fs.Kind)
	}
	return s, nil
}

// #endregion fixture-loader

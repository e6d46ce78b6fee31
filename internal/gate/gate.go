// Package gate decides which resolved operations are admitted into the
// pending store. Admission is policy, not correctness: unresolved anchors
// are admitted flagged rather than dropped, and the concurrent-operation
// cap exists purely to bound rendering cost.
package gate

import (
	"github.com/draftmark/overlay-engine/internal/pending"
)

// #region config
// Config holds the admission thresholds.
type Config struct {
	// MaxOperations caps the live operations per document. Operations
	// beyond it are dropped, not queued. Unresolved operations occupy a
	// slot like any other.
	MaxOperations int

	// MinConfidence is the threshold below which an admitted operation is
	// flagged low-confidence for the renderer.
	MinConfidence float64
}

// DefaultConfig returns the admission defaults.
func DefaultConfig() Config {
	return Config{
		MaxOperations: 50,
		MinConfidence: 0.5,
	}
}
// #endregion config

// #region result
// Result reports what admission decided for one batch.
type Result struct {
	Admitted      []pending.Operation
	Dropped       int // beyond the cap, silently not stored
	LowConfidence int // admitted but flagged for the UI
	Unresolved    int // admitted with zero confidence
}
// #endregion result

// #region admit
// Admit applies the cap and confidence flagging to a batch of resolved
// operations. existing is the number of operations already live for the
// document after supersession. Order is preserved; when the cap bites,
// the earliest operations in the batch win their slots.
func Admit(existing int, resolved []pending.Operation, cfg Config) Result {
	slots := cfg.MaxOperations - existing
	if slots < 0 {
		slots = 0
	}

	var res Result
	for i := range resolved {
		if len(res.Admitted) >= slots {
			res.Dropped = len(resolved) - len(res.Admitted)
			break
		}
		op := resolved[i]
		if op.Confidence < cfg.MinConfidence {
			op.LowConfidence = true
			res.LowConfidence++
		}
		if op.Confidence == 0 {
			res.Unresolved++
		}
		res.Admitted = append(res.Admitted, op)
	}
	return res
}
// #endregion admit

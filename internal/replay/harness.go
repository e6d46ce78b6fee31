// Package replay re-runs recorded editing sessions against an in-memory
// document, so regressions in resolution, rebasing, or the accept
// protocol show up as fixture diffs instead of bug reports.
package replay

import (
	"fmt"

	"github.com/draftmark/overlay-engine/internal/engine"
	"github.com/draftmark/overlay-engine/internal/pending"
)

// #region types
// StepKind selects what a replay step does to the document.
type StepKind string

const (
	StepSubmit  StepKind = "submit"
	StepMutate  StepKind = "mutate"
	StepSetText StepKind = "set_text"
	StepAccept  StepKind = "accept"
	StepReject  StepKind = "reject"
)

// Step is a single recorded action.
type Step struct {
	ID   string
	Kind StepKind

	BatchID   string
	Proposals []engine.Proposal

	Span pending.Span // mutate target
	Text string       // mutate replacement, or set_text body

	OpID    string // accept/reject target, when known
	OpIndex int    // fallback: index into live ops in submission order
}

// StepResult captures the outcome of replaying one step.
type StepResult struct {
	StepID string
	Kind   StepKind
	Err    string // empty on success

	// submit
	BatchID    string
	Superseded int
	Dropped    int
	Unresolved int

	// accept/reject
	OpID string

	// Document state after this step.
	PendingAfter int
	TextLen      int
}

// Summary aggregates a replay run.
type Summary struct {
	Steps       int
	Submits     int
	Mutations   int
	Accepts     int
	Rejects     int
	Invalidated int // ops the rebaser removed during the run
	Errors      int

	FinalText    string
	FinalPending []pending.Operation
}

// #endregion types

// #region replay
// Replay runs the steps against a fresh in-memory document and returns
// per-step results. A step that fails (bad span, unknown op) is recorded
// and the run continues; recorded sessions outlive the exact document
// they were captured from.
func Replay(initialText string, steps []Step, cfg engine.Config) ([]StepResult, Summary) {
	buf := engine.NewBuffer(initialText)
	e := engine.New("replay", buf, nil, cfg)
	buf.Attach(e)

	invalidated := 0
	unsub := e.Store().Subscribe(func(ev pending.Event) {
		if ev.Kind == pending.EventRemoved && ev.Reason != "accepted" && ev.Reason != "rejected" && ev.Reason != "superseded" {
			invalidated++
		}
	})
	defer unsub()

	results := make([]StepResult, 0, len(steps))
	summary := Summary{Steps: len(steps)}

	for i, step := range steps {
		res := StepResult{StepID: step.ID, Kind: step.Kind}
		if res.StepID == "" {
			res.StepID = fmt.Sprintf("step-%d", i)
		}

		switch step.Kind {
		case StepSubmit:
			sub := e.SubmitProposals(step.BatchID, buf.Text(), step.Proposals)
			res.BatchID = sub.BatchID
			res.Superseded = sub.Superseded
			res.Dropped = sub.Dropped
			res.Unresolved = sub.Unresolved
			summary.Submits++

		case StepMutate:
			if err := buf.Replace(step.Span, step.Text); err != nil {
				res.Err = err.Error()
			}
			summary.Mutations++

		case StepSetText:
			buf.SetText(step.Text)
			summary.Mutations++

		case StepAccept:
			id, err := targetOp(e, step)
			if err != nil {
				res.Err = err.Error()
				break
			}
			res.OpID = id
			if err := e.Accept(id); err != nil {
				res.Err = err.Error()
			}
			summary.Accepts++

		case StepReject:
			id, err := targetOp(e, step)
			if err != nil {
				res.Err = err.Error()
				break
			}
			res.OpID = id
			e.Reject(id)
			summary.Rejects++

		default:
			res.Err = fmt.Sprintf("unknown step kind %q", step.Kind)
		}

		if res.Err != "" {
			summary.Errors++
		}
		res.PendingAfter = e.Store().Len()
		res.TextLen = len(buf.Text())
		results = append(results, res)
	}

	summary.Invalidated = invalidated
	summary.FinalText = buf.Text()
	summary.FinalPending = e.Store().List()
	return results, summary
}

// targetOp resolves a step's accept/reject target to an op id.
func targetOp(e *engine.Engine, step Step) (string, error) {
	if step.OpID != "" {
		return step.OpID, nil
	}
	ops := e.Store().List()
	if step.OpIndex < 0 || step.OpIndex >= len(ops) {
		return "", fmt.Errorf("op index %d out of range (%d live)", step.OpIndex, len(ops))
	}
	return ops[step.OpIndex].ID, nil
}

// #endregion replay

// #region run-fixture
// RunFixture loads a fixture, replays it, and checks its expectations.
// Returns the per-step results, the summary, and any expectation failures
// as strings.
func RunFixture(path string) ([]StepResult, Summary, []string, error) {
	f, err := LoadFixture(path)
	if err != nil {
		return nil, Summary{}, nil, err
	}

	steps := make([]Step, 0, len(f.Steps))
	for _, fs := range f.Steps {
		s, err := fs.ToStep()
		if err != nil {
			return nil, Summary{}, nil, err
		}
		steps = append(steps, s)
	}

	results, summary := Replay(f.InitialText, steps, f.Config.ToEngineConfig())

	var failures []string
	for _, exp := range f.Expectations {
		pending, text, ok := stateAfter(results, summary, exp.AfterStep)
		if !ok {
			failures = append(failures, fmt.Sprintf("expectation references unknown step %q", exp.AfterStep))
			continue
		}
		if exp.PendingCount != nil && pending != *exp.PendingCount {
			failures = append(failures, fmt.Sprintf("after %q: pending = %d, want %d", exp.AfterStep, pending, *exp.PendingCount))
		}
		if exp.Text != nil && text != nil && *text != *exp.Text {
			failures = append(failures, fmt.Sprintf("after %q: text = %q, want %q", exp.AfterStep, *text, *exp.Text))
		}
	}
	return results, summary, failures, nil
}

// stateAfter finds the pending count and, for the final step only, the
// text after the named step. Empty name means after the last step.
func stateAfter(results []StepResult, summary Summary, stepID string) (int, *string, bool) {
	if stepID == "" {
		return len(summary.FinalPending), &summary.FinalText, true
	}
	for i, r := range results {
		if r.StepID == stepID {
			if i == len(results)-1 {
				return r.PendingAfter, &summary.FinalText, true
			}
			return r.PendingAfter, nil, true
		}
	}
	return 0, nil, false
}

// #endregion run-fixture

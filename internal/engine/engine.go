// Package engine coordinates anchor resolution, the pending-operation
// store, the mutation rebaser, and the accept/reject protocol for one
// document. The engine is single-threaded with respect to its document:
// the embedding application must serialize SubmitProposals,
// NotifyMutation, Accept and Reject through the same goroutine that
// delivers editor change notifications. No engine method blocks; the only
// I/O it triggers is fire-and-forget persistence.
package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/draftmark/overlay-engine/internal/gate"
	"github.com/draftmark/overlay-engine/internal/locator"
	"github.com/draftmark/overlay-engine/internal/pending"
	"github.com/draftmark/overlay-engine/internal/persist"
	"github.com/draftmark/overlay-engine/internal/provenance"
	"github.com/draftmark/overlay-engine/internal/rebase"
	"github.com/draftmark/overlay-engine/internal/resync"
)

// #region engine-struct
// Engine is the overlay engine for a single document.
type Engine struct {
	documentID string
	doc        DocumentMutator
	store      *pending.Store
	db         *persist.Store // nil disables persistence
	cfg        Config

	docLen int
	shield *rebase.Shield

	acceptSubs map[int]func(AcceptedEvent)
	rejectSubs map[int]func(RejectedEvent)
	nextSub    int
}

// New creates an engine for one document. db may be nil to run without
// persistence (e.g. in tests).
func New(documentID string, doc DocumentMutator, db *persist.Store, cfg Config) *Engine {
	return &Engine{
		documentID: documentID,
		doc:        doc,
		store:      pending.NewStore(documentID),
		db:         db,
		cfg:        cfg,
		docLen:     len(doc.Text()),
		acceptSubs: make(map[int]func(AcceptedEvent)),
		rejectSubs: make(map[int]func(RejectedEvent)),
	}
}

// DocumentID returns the document this engine overlays.
func (e *Engine) DocumentID() string { return e.documentID }

// Store exposes the pending-operation store, the source of truth the
// overlay renderer subscribes to.
func (e *Engine) Store() *pending.Store { return e.store }
// #endregion engine-struct

// #region load
// LoadPersisted restores the document's pending operations from the
// database, re-validating every stored range against the current document
// length. Returns how many persisted entries were dropped as out of range.
func (e *Engine) LoadPersisted() (int, error) {
	if e.db == nil {
		return 0, nil
	}
	ops, dropped, err := e.db.LoadOps(e.documentID, e.docLen)
	if err != nil {
		return 0, fmt.Errorf("load persisted ops: %w", err)
	}
	e.store.Load(ops)
	if dropped > 0 {
		log.Printf("[ENGINE] %s: dropped %d persisted ops with out-of-range spans", e.documentID, dropped)
		e.logDecision(provenance.Entry{Action: provenance.ActionLoadDrop,
			Reason: fmt.Sprintf("%d entries out of range for document length %d", dropped, e.docLen)})
	}
	return dropped, nil
}
// #endregion load

// #region submit
// SubmitProposals resolves one proposer turn's anchors against the text
// snapshot the proposer saw and installs the resulting operations. A new
// batch supersedes all still-pending operations from previous batches.
// Unresolvable anchors become zero-confidence operations rather than
// disappearing; the proposer's intent is still worth showing to a human.
func (e *Engine) SubmitProposals(batchID string, snapshot string, proposals []Proposal) SubmitResult {
	if batchID == "" {
		batchID = uuid.New().String()
	}
	current := e.doc.Text()

	// The proposer may have seen a slightly older document. Resolve
	// against its snapshot, then map the ranges forward across whatever
	// changed in the meantime.
	var diffs = resyncDiffs(snapshot, current)

	prefixEnd := 0
	if e.cfg.PrefixEnd != nil {
		prefixEnd = e.cfg.PrefixEnd(snapshot)
	}

	resolved := make([]pending.Operation, 0, len(proposals))
	for i, p := range proposals {
		op := e.resolveProposal(batchID, i, p, snapshot, current, diffs, prefixEnd)
		resolved = append(resolved, op)
		e.logDecision(provenance.Entry{OpID: op.ID, BatchID: batchID,
			Action: provenance.ActionResolve,
			Reason: fmt.Sprintf("strategy=%s confidence=%.2f range=[%d,%d)", op.Strategy, op.Confidence, op.Range.Start, op.Range.End)})
	}

	admit := gate.Admit(countSameBatch(e.store, batchID), resolved, e.cfg.Gate)
	superseded := e.store.AddBatch(batchID, admit.Admitted)
	for _, op := range superseded {
		e.logDecision(provenance.Entry{OpID: op.ID, BatchID: op.BatchID,
			Action: provenance.ActionSupersede, Reason: "newer batch " + batchID})
	}
	if admit.Dropped > 0 {
		log.Printf("[ENGINE] %s: dropped %d proposals beyond cap %d", e.documentID, admit.Dropped, e.cfg.Gate.MaxOperations)
		e.logDecision(provenance.Entry{BatchID: batchID, Action: provenance.ActionAdmitDrop,
			Reason: fmt.Sprintf("%d beyond cap %d", admit.Dropped, e.cfg.Gate.MaxOperations)})
	}

	e.persistAsync()
	return SubmitResult{
		BatchID:       batchID,
		Operations:    e.store.List(),
		Superseded:    len(superseded),
		Dropped:       admit.Dropped,
		LowConfidence: admit.LowConfidence,
		Unresolved:    admit.Unresolved,
	}
}

// resolveProposal turns one proposal into an operation, resolved or not.
func (e *Engine) resolveProposal(batchID string, index int, p Proposal, snapshot, current string, diffs diffList, prefixEnd int) pending.Operation {
	op := pending.Operation{
		BatchID:      batchID,
		Kind:         p.kind(),
		ProposedText: p.ProposedText,
		Strategy:     locator.StrategyNone,
		CreatedAt:    time.Now().UTC(),
	}

	r := locator.Locate(snapshot, p.Anchor, prefixEnd, e.cfg.Locator)
	if r == nil {
		// Unresolved: confidence zero, still reported.
		op.ID = pending.OpID(batchID, index, pending.Span{})
		op.OriginalText = p.Anchor.ExactText
		return op
	}

	span := pending.Span{Start: r.Start, End: r.End}
	if diffs != nil {
		span = mapSpan(span, diffs, len(current))
		if !span.Valid(len(current)) {
			op.ID = pending.OpID(batchID, index, pending.Span{})
			op.OriginalText = p.Anchor.ExactText
			return op
		}
	}

	op.Range = span
	op.Confidence = r.Confidence
	op.Strategy = r.Strategy
	if op.Kind != pending.KindInsertAfter {
		op.OriginalText = current[span.Start:span.End]
	}
	op.ID = pending.OpID(batchID, index, span)
	return op
}

func countSameBatch(s *pending.Store, batchID string) int {
	n := 0
	for _, op := range s.List() {
		if op.BatchID == batchID {
			n++
		}
	}
	return n
}
// #endregion submit

// #region mutation
// NotifyMutation must be called once per contiguous edit region whenever
// the document's text changes, regardless of source. It rebases every
// live operation synchronously before returning, so no two passes for the
// same document can interleave.
func (e *Engine) NotifyMutation(mut rebase.Mutation) {
	shielded := e.shield.Consume()
	newText := e.doc.Text()
	prevLen := e.docLen

	changed := false
	for _, op := range e.store.List() {
		out := rebase.Rebase(op, mut, newText, prevLen, e.cfg.Rebase, shielded)
		switch out.Action {
		case rebase.ActionShift:
			e.store.SetRange(op.ID, out.Range)
			changed = true
		case rebase.ActionRemove:
			e.store.Remove(op.ID, out.Reason)
			log.Printf("[REBASE] %s: removed %s: %s", e.documentID, op.ID, out.Reason)
			e.logDecision(provenance.Entry{OpID: op.ID, BatchID: op.BatchID,
				Action: provenance.ActionInvalidate, Reason: out.Reason})
			changed = true
		}
	}

	e.docLen = len(newText)
	if changed {
		e.persistAsync()
	}
}
// #endregion mutation

// #region accept-reject
// Accept applies one pending operation to the document. The operation is
// removed from the store first so it cannot be double-accepted and does
// not appear in its own rebase; the mutation then flows back through
// NotifyMutation under an armed shield, which shifts the remaining
// operations without invalidating them. Accepting an unknown id is a
// harmless no-op.
func (e *Engine) Accept(opID string) error {
	op, ok := e.store.Get(opID)
	if !ok {
		return nil
	}
	e.store.Remove(opID, "accepted")

	text := op.ProposedText
	if op.Kind == pending.KindDelete {
		text = ""
	}

	e.armShield()
	if err := e.doc.Replace(op.Range, text); err != nil {
		return fmt.Errorf("apply accepted op %s: %w", opID, err)
	}

	applied := rebase.Mutation{
		FromOld: op.Range.Start, ToOld: op.Range.End,
		FromNew: op.Range.Start, ToNew: op.Range.Start + len(text),
	}
	e.logDecision(provenance.Entry{OpID: opID, BatchID: op.BatchID, Action: provenance.ActionAccept})
	e.persistAsync()

	ev := AcceptedEvent{DocumentID: e.documentID, OpID: opID, Applied: applied}
	for _, fn := range e.acceptSubs {
		fn(ev)
	}
	return nil
}

// Reject discards one pending operation without touching the document.
// Rejecting an unknown id is a harmless no-op.
func (e *Engine) Reject(opID string) {
	op, ok := e.store.Get(opID)
	if !ok {
		return
	}
	e.store.Remove(opID, "rejected")
	e.logDecision(provenance.Entry{OpID: opID, BatchID: op.BatchID, Action: provenance.ActionReject})
	e.persistAsync()

	ev := RejectedEvent{DocumentID: e.documentID, OpID: opID}
	for _, fn := range e.rejectSubs {
		fn(ev)
	}
}

func (e *Engine) armShield() {
	if e.shield.Active() {
		e.shield.Extend(1, e.cfg.ShieldTTL)
		return
	}
	e.shield = rebase.NewShield(1, e.cfg.ShieldTTL)
}

// OnAccepted registers a listener for applied operations; returns its
// unsubscribe function.
func (e *Engine) OnAccepted(fn func(AcceptedEvent)) func() {
	id := e.nextSub
	e.nextSub++
	e.acceptSubs[id] = fn
	return func() { delete(e.acceptSubs, id) }
}

// OnRejected registers a listener for rejected operations; returns its
// unsubscribe function.
func (e *Engine) OnRejected(fn func(RejectedEvent)) func() {
	id := e.nextSub
	e.nextSub++
	e.rejectSubs[id] = fn
	return func() { delete(e.rejectSubs, id) }
}
// #endregion accept-reject

// #region helpers
func (e *Engine) persistAsync() {
	if e.db == nil {
		return
	}
	e.db.Queue(e.documentID, e.store.List())
}

func (e *Engine) logDecision(entry provenance.Entry) {
	if e.db == nil {
		return
	}
	entry.DocumentID = e.documentID
	if err := provenance.LogDecision(e.db.DB(), entry); err != nil {
		log.Printf("[ENGINE] %s: provenance write failed: %v", e.documentID, err)
	}
}

type diffList = []diffmatchpatch.Diff

func resyncDiffs(snapshot, current string) diffList {
	if snapshot == current {
		return nil
	}
	return resync.Diff(snapshot, current)
}

func mapSpan(span pending.Span, diffs diffList, docLen int) pending.Span {
	start := resync.MapPosition(span.Start, diffs)
	end := resync.MapPosition(span.End, diffs)
	if end < start {
		end = start
	}
	if end > docLen {
		end = docLen
	}
	return pending.Span{Start: start, End: end}
}
// #endregion helpers

// Package pending tracks the in-flight edit proposals for one document and
// notifies subscribers on every change so a renderer stays in sync without
// polling. The store is deliberately unsynchronized: per the engine's
// concurrency model all access for one document is serialized by the
// owning engine.
package pending

// #region store
// Store holds the live operations for a single document in submission
// order. It is the single source of truth the overlay renderer consumes.
type Store struct {
	documentID string
	ops        []Operation
	subs       map[int]func(Event)
	nextSub    int
}

// NewStore creates an empty store for one document.
func NewStore(documentID string) *Store {
	return &Store{
		documentID: documentID,
		subs:       make(map[int]func(Event)),
	}
}

// DocumentID returns the document this store belongs to.
func (s *Store) DocumentID() string { return s.documentID }

// Len returns the number of live operations.
func (s *Store) Len() int { return len(s.ops) }
// #endregion store

// #region add-batch
// AddBatch installs a batch of already-admitted operations. Operations
// from previously stored batches with a different batch id are superseded
// and removed first; switching proposer turns clears the prior turn's
// still-pending suggestions. Operations whose id is already present are
// skipped, so re-delivery of an identical batch does not duplicate.
// Returns the superseded operations.
func (s *Store) AddBatch(batchID string, ops []Operation) []Operation {
	var superseded []Operation
	kept := s.ops[:0]
	for _, op := range s.ops {
		if op.BatchID != batchID {
			superseded = append(superseded, op)
			continue
		}
		kept = append(kept, op)
	}
	s.ops = kept
	for _, op := range superseded {
		s.notify(Event{Kind: EventRemoved, Op: op, Reason: "superseded"})
	}

	for _, op := range ops {
		if _, ok := s.get(op.ID); ok {
			continue
		}
		s.ops = append(s.ops, op)
		s.notify(Event{Kind: EventAdded, Op: op})
	}
	return superseded
}
// #endregion add-batch

// #region accessors
// Get returns a copy of the operation with the given id.
func (s *Store) Get(id string) (Operation, bool) {
	if op, ok := s.get(id); ok {
		return *op, true
	}
	return Operation{}, false
}

func (s *Store) get(id string) (*Operation, bool) {
	for i := range s.ops {
		if s.ops[i].ID == id {
			return &s.ops[i], true
		}
	}
	return nil, false
}

// List returns copies of all live operations in submission order.
func (s *Store) List() []Operation {
	out := make([]Operation, len(s.ops))
	copy(out, s.ops)
	return out
}
// #endregion accessors

// #region mutators
// Remove deletes one operation. Returns false if the id is not present.
func (s *Store) Remove(id, reason string) bool {
	for i := range s.ops {
		if s.ops[i].ID == id {
			op := s.ops[i]
			s.ops = append(s.ops[:i], s.ops[i+1:]...)
			s.notify(Event{Kind: EventRemoved, Op: op, Reason: reason})
			return true
		}
	}
	return false
}

// SetRange moves an operation to a new span, typically after a rebase
// pass. Returns false if the id is not present.
func (s *Store) SetRange(id string, r Span) bool {
	op, ok := s.get(id)
	if !ok {
		return false
	}
	op.Range = r
	s.notify(Event{Kind: EventShifted, Op: *op})
	return true
}

// Clear removes every operation at once, emitting a single cleared event.
func (s *Store) Clear(reason string) {
	if len(s.ops) == 0 {
		return
	}
	s.ops = nil
	s.notify(Event{Kind: EventCleared, Reason: reason})
}

// Load replaces the store contents wholesale, e.g. from persisted state.
// Emits one added event per operation.
func (s *Store) Load(ops []Operation) {
	s.ops = make([]Operation, len(ops))
	copy(s.ops, ops)
	for _, op := range s.ops {
		s.notify(Event{Kind: EventAdded, Op: op})
	}
}
// #endregion mutators

// #region subscribe
// Subscribe registers a callback invoked synchronously on every store
// change, and returns its unsubscribe function. Delivery order across
// subscribers is not guaranteed.
func (s *Store) Subscribe(fn func(Event)) func() {
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() { delete(s.subs, id) }
}

func (s *Store) notify(ev Event) {
	for _, fn := range s.subs {
		fn(ev)
	}
}
// #endregion subscribe

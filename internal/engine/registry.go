package engine

import (
	"log"
	"sync"

	"github.com/draftmark/overlay-engine/internal/persist"
)

// #region registry
// Registry owns one long-lived engine per open document so remounting an
// overlay surface never duplicates pending operations. Acquire/Release
// are refcounted; the map is the only shared state, so its mutex guards
// registry bookkeeping only — per-document calls stay single-threaded.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	db      *persist.Store
	cfg     Config
}

type registryEntry struct {
	engine *Engine
	refs   int
}

// NewRegistry creates a registry. db may be nil to disable persistence
// for every engine it creates.
func NewRegistry(db *persist.Store, cfg Config) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		db:      db,
		cfg:     cfg,
	}
}
// #endregion registry

// #region acquire-release
// Acquire returns the engine for a document, creating it on first use and
// restoring its persisted operations. A second acquire for the same
// document returns the same engine and ignores the supplied mutator.
func (r *Registry) Acquire(documentID string, doc DocumentMutator) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ent, ok := r.entries[documentID]; ok {
		ent.refs++
		return ent.engine
	}

	e := New(documentID, doc, r.db, r.cfg)
	if _, err := e.LoadPersisted(); err != nil {
		log.Printf("[REGISTRY] %s: restore failed: %v", documentID, err)
	}
	r.entries[documentID] = &registryEntry{engine: e, refs: 1}
	return e
}

// Get returns an already-acquired engine or ErrDocumentNotRegistered.
func (r *Registry) Get(documentID string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[documentID]
	if !ok {
		return nil, ErrDocumentNotRegistered
	}
	return ent.engine, nil
}

// Release drops one reference; the engine is discarded when the last
// holder releases it, after a final synchronous save of its operations.
// Releasing an unknown document is tolerated with a warning.
func (r *Registry) Release(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ent, ok := r.entries[documentID]
	if !ok {
		log.Printf("[REGISTRY] release of unregistered document %s", documentID)
		return
	}
	ent.refs--
	if ent.refs > 0 {
		return
	}
	if r.db != nil {
		if err := r.db.SaveOps(documentID, ent.engine.Store().List()); err != nil {
			log.Printf("[REGISTRY] %s: final save failed: %v", documentID, err)
		}
	}
	delete(r.entries, documentID)
}
// #endregion acquire-release

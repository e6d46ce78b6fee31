// Package persist stores each document's pending-operation list in SQLite
// so proposals survive a reload of the same document. The in-memory store
// remains the immediately consistent source of truth; saves here are
// queued fire-and-forget so the mutation-handling path never blocks on
// disk I/O.
package persist

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/draftmark/overlay-engine/internal/locator"
	"github.com/draftmark/overlay-engine/internal/pending"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS pending_ops (
	document_id    TEXT NOT NULL,
	op_id          TEXT NOT NULL,
	batch_id       TEXT NOT NULL,
	kind           TEXT NOT NULL,
	span_start     INTEGER NOT NULL,
	span_end       INTEGER NOT NULL,
	original_text  TEXT NOT NULL,
	proposed_text  TEXT NOT NULL,
	confidence     REAL NOT NULL,
	strategy       TEXT NOT NULL,
	low_confidence INTEGER NOT NULL,
	created_at     TEXT NOT NULL,
	PRIMARY KEY (document_id, op_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id TEXT NOT NULL,
	op_id       TEXT,
	batch_id    TEXT,
	action      TEXT NOT NULL,
	reason      TEXT,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_provenance_doc ON provenance_log(document_id, id);
`
// #endregion schema

// #region store-struct
// Store persists pending operations and provenance in SQLite.
type Store struct {
	db *sql.DB

	mu    sync.Mutex
	snaps map[string][]pending.Operation
	kick  chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database, runs migrations, and starts the
// background snapshot writer.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{
		db:    db,
		snaps: make(map[string][]pending.Operation),
		kick:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}
// #endregion constructor

// #region close
// Close drains any queued snapshot and closes the database.
func (s *Store) Close() error {
	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages
// (e.g. provenance).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion close

// #region save
// SaveOps synchronously replaces a document's persisted operations.
func (s *Store) SaveOps(documentID string, ops []pending.Operation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pending_ops WHERE document_id = ?`, documentID); err != nil {
		return fmt.Errorf("clear ops: %w", err)
	}
	for _, op := range ops {
		_, err := tx.Exec(
			`INSERT INTO pending_ops
			 (document_id, op_id, batch_id, kind, span_start, span_end,
			  original_text, proposed_text, confidence, strategy, low_confidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			documentID, op.ID, op.BatchID, string(op.Kind),
			op.Range.Start, op.Range.End,
			op.OriginalText, op.ProposedText,
			op.Confidence, string(op.Strategy), boolToInt(op.LowConfidence),
			op.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert op %s: %w", op.ID, err)
		}
	}
	return tx.Commit()
}
// #endregion save

// #region load
// LoadOps reads a document's persisted operations, re-validating every
// stored range against the current document length. Documents may have
// changed out-of-band between sessions, so out-of-range entries are
// dropped rather than clamped blindly; the second return is how many were
// dropped.
func (s *Store) LoadOps(documentID string, docLen int) ([]pending.Operation, int, error) {
	rows, err := s.db.Query(
		`SELECT op_id, batch_id, kind, span_start, span_end,
		        original_text, proposed_text, confidence, strategy, low_confidence, created_at
		 FROM pending_ops WHERE document_id = ? ORDER BY rowid`, documentID,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("load ops: %w", err)
	}
	defer rows.Close()

	var ops []pending.Operation
	dropped := 0
	for rows.Next() {
		var op pending.Operation
		var kind, strategy, createdStr string
		var lowConf int
		if err := rows.Scan(
			&op.ID, &op.BatchID, &kind, &op.Range.Start, &op.Range.End,
			&op.OriginalText, &op.ProposedText, &op.Confidence, &strategy, &lowConf, &createdStr,
		); err != nil {
			return nil, 0, fmt.Errorf("scan op: %w", err)
		}
		op.Kind = pending.Kind(kind)
		op.Strategy = locator.Strategy(strategy)
		op.LowConfidence = lowConf != 0
		op.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

		if !op.Range.Valid(docLen) {
			dropped++
			continue
		}
		ops = append(ops, op)
	}
	return ops, dropped, rows.Err()
}
// #endregion load

// #region async-writer
// Queue schedules an asynchronous save of a document's operation
// snapshot. Later snapshots for the same document replace earlier
// unwritten ones; only the latest state ever reaches disk.
func (s *Store) Queue(documentID string, ops []pending.Operation) {
	s.mu.Lock()
	s.snaps[documentID] = ops
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Store) writer() {
	defer s.wg.Done()
	for {
		select {
		case <-s.kick:
			s.flush()
		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *Store) flush() {
	s.mu.Lock()
	batch := s.snaps
	s.snaps = make(map[string][]pending.Operation)
	s.mu.Unlock()

	for docID, ops := range batch {
		if err := s.SaveOps(docID, ops); err != nil {
			// Persistence is best-effort relative to the in-memory store.
			log.Printf("[PERSIST] save %s failed: %v", docID, err)
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
// #endregion async-writer

// Package provenance records engine decisions about pending operations
// into the provenance_log table, giving an audit trail of why each
// proposal appeared, moved, or disappeared.
package provenance

import (
	"database/sql"
	"fmt"
	"time"
)

// #region entry
// Action enumerates the recorded decision kinds.
type Action string

const (
	ActionResolve    Action = "resolve"
	ActionAdmitDrop  Action = "admit_drop"
	ActionSupersede  Action = "supersede"
	ActionAccept     Action = "accept"
	ActionReject     Action = "reject"
	ActionInvalidate Action = "invalidate"
	ActionClampDrop  Action = "clamp_remove"
	ActionLoadDrop   Action = "load_drop"
)

// Entry is a single row in the provenance_log table.
type Entry struct {
	DocumentID string
	OpID       string
	BatchID    string
	Action     Action
	Reason     string
	CreatedAt  time.Time
}
// #endregion entry

// #region log-decision
// LogDecision writes a provenance entry.
func LogDecision(db *sql.DB, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (document_id, op_id, batch_id, action, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.DocumentID,
		nullIfEmpty(entry.OpID),
		nullIfEmpty(entry.BatchID),
		string(entry.Action),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}
// #endregion log-decision

// #region list
// List returns the most recent entries for a document, newest first.
func List(db *sql.DB, documentID string, limit int) ([]Entry, error) {
	rows, err := db.Query(
		`SELECT document_id, op_id, batch_id, action, reason, created_at
		 FROM provenance_log WHERE document_id = ?
		 ORDER BY id DESC LIMIT ?`, documentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var opID, batchID, reason sql.NullString
		var createdStr string
		var action string
		if err := rows.Scan(&e.DocumentID, &opID, &batchID, &action, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		e.OpID = opID.String
		e.BatchID = batchID.String
		e.Action = Action(action)
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion list

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers

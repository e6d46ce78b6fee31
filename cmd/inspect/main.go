package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/draftmark/overlay-engine/internal/persist"
	"github.com/draftmark/overlay-engine/internal/provenance"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to overlay.db")
	doc := flag.String("doc", "", "filter to one document id")
	prov := flag.Bool("prov", false, "show the provenance log instead of pending ops")
	last := flag.Int("last", 50, "provenance rows to show (newest first)")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/overlay.db [--doc id] [--prov] [--last N] [--json]")
		os.Exit(2)
	}

	store, err := persist.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *prov {
		if *doc == "" {
			fmt.Fprintln(os.Stderr, "--prov requires --doc")
			os.Exit(2)
		}
		err = runProvMode(store, *doc, *last, *jsonOut)
	} else {
		err = runOpsMode(store, *doc, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region ops-mode

type opRow struct {
	DocumentID    string  `json:"document_id"`
	OpID          string  `json:"op_id"`
	BatchID       string  `json:"batch_id"`
	Kind          string  `json:"kind"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Confidence    float64 `json:"confidence"`
	Strategy      string  `json:"strategy"`
	LowConfidence bool    `json:"low_confidence"`
	OriginalText  string  `json:"original_text"`
	ProposedText  string  `json:"proposed_text"`
	CreatedAt     string  `json:"created_at"`
}

// runOpsMode lists persisted pending operations straight from the table,
// without the range re-validation a live load performs: inspect is for
// looking at what is actually on disk.
func runOpsMode(store *persist.Store, doc string, jsonOut bool) error {
	query := `SELECT document_id, op_id, batch_id, kind, span_start, span_end,
	                 confidence, strategy, low_confidence, original_text, proposed_text, created_at
	          FROM pending_ops`
	args := []interface{}{}
	if doc != "" {
		query += ` WHERE document_id = ?`
		args = append(args, doc)
	}
	query += ` ORDER BY document_id, rowid`

	rows, err := store.DB().Query(query, args...)
	if err != nil {
		return fmt.Errorf("query pending ops: %w", err)
	}
	defer rows.Close()

	var out []opRow
	for rows.Next() {
		var r opRow
		var lowConf int
		if err := rows.Scan(&r.DocumentID, &r.OpID, &r.BatchID, &r.Kind, &r.Start, &r.End,
			&r.Confidence, &r.Strategy, &lowConf, &r.OriginalText, &r.ProposedText, &r.CreatedAt); err != nil {
			return fmt.Errorf("scan op: %w", err)
		}
		r.LowConfidence = lowConf != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate ops: %w", err)
	}

	if len(out) == 0 {
		fmt.Fprintln(os.Stderr, "no pending operations found")
		return nil
	}
	if jsonOut {
		return printJSON(out)
	}
	return printOpsTable(out)
}

func printOpsTable(rows []opRow) error {
	fmt.Printf("%-20s  %-12s  %-12s  %-12s  %-13s  %5s  %-10s  %s\n",
		"Document", "Op", "Batch", "Kind", "Range", "Conf", "Strategy", "Flags")
	fmt.Printf("%-20s  %-12s  %-12s  %-12s  %-13s  %5s  %-10s  %s\n",
		"--------------------", "------------", "------------", "------------", "-------------", "-----", "----------", "-----")

	for _, r := range rows {
		flags := ""
		if r.LowConfidence {
			flags = "LOW"
		}
		fmt.Printf("%-20s  %-12s  %-12s  %-12s  [%5d,%5d)  %5.2f  %-10s  %s\n",
			shortID(r.DocumentID, 20), r.OpID, shortID(r.BatchID, 12), r.Kind,
			r.Start, r.End, r.Confidence, r.Strategy, flags)
	}
	fmt.Printf("\n%d operations\n", len(rows))
	return nil
}

// #endregion ops-mode

// #region prov-mode

type provRow struct {
	OpID      string `json:"op_id,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`
	Action    string `json:"action"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runProvMode(store *persist.Store, doc string, last int, jsonOut bool) error {
	entries, err := provenance.List(store.DB(), doc, last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no provenance entries found")
		return nil
	}

	out := make([]provRow, len(entries))
	for i, e := range entries {
		out[i] = provRow{
			OpID:      e.OpID,
			BatchID:   e.BatchID,
			Action:    string(e.Action),
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("%-12s  %-12s  %-12s  %-20s  %s\n", "Op", "Batch", "Action", "Time", "Reason")
	fmt.Printf("%-12s  %-12s  %-12s  %-20s  %s\n",
		"------------", "------------", "------------", "--------------------", "--------------------")
	for _, r := range out {
		fmt.Printf("%-12s  %-12s  %-12s  %-20s  %s\n",
			orDash(r.OpID), shortID(orDash(r.BatchID), 12), r.Action, r.CreatedAt, r.Reason)
	}
	return nil
}

// #endregion prov-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string, n int) string {
	if len(id) > n {
		return id[:n]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// #endregion output

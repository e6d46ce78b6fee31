package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/draftmark/overlay-engine/internal/engine"
	"github.com/draftmark/overlay-engine/internal/locator"
	"github.com/draftmark/overlay-engine/internal/pending"
	"github.com/draftmark/overlay-engine/internal/persist"
	"github.com/draftmark/overlay-engine/internal/replay"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to overlay.db")
	docID := flag.String("doc", "", "document id to export")
	docFile := flag.String("file", "", "document file supplying the initial text")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *docID == "" || *docFile == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/overlay.db --doc id --file document.md --out fixture.json")
		os.Exit(2)
	}

	if err := run(*dbPath, *docID, *docFile, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(dbPath, docID, docFile, outPath string) error {
	text, err := os.ReadFile(docFile)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	store, err := persist.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	ops, dropped, err := store.LoadOps(docID, len(text))
	if err != nil {
		return fmt.Errorf("load ops: %w", err)
	}
	if dropped > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d persisted ops out of range for %s, skipped\n", dropped, docFile)
	}
	if len(ops) == 0 {
		return fmt.Errorf("no in-range pending operations for document %s", docID)
	}

	fmt.Printf("Found %d pending operations\n", len(ops))

	fixture := buildFixture(docID, string(text), ops)
	return writeFixture(fixture, outPath)
}

// buildFixture turns the persisted operations back into proposals so the
// harness re-resolves them from scratch, then asserts the session ends in
// the same state: same number of live operations over the same text.
func buildFixture(docID, text string, ops []pending.Operation) replay.Fixture {
	proposals := make([]engine.Proposal, len(ops))
	batchID := ops[0].BatchID
	for i, op := range ops {
		p := engine.Proposal{Kind: op.Kind, ProposedText: op.ProposedText}
		if op.Kind == pending.KindInsertAfter {
			p.Anchor = locator.Anchor{InsertAfterText: insertionContext(text, op.Range.Start)}
		} else {
			p.Anchor = locator.Anchor{ExactText: op.OriginalText}
		}
		proposals[i] = p
	}

	count := len(ops)
	return replay.Fixture{
		Description: fmt.Sprintf("Session export: %d pending ops for %s", len(ops), docID),
		InitialText: text,
		Steps: []replay.FixtureStep{
			{ID: "restore", Kind: "submit", BatchID: batchID, Proposals: proposals},
		},
		Expectations: []replay.Expectation{
			{AfterStep: "restore", PendingCount: &count},
		},
	}
}

// insertionContext recovers an insert-after anchor from the bytes that
// precede the insertion point. Resolution skips one line break after the
// anchor, so a point at the start of a line anchors on the previous line.
func insertionContext(text string, pos int) string {
	if pos > len(text) {
		pos = len(text)
	}
	end := pos
	if end > 0 && text[end-1] == '\n' {
		end--
		if end > 0 && text[end-1] == '\r' {
			end--
		}
	}
	start := end
	for start > 0 && text[start-1] != '\n' {
		start--
	}
	return text[start:end]
}

// #endregion export

// #region output

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d proposals)\n", outPath, len(data), len(fixture.Steps[0].Proposals))
	return nil
}

// #endregion output

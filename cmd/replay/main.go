package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/draftmark/overlay-engine/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	jsonOut := flag.Bool("json", false, "output per-step results as JSON")
	showText := flag.Bool("text", false, "print the final document text")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/session.json [--json] [--text]")
		os.Exit(2)
	}

	results, summary, failures, err := replay.RunFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}

	if *jsonOut {
		printJSON(results, summary, failures)
	} else {
		printTable(results, summary, failures, *showText)
	}

	if len(failures) > 0 || summary.Errors > 0 {
		os.Exit(1)
	}
}

// #endregion main

// #region output

func printTable(results []replay.StepResult, summary replay.Summary, failures []string, showText bool) {
	fmt.Printf("%-14s  %-10s  %-8s  %-8s  %s\n", "Step", "Kind", "Pending", "DocLen", "Note")
	fmt.Printf("%-14s  %-10s  %-8s  %-8s  %s\n",
		"--------------", "----------", "--------", "--------", "--------------------")

	for _, r := range results {
		note := ""
		switch {
		case r.Err != "":
			note = "ERR " + r.Err
		case r.Kind == replay.StepSubmit:
			note = fmt.Sprintf("batch=%s superseded=%d dropped=%d unresolved=%d",
				shortID(r.BatchID), r.Superseded, r.Dropped, r.Unresolved)
		case r.OpID != "":
			note = "op=" + r.OpID
		}
		fmt.Printf("%-14s  %-10s  %8d  %8d  %s\n", r.StepID, r.Kind, r.PendingAfter, r.TextLen, note)
	}

	fmt.Printf("\nSummary: %d steps, %d submits, %d mutations, %d accepts, %d rejects, %d invalidated, %d errors\n",
		summary.Steps, summary.Submits, summary.Mutations, summary.Accepts, summary.Rejects,
		summary.Invalidated, summary.Errors)
	fmt.Printf("Final: %d pending ops, %d bytes\n", len(summary.FinalPending), len(summary.FinalText))

	if showText {
		fmt.Printf("\n%s\n", summary.FinalText)
	}

	if len(failures) > 0 {
		fmt.Printf("\nExpectation failures:\n")
		for _, f := range failures {
			fmt.Printf("  FAIL %s\n", f)
		}
	} else {
		fmt.Println("\nAll expectations met.")
	}
}

type jsonOutput struct {
	Results  []replay.StepResult `json:"results"`
	Summary  replay.Summary      `json:"summary"`
	Failures []string            `json:"failures,omitempty"`
}

func printJSON(results []replay.StepResult, summary replay.Summary, failures []string) {
	data, err := json.MarshalIndent(jsonOutput{Results: results, Summary: summary, Failures: failures}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal json: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(data))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output

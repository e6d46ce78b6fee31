package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/draftmark/overlay-engine/internal/engine"
	"github.com/draftmark/overlay-engine/internal/pending"
	"github.com/draftmark/overlay-engine/internal/persist"
)

// #region main
func main() {
	dbPath := envOr("OVERLAY_DB", "overlay.db")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: overlayd <document-file>")
		os.Exit(2)
	}
	docPath := os.Args[1]

	data, err := os.ReadFile(docPath)
	if err != nil {
		log.Fatalf("read document: %v", err)
	}

	store, err := persist.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	registry := engine.NewRegistry(store, engine.DefaultConfig())
	buf := engine.NewBuffer(string(data))
	eng := registry.Acquire(docPath, buf)
	buf.Attach(eng)
	defer registry.Release(docPath)

	eng.OnAccepted(func(ev engine.AcceptedEvent) {
		fmt.Printf("[accepted %s] [%d,%d) -> [%d,%d)\n",
			ev.OpID, ev.Applied.FromOld, ev.Applied.ToOld, ev.Applied.FromNew, ev.Applied.ToNew)
	})

	fmt.Println("Overlay engine ready.")
	fmt.Printf("  DB: %s | Document: %s (%d bytes, %d restored ops)\n",
		dbPath, docPath, len(buf.Text()), eng.Store().Len())
	fmt.Println("Commands: submit <json|file> | pending | accept <n|id> | reject <n|id> | edit <start> <end> [text] | text | save | quit")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		runCommand(eng, buf, docPath, line)
	}
}
// #endregion main

// #region commands
func runCommand(eng *engine.Engine, buf *engine.Buffer, docPath, line string) {
	cmd, rest, _ := strings.Cut(line, " ")

	switch cmd {
	case "submit":
		// Inline JSON array, or a path to a file holding one.
		raw := []byte(rest)
		if !strings.HasPrefix(strings.TrimSpace(rest), "[") {
			data, err := os.ReadFile(strings.TrimSpace(rest))
			if err != nil {
				fmt.Printf("read proposals: %v\n", err)
				return
			}
			raw = data
		}
		var proposals []engine.Proposal
		if err := json.Unmarshal(raw, &proposals); err != nil {
			fmt.Printf("bad proposals json: %v\n", err)
			return
		}
		res := eng.SubmitProposals("", buf.Text(), proposals)
		fmt.Printf("batch %s: %d live, %d superseded, %d dropped, %d unresolved\n",
			res.BatchID, len(res.Operations), res.Superseded, res.Dropped, res.Unresolved)

	case "pending":
		ops := eng.Store().List()
		if len(ops) == 0 {
			fmt.Println("no pending operations")
			return
		}
		for i, op := range ops {
			printOp(i, op, buf.Text())
		}

	case "accept":
		id, ok := resolveOpArg(eng, rest)
		if !ok {
			return
		}
		if err := eng.Accept(id); err != nil {
			fmt.Printf("accept error: %v\n", err)
		}

	case "reject":
		id, ok := resolveOpArg(eng, rest)
		if !ok {
			return
		}
		eng.Reject(id)
		fmt.Printf("rejected %s\n", id)

	case "edit":
		parts := strings.SplitN(rest, " ", 3)
		if len(parts) < 2 {
			fmt.Println("usage: edit <start> <end> [text]")
			return
		}
		start, err1 := strconv.Atoi(parts[0])
		end, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			fmt.Println("usage: edit <start> <end> [text]")
			return
		}
		text := ""
		if len(parts) == 3 {
			text = parts[2]
		}
		if err := buf.Replace(pending.Span{Start: start, End: end}, text); err != nil {
			fmt.Printf("edit error: %v\n", err)
			return
		}
		fmt.Printf("document now %d bytes, %d pending\n", len(buf.Text()), eng.Store().Len())

	case "text":
		fmt.Println(buf.Text())

	case "save":
		if err := os.WriteFile(docPath, []byte(buf.Text()), 0644); err != nil {
			fmt.Printf("save error: %v\n", err)
			return
		}
		fmt.Printf("wrote %s (%d bytes)\n", docPath, len(buf.Text()))

	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
}

// resolveOpArg accepts either a list index from `pending` or a full op id.
func resolveOpArg(eng *engine.Engine, arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		fmt.Println("missing operation id or index")
		return "", false
	}
	if n, err := strconv.Atoi(arg); err == nil {
		ops := eng.Store().List()
		if n < 0 || n >= len(ops) {
			fmt.Printf("index %d out of range (%d pending)\n", n, len(ops))
			return "", false
		}
		return ops[n].ID, true
	}
	return arg, true
}

func printOp(i int, op pending.Operation, doc string) {
	flag := ""
	if op.LowConfidence {
		flag = " LOW"
	}
	preview := op.OriginalText
	if op.Kind == pending.KindInsertAfter && op.Range.Valid(len(doc)) {
		preview = "(insert)"
	}
	fmt.Printf("[%d] %s %s [%d,%d) conf=%.2f/%s%s\n      %q -> %q\n",
		i, op.ID, op.Kind, op.Range.Start, op.Range.End, op.Confidence, op.Strategy, flag,
		truncate(preview, 40), truncate(op.ProposedText, 40))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
// #endregion commands

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers

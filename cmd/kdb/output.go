package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/disiqueira/gotree/v3"
	"github.com/viant/kdb/history"
	"github.com/viant/kdb/service"
	"golang.org/x/term"
)

// newProgressPrinter rewrites a single stderr line when stderr is a terminal.
func newProgressPrinter(enabled bool) func(done, total int) {
	if !enabled || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	lastLen := 0
	last := time.Time{}
	return func(done, total int) {
		if done != total && time.Since(last) < 200*time.Millisecond {
			return
		}
		last = time.Now()
		line := fmt.Sprintf("ingest %d/%d", done, total)
		if lastLen > len(line) {
			line += strings.Repeat(" ", lastLen-len(line))
		}
		lastLen = len(line)
		fmt.Fprintf(os.Stderr, "\r%s", line)
		if done == total {
			fmt.Fprintln(os.Stderr)
			lastLen = 0
		}
	}
}

func printSummary(w io.Writer, result *service.IngestResult) {
	s := result.Summary
	tree := gotree.New(fmt.Sprintf("%s %s", s.Library, s.Total))
	for _, name := range s.GroupNames() {
		label := name
		if label == "" {
			label = "(root)"
		}
		tree.Add(fmt.Sprintf("%s %s", label, s.Groups[name]))
	}
	fmt.Fprint(w, tree.Print())
	fmt.Fprintf(w, "ledger=%s entries=%d elapsed=%s", result.LedgerPath, result.LedgerEntries, s.Duration.Round(time.Millisecond))
	if result.RunID != "" {
		fmt.Fprintf(w, " run=%s", result.RunID)
	}
	fmt.Fprintln(w)
}

func printHistory(w io.Writer, passes []history.Pass) {
	for _, p := range passes {
		status := "complete"
		if p.Cancelled {
			status = "interrupted"
		}
		fmt.Fprintf(w, "%s %s %s %s %s elapsed=%s\n",
			p.StartedAt.Format(time.RFC3339), p.RunID, p.Library, status, p.Counts, p.Duration)
	}
}

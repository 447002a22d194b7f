package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/config"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/storage"
)

// printResult writes issues grouped as errors then warnings, followed by a
// one-line summary.
func printResult(w io.Writer, r report.Result) {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	for _, issue := range r.Errors {
		fmt.Fprintf(w, "%s %s\n", red("✗"), issue)
		printExpectation(w, issue, gray)
	}
	for _, issue := range r.Warnings {
		fmt.Fprintf(w, "%s %s\n", yellow("!"), issue)
		printExpectation(w, issue, gray)
	}

	if len(r.Errors)+len(r.Warnings) > 0 {
		fmt.Fprintln(w)
	}
	switch {
	case r.HasErrors():
		fmt.Fprintf(w, "%s FAIL: %d error(s), %d warning(s)\n", red("✗"), len(r.Errors), len(r.Warnings))
	case r.HasWarnings():
		fmt.Fprintf(w, "%s PASS with %d warning(s)\n", yellow("!"), len(r.Warnings))
	default:
		fmt.Fprintf(w, "%s PASS\n", green("✓"))
	}
}

func printExpectation(w io.Writer, issue report.Issue, gray func(...interface{}) string) {
	if issue.Expected != "" {
		fmt.Fprintf(w, "    %s %s\n", gray("expected:"), issue.Expected)
	}
	if issue.Found != "" {
		fmt.Fprintf(w, "    %s %s\n", gray("found:"), issue.Found)
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// recordRun appends run to the history database when history is enabled.
// Failures are reported as warnings; they never change the exit status.
func recordRun(ctx context.Context, cfg *config.Config, run *storage.Run) {
	if !cfg.History.Enabled {
		return
	}
	h, err := storage.OpenHistory(ctx, cfg.Resolve(cfg.History.Path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: run history unavailable: %v\n", err)
		return
	}
	defer func() { _ = h.Close() }()

	if err := h.Record(ctx, run); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	if cfg.History.MaxRuns > 0 {
		if _, err := h.Prune(ctx, cfg.History.MaxRuns); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent validate and coverage runs",
	Long: `List runs recorded in the history database, newest first.

Examples:
  cpt history                     # Show last 20 runs
  cpt history -n 50               # Show last 50 runs
  cpt history --command coverage  # Show only coverage runs`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		command, _ := cmd.Flags().GetString("command")

		cfg := loadConfig()
		if !cfg.History.Enabled {
			fmt.Fprintf(os.Stderr, "Error: run history is disabled (history.enabled: false)\n")
			os.Exit(1)
		}

		ctx := context.Background()
		h, err := storage.OpenHistory(ctx, cfg.Resolve(cfg.History.Path))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = h.Close() }()

		runs, err := h.Recent(ctx, command, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching runs: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet")
			return
		}
		for _, run := range runs {
			fmt.Println(formatRun(run))
		}
	},
}

// formatRun renders one history row.
func formatRun(run storage.Run) string {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	status := green("✓")
	if !run.Passed {
		status = red("✗")
	}
	line := fmt.Sprintf("%s %s  %-8s  %d error(s), %d warning(s)",
		status, run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Command, run.Errors, run.Warnings)
	if run.Coverage != nil {
		line += fmt.Sprintf("  coverage %.1f%%", *run.Coverage)
	}
	if run.Granularity != nil {
		line += fmt.Sprintf("  granularity %.2f", *run.Granularity)
	}
	return line + "  " + gray(run.Duration().Round(time.Millisecond).String())
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().String("command", "", "Only show runs of this command (validate, coverage)")
}

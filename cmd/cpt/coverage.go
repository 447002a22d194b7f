package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/coverage"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/storage"
)

var (
	coverageJSON           bool
	coverageSystem         string
	coverageMinCoverage    float64
	coverageMinGranularity float64
	coverageVerbose        bool
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Measure how much code is covered by @cpt markers",
	Long: `Scan each system's codebase and report the share of effective lines
(non-blank, non-comment) covered by scope or block markers, plus a
granularity score that rewards many small blocks over a few large ones.

Thresholds default to scan.min_coverage and scan.min_granularity in the
project file; 0 disables a threshold. Files that are covered but coarse
(granularity below 0.3) are flagged as warnings.

Examples:
  cpt coverage
  cpt coverage --system billing --min-coverage 60
  cpt coverage --json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := context.Background()
		started := time.Now()

		minCoverage := cfg.Scan.MinCoverage
		if cmd.Flags().Changed("min-coverage") {
			minCoverage = coverageMinCoverage
		}
		minGranularity := cfg.Scan.MinGranularity
		if cmd.Flags().Changed("min-granularity") {
			minGranularity = coverageMinGranularity
		}

		rep, result, err := coverageProject(ctx, cfg, coverageSystem)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		result.Merge(rep.Check(minCoverage, minGranularity))
		result.Sort()

		pct, gran := rep.CoveragePct, rep.GranularityScore
		recordRun(ctx, cfg, &storage.Run{
			Command:     "coverage",
			Target:      configPath,
			StartedAt:   started,
			CompletedAt: time.Now(),
			Passed:      result.IsValid(),
			Errors:      len(result.Errors),
			Warnings:    len(result.Warnings),
			Coverage:    &pct,
			Granularity: &gran,
		})

		if coverageJSON {
			printJSON(map[string]interface{}{
				"summary":  rep,
				"errors":   result.Errors,
				"warnings": result.Warnings,
			})
		} else {
			printCoverage(rep, coverageVerbose)
			printResult(os.Stdout, result)
		}
		if result.HasErrors() {
			os.Exit(1)
		}
	},
}

func printCoverage(rep *coverage.Report, verbose bool) {
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if verbose {
		flagged := make(map[string]bool, len(rep.FlaggedFiles))
		for _, p := range rep.FlaggedFiles {
			flagged[p] = true
		}
		for _, f := range rep.Files {
			mark := " "
			if flagged[f.Path] {
				mark = yellow("!")
			}
			fmt.Printf("%s %6.1f%%  %4d/%-4d  g=%.2f  %s\n",
				mark, f.CoveragePct, f.CoveredLines, f.EffectiveLines, f.Granularity, f.Path)
		}
		fmt.Println()
	}

	fmt.Printf("%s Coverage: %s (%d of %d effective lines in %d file(s))\n",
		cyan("▶"), cyan(fmt.Sprintf("%.1f%%", rep.CoveragePct)), rep.CoveredLines, rep.EffectiveLines, len(rep.Files))
	fmt.Printf("%s Granularity: %s\n", cyan("▶"), cyan(fmt.Sprintf("%.2f", rep.GranularityScore)))
	fmt.Printf("  %s\n\n", gray(fmt.Sprintf("%d flagged file(s)", len(rep.FlaggedFiles))))
}

func init() {
	rootCmd.AddCommand(coverageCmd)
	coverageCmd.Flags().BoolVar(&coverageJSON, "json", false, "Print the report as JSON")
	coverageCmd.Flags().StringVar(&coverageSystem, "system", "", "Only scan this system slug")
	coverageCmd.Flags().Float64Var(&coverageMinCoverage, "min-coverage", 0, "Minimum coverage percent (overrides scan.min_coverage)")
	coverageCmd.Flags().Float64Var(&coverageMinGranularity, "min-granularity", 0, "Minimum granularity 0-1 (overrides scan.min_granularity)")
	coverageCmd.Flags().BoolVarP(&coverageVerbose, "verbose", "v", false, "List every file")
}

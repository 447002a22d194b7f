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

var (
	validateJSON     bool
	validateSkipCode bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate artifacts and code markers against the compiled constraints",
	Long: `Validate every configured artifact against the constraints produced by
'cpt generate', then parse each system's codebase markers and cross-check
them against the identifiers the artifacts define.

All checks run; the command exits 1 when any error was found. Warnings do
not change the exit status.

Examples:
  cpt validate
  cpt validate --json
  cpt validate --skip-code`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		ctx := context.Background()
		started := time.Now()

		p, err := openProject(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		result, err := validateProject(ctx, p, validateOptions{SkipCode: validateSkipCode})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		recordRun(ctx, cfg, &storage.Run{
			Command:     "validate",
			Target:      configPath,
			StartedAt:   started,
			CompletedAt: time.Now(),
			Passed:      result.IsValid(),
			Errors:      len(result.Errors),
			Warnings:    len(result.Warnings),
		})

		if validateJSON {
			status := "PASS"
			if result.HasErrors() {
				status = "FAIL"
			}
			printJSON(map[string]interface{}{
				"status":        status,
				"error_count":   len(result.Errors),
				"warning_count": len(result.Warnings),
				"errors":        result.Errors,
				"warnings":      result.Warnings,
			})
		} else {
			cyan := color.New(color.FgCyan).SprintFunc()
			fmt.Printf("%s Validating %d system(s)\n\n", cyan("▶"), len(cfg.Systems))
			printResult(os.Stdout, result)
		}
		if result.HasErrors() {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the result as JSON")
	validateCmd.Flags().BoolVar(&validateSkipCode, "skip-code", false, "Only validate artifacts")
}

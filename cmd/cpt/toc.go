package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/toc"
)

var (
	tocHeadingMode bool
	tocMinLevel    int
	tocMaxLevel    int
	tocNumbered    bool
	tocSkipFirst   bool
	tocJSON        bool
)

var tocCmd = &cobra.Command{
	Use:   "toc FILE...",
	Short: "Generate or refresh the table of contents of Markdown files",
	Long: `Insert or replace a table of contents in each file.

By default the list lives between <!-- toc --> and <!-- /toc --> markers,
inserted after the first level-1 heading when the markers are missing.
With --heading it lives under a "## Table of Contents" heading instead,
the convention generated kit documents use.

Files are only rewritten when their content changes.

Examples:
  cpt toc README.md
  cpt toc --heading --numbered architecture/PRD.md`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := tocOptions()
		mode := toc.ModeMarkers
		if tocHeadingMode {
			mode = toc.ModeHeading
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		failed := false
		for _, path := range args {
			status, err := toc.UpdateFile(path, mode, opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				failed = true
				continue
			}
			if status == toc.StatusUpdated {
				fmt.Printf("%s %s\n", green("✓"), path)
			} else {
				fmt.Printf("%s %s %s\n", gray("-"), path, gray("(unchanged)"))
			}
		}
		if failed {
			os.Exit(1)
		}
	},
}

var validateTOCCmd = &cobra.Command{
	Use:   "validate-toc FILE...",
	Short: "Check that tables of contents are present, fresh and anchored",
	Long: `Validate the table of contents of each file: it must exist, list the
document's current headings, and every anchor must resolve to a heading.

Examples:
  cpt validate-toc README.md docs/*.md
  cpt validate-toc --json README.md`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := validateTOCFiles(args, tocOptions())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if tocJSON {
			printJSON(result)
		} else {
			printResult(os.Stdout, result)
		}
		if result.HasErrors() {
			os.Exit(1)
		}
	},
}

func tocOptions() toc.Options {
	opts := toc.DefaultOptions()
	opts.MinLevel = tocMinLevel
	opts.MaxLevel = tocMaxLevel
	opts.Numbered = tocNumbered
	opts.SkipFirst = tocSkipFirst
	return opts
}

func validateTOCFiles(paths []string, opts toc.Options) (report.Result, error) {
	result := report.NewResult()
	for _, path := range paths {
		r, err := toc.ValidateFile(path, opts)
		if err != nil {
			return result, err
		}
		result.Merge(r)
	}
	result.Sort()
	return result, nil
}

func init() {
	rootCmd.AddCommand(tocCmd)
	rootCmd.AddCommand(validateTOCCmd)

	for _, c := range []*cobra.Command{tocCmd, validateTOCCmd} {
		c.Flags().IntVar(&tocMinLevel, "min-level", 2, "Shallowest heading level listed")
		c.Flags().IntVar(&tocMaxLevel, "max-level", 6, "Deepest heading level listed")
		c.Flags().BoolVar(&tocNumbered, "numbered", false, "Render a numbered list")
		c.Flags().BoolVar(&tocSkipFirst, "skip-first", false, "Treat the first heading as the title and leave it out")
	}
	tocCmd.Flags().BoolVar(&tocHeadingMode, "heading", false, "Use a \"## Table of Contents\" section instead of markers")
	validateTOCCmd.Flags().BoolVar(&tocJSON, "json", false, "Print the result as JSON")
}

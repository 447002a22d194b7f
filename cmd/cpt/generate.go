package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/blueprint"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/config"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/generate"
)

var (
	generateKit    string
	generateDryRun bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate kits and compile constraints from blueprints",
	Long: `Parse every *.md blueprint under the blueprint directory, write one kit per
kit slug under {output_dir}/kits/{slug}, and compile the artifact blueprints
into the constraints file used by 'cpt validate'.

Blueprints with parse errors stop the run before anything is written.

Examples:
  cpt generate
  cpt generate --kit sdlc
  cpt generate --dry-run`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		res, err := generateProject(cfg, generateOptions{Kit: generateKit, DryRun: generateDryRun})
		if res != nil {
			for _, msg := range res.ParseErrors {
				fmt.Printf("%s %s\n", red("✗"), msg)
			}
			for _, msg := range res.Warnings {
				fmt.Printf("%s %s\n", yellow("!"), msg)
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		verb := "Generated"
		if generateDryRun {
			verb = "Would generate"
		}
		for _, kit := range res.Kits {
			fmt.Printf("\n%s %s kit %s\n", green("✓"), verb, cyan(kit.Slug))
			fmt.Printf("  %s %s\n", gray("dir:"), kit.Dir)
			for _, f := range kit.Files {
				fmt.Printf("  %s %s\n", gray("▶"), f)
			}
		}
		if res.ConstraintsPath != "" {
			fmt.Printf("\n%s %s constraints for %d artifact kind(s): %s\n", green("✓"), verb, res.Kinds, cyan(res.ConstraintsPath))
		}
	},
}

type generateOptions struct {
	Kit    string // only this kit slug; empty means all
	DryRun bool
}

type kitSummary struct {
	Slug  string
	Dir   string
	Files []string
}

type generateSummary struct {
	Blueprints      int
	ParseErrors     []string
	Warnings        []string
	Kits            []kitSummary
	ConstraintsPath string
	Kinds           int
}

// findBlueprints returns the *.md files under dir in sorted order.
func findBlueprints(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("blueprint directory: %w", err)
	}
	paths, err := doublestar.FilepathGlob(filepath.Join(dir, "**", "*.md"))
	if err != nil {
		return nil, fmt.Errorf("listing blueprints: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// generateProject parses, builds and writes everything 'cpt generate'
// produces. Constraints are compiled from all blueprints even when only one
// kit is selected.
func generateProject(cfg *config.Config, opts generateOptions) (*generateSummary, error) {
	paths, err := findBlueprints(cfg.Resolve(cfg.Blueprints))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no blueprints found in %s", cfg.Resolve(cfg.Blueprints))
	}

	sum := &generateSummary{Blueprints: len(paths)}
	var bps []*blueprint.ParsedBlueprint
	for _, p := range paths {
		bp, err := blueprint.ParseFile(p)
		if err != nil {
			return sum, err
		}
		for _, msg := range bp.Errors {
			sum.ParseErrors = append(sum.ParseErrors, fmt.Sprintf("%s: %s", p, msg))
		}
		for _, msg := range bp.Warnings {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s: %s", p, msg))
		}
		bps = append(bps, bp)
	}
	if len(sum.ParseErrors) > 0 {
		return sum, fmt.Errorf("%d blueprint parse error(s)", len(sum.ParseErrors))
	}

	groups := generate.GroupByKit(bps, cfg.Kit)
	slugs := make([]string, 0, len(groups))
	for slug := range groups {
		if opts.Kit == "" || opts.Kit == slug {
			slugs = append(slugs, slug)
		}
	}
	if len(slugs) == 0 {
		return sum, fmt.Errorf("no blueprints belong to kit %q", opts.Kit)
	}
	sort.Strings(slugs)

	outputDir := cfg.Resolve(cfg.OutputDir)
	for _, slug := range slugs {
		kit, err := generate.BuildKit(slug, groups[slug])
		if err != nil {
			return sum, fmt.Errorf("kit %s: %w", slug, err)
		}
		if opts.DryRun {
			sum.Warnings = append(sum.Warnings, kit.Warnings...)
			sum.Kits = append(sum.Kits, kitSummary{Slug: slug, Dir: generate.KitDir(outputDir, slug), Files: kit.Paths()})
			continue
		}
		res, err := generate.Write(outputDir, kit)
		if err != nil {
			return sum, fmt.Errorf("kit %s: %w", slug, err)
		}
		sum.Warnings = append(sum.Warnings, res.Warnings...)
		sum.Kits = append(sum.Kits, kitSummary{Slug: slug, Dir: res.Dir, Files: res.Files})
	}

	doc, err := blueprint.Compile(bps)
	if err != nil {
		return sum, err
	}
	sum.Kinds = len(doc.Artifacts)
	sum.ConstraintsPath = cfg.Resolve(cfg.Constraints)
	if !opts.DryRun {
		if err := constraints.Save(sum.ConstraintsPath, doc); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&generateKit, "kit", "", "Only generate this kit slug")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Show what would be written without writing")
}

// Package coverage measures how much of a codebase is tagged with cpt
// markers and how finely.
//
// A scope marker covers every effective line of its file. A block marker
// covers the effective lines between its begin and end. Granularity
// rewards many small blocks: n / (n + L/10) for n blocks spanning L
// effective lines, and 0 for files covered only by scope markers.
package coverage

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/codebase"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// FlagGranularity is the bar below which a covered file is flagged.
const FlagGranularity = 0.3

// LineRange is an inclusive 1-based line span.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// FileCoverage is the result for one file.
type FileCoverage struct {
	Path           string  `json:"path"`
	TotalLines     int     `json:"total_lines"`
	EffectiveLines int     `json:"effective_lines"`
	CoveredLines   int     `json:"covered_lines"`
	CoveragePct    float64 `json:"coverage_pct"`
	Granularity    float64 `json:"granularity"`
	HasScopeOnly   bool    `json:"has_scope_only"`
	ScopeMarkers   int     `json:"scope_markers"`
	BlockMarkers   int     `json:"block_markers"`

	// Ranges are runs of effective lines; non-effective lines inside a
	// run neither extend nor break it.
	CoveredRanges   []LineRange `json:"covered_ranges"`
	UncoveredRanges []LineRange `json:"uncovered_ranges"`
}

// Report aggregates file results. Percentages are weighted by file size.
type Report struct {
	Files            []FileCoverage `json:"files"`
	EffectiveLines   int            `json:"effective_lines"`
	CoveredLines     int            `json:"covered_lines"`
	CoveragePct      float64        `json:"coverage_pct"`
	GranularityScore float64        `json:"granularity_score"`
	FlaggedFiles     []string       `json:"flagged_files"`
}

type commentSyntax struct {
	line       []string
	blockStart string
	blockEnd   string
}

var (
	cStyle    = commentSyntax{line: []string{"//"}, blockStart: "/*", blockEnd: "*/"}
	hashStyle = commentSyntax{line: []string{"#"}}
	sqlStyle  = commentSyntax{line: []string{"--"}, blockStart: "/*", blockEnd: "*/"}
	htmlStyle = commentSyntax{blockStart: "<!--", blockEnd: "-->"}
)

var commentSyntaxes = map[string]commentSyntax{
	".go": cStyle, ".c": cStyle, ".h": cStyle, ".cc": cStyle, ".cpp": cStyle, ".hpp": cStyle,
	".java": cStyle, ".kt": cStyle, ".scala": cStyle, ".swift": cStyle, ".cs": cStyle,
	".js": cStyle, ".jsx": cStyle, ".ts": cStyle, ".tsx": cStyle, ".rs": cStyle,
	".php": cStyle, ".css": cStyle, ".scss": cStyle, ".proto": cStyle,
	".py":   {line: []string{"#"}, blockStart: `"""`, blockEnd: `"""`},
	".rb":   hashStyle, ".sh": hashStyle, ".bash": hashStyle, ".zsh": hashStyle,
	".yaml": hashStyle, ".yml": hashStyle, ".toml": hashStyle, ".r": hashStyle, ".pl": hashStyle,
	".sql":  sqlStyle,
	".lua":  {line: []string{"--"}, blockStart: "--[[", blockEnd: "]]"},
	".hs":   {line: []string{"--"}, blockStart: "{-", blockEnd: "-}"},
	".html": htmlStyle, ".xml": htmlStyle, ".md": htmlStyle,
}

// effectiveLines marks each line (index 0 = line 1) as effective or not.
// Unknown extensions only treat blank lines as non-effective.
func effectiveLines(path string, lines []string) []bool {
	syntax, known := commentSyntaxes[strings.ToLower(filepath.Ext(path))]
	out := make([]bool, len(lines))
	inBlock := false
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if !known {
			out[i] = true
			continue
		}
		if inBlock {
			if strings.Contains(t, syntax.blockEnd) {
				inBlock = false
			}
			continue
		}
		if isLineComment(t, syntax.line) {
			continue
		}
		if syntax.blockStart != "" && strings.HasPrefix(t, syntax.blockStart) {
			rest := t[len(syntax.blockStart):]
			if !strings.Contains(rest, syntax.blockEnd) {
				inBlock = true
			}
			continue
		}
		out[i] = true
	}
	return out
}

func isLineComment(t string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// FileFromCode computes coverage for a parsed code file. Unmatched blocks
// are not materialized by the parser and so cover nothing.
func FileFromCode(f *codebase.CodeFile) FileCoverage {
	lines := f.Lines()
	eff := effectiveLines(f.Path, lines)
	fc := FileCoverage{Path: f.Path, TotalLines: len(lines)}
	for _, e := range eff {
		if e {
			fc.EffectiveLines++
		}
	}

	blocks := f.Blocks()
	fc.BlockMarkers = len(blocks)
	fc.ScopeMarkers = len(f.Scopes())
	inBlock := make([]bool, len(lines))
	for _, b := range blocks {
		for n := b.StartLine; n <= b.EndLine && n <= len(lines); n++ {
			inBlock[n-1] = true
		}
	}
	blockLines := 0
	for i := range lines {
		if inBlock[i] && eff[i] {
			blockLines++
		}
	}

	covered := inBlock
	switch {
	case fc.ScopeMarkers > 0:
		fc.CoveredLines = fc.EffectiveLines
		fc.HasScopeOnly = len(blocks) == 0
		covered = eff
	default:
		fc.CoveredLines = blockLines
	}
	fc.CoveredRanges, fc.UncoveredRanges = lineRanges(eff, covered)

	if fc.EffectiveLines > 0 {
		fc.CoveragePct = float64(fc.CoveredLines) / float64(fc.EffectiveLines) * 100
	}
	if !fc.HasScopeOnly && fc.CoveredLines > 0 && len(blocks) > 0 {
		fc.Granularity = Granularity(len(blocks), blockLines)
	}
	return fc
}

// lineRanges merges effective lines into covered and uncovered runs.
func lineRanges(eff, covered []bool) (cov, uncov []LineRange) {
	cov, uncov = make([]LineRange, 0), make([]LineRange, 0)
	var cur *[]LineRange
	for i, e := range eff {
		if !e {
			continue
		}
		n := i + 1
		target := &uncov
		if covered[i] {
			target = &cov
		}
		if target == cur {
			(*cur)[len(*cur)-1].End = n
			continue
		}
		*target = append(*target, LineRange{Start: n, End: n})
		cur = target
	}
	return cov, uncov
}

// Granularity scores n blocks spanning l effective lines. For a fixed span
// it grows with n.
func Granularity(n, l int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) / (float64(n) + float64(l)/10)
}

// Aggregate combines file results. Coverage is total covered over total
// effective lines; granularity is weighted by covered lines and is 0 when
// nothing is covered.
func Aggregate(files []FileCoverage) *Report {
	r := &Report{Files: files, FlaggedFiles: make([]string, 0)}
	var weighted float64
	for _, f := range files {
		r.EffectiveLines += f.EffectiveLines
		r.CoveredLines += f.CoveredLines
		weighted += f.Granularity * float64(f.CoveredLines)
		if f.CoveredLines > 0 && f.Granularity < FlagGranularity {
			r.FlaggedFiles = append(r.FlaggedFiles, f.Path)
		}
	}
	if r.EffectiveLines > 0 {
		r.CoveragePct = float64(r.CoveredLines) / float64(r.EffectiveLines) * 100
	}
	if r.CoveredLines > 0 {
		r.GranularityScore = weighted / float64(r.CoveredLines)
	}
	sort.Strings(r.FlaggedFiles)
	return r
}

// ScanFile computes coverage for one file on disk.
func ScanFile(path string) (FileCoverage, error) {
	f, err := codebase.LoadCodeFile(path)
	if err != nil {
		return FileCoverage{}, err
	}
	return FileFromCode(f), nil
}

// Scan loads the files through the cache with at most workers goroutines and
// aggregates their coverage. Files are reported in path order.
func Scan(ctx context.Context, cache *codebase.Cache, paths []string, workers int) (*Report, error) {
	files, err := cache.LoadAll(ctx, paths, workers)
	if err != nil {
		return nil, fmt.Errorf("scanning coverage: %w", err)
	}
	results := make([]FileCoverage, len(files))
	for i, f := range files {
		results[i] = FileFromCode(f)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return Aggregate(results), nil
}

// Check compares the report against minimum thresholds (percent for
// coverage, 0..1 for granularity; zero disables a check). Flagged files
// become warnings.
func (r *Report) Check(minCoverage, minGranularity float64) report.Result {
	result := report.NewResult()
	if minCoverage > 0 && r.CoveragePct < minCoverage {
		result.AddError(report.Issue{
			Code:     "coverage-below-threshold",
			Message:  fmt.Sprintf("coverage %.1f%% is below the required %.1f%%", r.CoveragePct, minCoverage),
			Expected: fmt.Sprintf("%.1f", minCoverage),
			Found:    fmt.Sprintf("%.1f", r.CoveragePct),
		})
	}
	if minGranularity > 0 && r.GranularityScore < minGranularity {
		result.AddError(report.Issue{
			Code:     "granularity-below-threshold",
			Message:  fmt.Sprintf("granularity %.2f is below the required %.2f", r.GranularityScore, minGranularity),
			Expected: fmt.Sprintf("%.2f", minGranularity),
			Found:    fmt.Sprintf("%.2f", r.GranularityScore),
		})
	}
	for _, path := range r.FlaggedFiles {
		result.AddWarning(report.Issue{
			Code:    "granularity-low",
			Message: fmt.Sprintf("covered by few large markers (granularity < %.1f)", FlagGranularity),
			Path:    path,
		})
	}
	return result
}

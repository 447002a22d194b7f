// Package toc builds, inserts and validates Markdown tables of contents.
//
// Two insertion conventions exist. Marker mode wraps the list in
// <!-- toc --> / <!-- /toc --> comments and is meant for hand-written
// documents. Heading mode keeps the list under a "## Table of Contents"
// heading and is what generated kit documents use.
package toc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/markers"
)

// Heading is one ATX heading found outside fenced code.
type Heading struct {
	Level  int
	Text   string
	Line   int // 1-based
	Anchor string
}

// Options controls which headings are listed and how the list is drawn.
type Options struct {
	MinLevel       int
	MaxLevel       int
	SkipFirst      bool // treat the first heading as the document title
	SkipTOCHeading bool // ignore headings named "Table of Contents" or "TOC"
	Numbered       bool
	Indent         int
}

// DefaultOptions lists levels 2-6 as a flat bulleted list.
func DefaultOptions() Options {
	return Options{
		MinLevel:       2,
		MaxLevel:       6,
		SkipTOCHeading: true,
		Indent:         2,
	}
}

var (
	atxRe           = regexp.MustCompile(`^ {0,3}(#{1,6})(?:[ \t]+(.*?))?[ \t]*$`)
	closingHashesRe = regexp.MustCompile(`(?:^|[ \t]+)#+$`)
)

// ParseHeading parses an ATX heading line. Empty headings are not headings.
func ParseHeading(line string) (level int, text string, ok bool) {
	m := atxRe.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	text = strings.TrimSpace(closingHashesRe.ReplaceAllString(m[2], ""))
	if text == "" {
		return 0, "", false
	}
	return len(m[1]), text, true
}

// IsTOCHeading reports whether text names a table of contents.
func IsTOCHeading(text string) bool {
	t := strings.ToLower(strings.TrimSpace(stripInline(text)))
	return t == "table of contents" || t == "toc"
}

// AllHeadings returns every heading in content with its unique anchor.
// Fenced code and HTML comments are opaque.
func AllHeadings(content string) []Heading {
	return scanHeadings(markers.SplitLines(content))
}

// ExtractHeadings returns the headings a TOC should list under opts.
// Anchors are computed over the whole document, so duplicate suffixes match
// what a renderer produces even when some headings are filtered out.
func ExtractHeadings(content string, opts Options) []Heading {
	return filterHeadings(AllHeadings(content), opts)
}

func scanHeadings(lines []string) []Heading {
	var (
		fences    markers.FenceTracker
		inComment bool
		anchors   = NewAnchorSet()
		out       []Heading
	)
	for i, line := range lines {
		if ev := fences.Feed(line, i+1); ev != markers.FenceNone || fences.InFence() {
			continue
		}
		if inComment {
			if strings.Contains(line, "-->") {
				inComment = false
			}
			continue
		}
		if idx := strings.Index(line, "<!--"); idx >= 0 && !strings.Contains(line[idx:], "-->") {
			inComment = true
			continue
		}
		level, text, ok := ParseHeading(line)
		if !ok {
			continue
		}
		out = append(out, Heading{Level: level, Text: text, Line: i + 1, Anchor: anchors.Add(text)})
	}
	return out
}

func filterHeadings(all []Heading, opts Options) []Heading {
	minLevel, maxLevel := opts.MinLevel, opts.MaxLevel
	if minLevel < 1 {
		minLevel = 1
	}
	if maxLevel < 1 || maxLevel > 6 {
		maxLevel = 6
	}

	var out []Heading
	for i, h := range all {
		if opts.SkipFirst && i == 0 {
			continue
		}
		if h.Level < minLevel || h.Level > maxLevel {
			continue
		}
		if opts.SkipTOCHeading && IsTOCHeading(h.Text) {
			continue
		}
		out = append(out, h)
	}
	return out
}

var (
	linkRe    = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	dropRe    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{Pc}\s-]`)
	spaceRe   = regexp.MustCompile(`\s+`)
	hyphensRe = regexp.MustCompile(`-{2,}`)

	inlineMarks = strings.NewReplacer("*", "", "`", "", "~", "")
)

func stripInline(text string) string {
	return inlineMarks.Replace(linkRe.ReplaceAllString(text, "$1"))
}

// Slugify turns heading text into a renderer-compatible anchor.
// Underscores are word characters and survive.
func Slugify(text string) string {
	s := strings.ToLower(stripInline(text))
	s = dropRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), "-")
	s = hyphensRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// AnchorSet hands out unique anchors: the second "Setup" becomes "setup-1",
// the third "setup-2".
type AnchorSet struct {
	used  map[string]bool
	count map[string]int
}

// NewAnchorSet returns an empty set.
func NewAnchorSet() *AnchorSet {
	return &AnchorSet{used: make(map[string]bool), count: make(map[string]int)}
}

// Add slugifies text and returns the first unused anchor for it.
func (a *AnchorSet) Add(text string) string {
	base := Slugify(text)
	anchor := base
	for a.used[anchor] {
		a.count[base]++
		anchor = fmt.Sprintf("%s-%d", base, a.count[base])
	}
	a.used[anchor] = true
	return anchor
}

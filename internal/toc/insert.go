package toc

import (
	"regexp"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/markers"
)

const (
	MarkerStart    = "<!-- toc -->"
	MarkerEnd      = "<!-- /toc -->"
	SectionHeading = "## Table of Contents"

	// ToolNote heads every heading-mode section so readers know how to
	// refresh it.
	ToolNote = "<!-- Regenerate with `cpt toc --heading` after editing headings; check with `cpt validate-toc`. -->"
)

// region is an existing TOC: lines [start, end) are the whole section,
// [bodyStart, bodyEnd) the list between heading/markers and the end.
type region struct {
	start, end         int
	bodyStart, bodyEnd int
}

var listItemRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s`)

func blank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func findMarkerRegion(lines []string) (region, bool) {
	var fences markers.FenceTracker
	start := -1
	for i, line := range lines {
		if ev := fences.Feed(line, i+1); ev != markers.FenceNone || fences.InFence() {
			continue
		}
		t := strings.TrimSpace(line)
		if start < 0 && t == MarkerStart {
			start = i
			continue
		}
		if start >= 0 && t == MarkerEnd {
			return region{start: start, end: i + 1, bodyStart: start + 1, bodyEnd: i}, true
		}
	}
	return region{}, false
}

// findHeadingRegion locates a "## Table of Contents" section. The section
// ends at the next heading, a "---" line, an HTML comment other than
// ToolNote, or the first line that cannot be part of a list.
func findHeadingRegion(lines []string) (region, bool) {
	var fences markers.FenceTracker
	for i, line := range lines {
		if ev := fences.Feed(line, i+1); ev != markers.FenceNone || fences.InFence() {
			continue
		}
		level, text, ok := ParseHeading(line)
		if !ok || level != 2 || !IsTOCHeading(text) {
			continue
		}
		j := i + 1
		for ; j < len(lines); j++ {
			l := lines[j]
			t := strings.TrimSpace(l)
			if t == "" || t == ToolNote {
				continue
			}
			// Any other comment belongs to the content after the TOC.
			if strings.HasPrefix(t, "<!--") {
				break
			}
			if _, _, isHeading := ParseHeading(l); isHeading || t == "---" {
				break
			}
			if listItemRe.MatchString(l) || strings.HasPrefix(l, " ") || strings.HasPrefix(l, "\t") {
				continue
			}
			break
		}
		return region{start: i, end: j, bodyStart: i + 1, bodyEnd: j}, true
	}
	return region{}, false
}

func splice(lines []string, start, end int, repl []string) []string {
	out := make([]string, 0, len(lines)-(end-start)+len(repl))
	out = append(out, lines[:start]...)
	out = append(out, repl...)
	return append(out, lines[end:]...)
}

// pad surrounds block with blank lines where its neighbours at [at-1] and
// [next] are not blank already.
func pad(lines []string, at, next int, block []string) []string {
	out := block
	if at > 0 && !blank(lines[at-1]) {
		out = append([]string{""}, out...)
	}
	if next < len(lines) && !blank(lines[next]) {
		out = append(out, "")
	}
	return out
}

func joinLike(lines []string, original string) string {
	s := strings.Join(lines, "\n")
	if original == "" || strings.HasSuffix(original, "\n") {
		s += "\n"
	}
	return s
}

func bodyLines(body string) []string {
	if body == "" {
		return nil
	}
	return markers.SplitLines(body)
}

// InsertWithMarkers puts body between <!-- toc --> markers. Existing markers
// are refreshed in place. Otherwise any manual "## Table of Contents"
// section is removed and markers go after the first H1, or at the top.
func InsertWithMarkers(content, body string) string {
	lines := markers.SplitLines(content)

	block := []string{MarkerStart}
	if b := bodyLines(body); len(b) > 0 {
		block = append(block, "")
		block = append(block, b...)
		block = append(block, "")
	}
	block = append(block, MarkerEnd)

	if r, ok := findMarkerRegion(lines); ok {
		return joinLike(splice(lines, r.start, r.end, block), content)
	}
	if r, ok := findHeadingRegion(lines); ok {
		lines = splice(lines, r.start, r.end, nil)
	}

	at := 0
	if h1 := firstHeading(lines, 0, 1); h1 >= 0 {
		at = h1 + 1
		for at < len(lines) && blank(lines[at]) {
			at++
		}
	}
	return joinLike(splice(lines, at, at, pad(lines, at, at, block)), content)
}

// InsertWithHeading puts body under a "## Table of Contents" heading. An
// existing section is replaced. Otherwise the section goes before the first
// "---" after any frontmatter, else after the first heading and its
// metadata lines, else at the top.
func InsertWithHeading(content, body string) string {
	lines := markers.SplitLines(content)

	section := []string{SectionHeading, "", ToolNote}
	if b := bodyLines(body); len(b) > 0 {
		section = append(section, "")
		section = append(section, b...)
	}

	if r, ok := findHeadingRegion(lines); ok {
		next := r.end
		// Trailing blanks belong to the old section; keep exactly one.
		return joinLike(splice(lines, r.start, r.end, pad(lines, r.start, next, section)), content)
	}

	fm := frontmatterEnd(lines)
	at := fm
	if sep := findSeparator(lines, fm); sep >= 0 {
		at = sep
	} else if h := firstHeading(lines, fm, 0); h >= 0 {
		at = afterMetadata(lines, h+1)
	}
	return joinLike(splice(lines, at, at, pad(lines, at, at, section)), content)
}

// firstHeading returns the index of the first heading at or after from,
// outside fences. level 0 accepts any level.
func firstHeading(lines []string, from, level int) int {
	var fences markers.FenceTracker
	for i := from; i < len(lines); i++ {
		if ev := fences.Feed(lines[i], i+1); ev != markers.FenceNone || fences.InFence() {
			continue
		}
		if l, _, ok := ParseHeading(lines[i]); ok && (level == 0 || l == level) {
			return i
		}
	}
	return -1
}

// frontmatterEnd returns the index just past a leading YAML frontmatter
// block, or 0 when there is none.
func frontmatterEnd(lines []string) int {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return i + 1
		}
	}
	return 0
}

func findSeparator(lines []string, from int) int {
	var fences markers.FenceTracker
	for i := from; i < len(lines); i++ {
		if ev := fences.Feed(lines[i], i+1); ev != markers.FenceNone || fences.InFence() {
			continue
		}
		if strings.TrimSpace(lines[i]) == "---" {
			return i
		}
	}
	return -1
}

func isMetadata(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "**") || listItemRe.MatchString(line)
}

// commentEnd returns the index just past the HTML comment starting at j.
func commentEnd(lines []string, j int) (int, bool) {
	if j >= len(lines) || !strings.HasPrefix(strings.TrimSpace(lines[j]), "<!--") {
		return j, false
	}
	for k := j; k < len(lines); k++ {
		if strings.Contains(lines[k], "-->") {
			return k + 1, true
		}
	}
	return len(lines), true
}

// afterMetadata skips bold-line, list-item and HTML comment runs (and the
// blank lines between them) starting at j. Comments keep prompts attached
// to the heading above them.
func afterMetadata(lines []string, j int) int {
	for j < len(lines) {
		if blank(lines[j]) {
			k := j
			for k < len(lines) && blank(lines[k]) {
				k++
			}
			if _, isComment := commentEnd(lines, k); isComment || (k < len(lines) && isMetadata(lines[k])) {
				j = k
				continue
			}
			return j
		}
		if end, ok := commentEnd(lines, j); ok {
			j = end
			continue
		}
		if !isMetadata(lines[j]) {
			return j
		}
		j++
	}
	return j
}

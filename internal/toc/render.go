package toc

import (
	"fmt"
	"strings"
)

// Render draws the TOC list for headings. Indentation is relative to the
// shallowest heading present. In numbered mode only entries at that level
// are numbered; deeper entries are bullets under the preceding number,
// indented past its "N. " prefix.
func Render(headings []Heading, opts Options) string {
	if len(headings) == 0 {
		return ""
	}
	minLevel := headings[0].Level
	for _, h := range headings {
		if h.Level < minLevel {
			minLevel = h.Level
		}
	}
	indent := opts.Indent
	if indent <= 0 {
		indent = 2
	}

	lines := make([]string, 0, len(headings))
	n := 0
	// Children of a numbered item must start past its "N. " prefix to nest.
	prefix := 0
	for _, h := range headings {
		link := fmt.Sprintf("[%s](#%s)", linkRe.ReplaceAllString(h.Text, "$1"), h.Anchor)
		depth := h.Level - minLevel
		if opts.Numbered {
			if depth == 0 {
				n++
				item := fmt.Sprintf("%d. ", n)
				prefix = len(item)
				lines = append(lines, item+link)
				continue
			}
			width := indent * depth
			if n > 0 {
				width = prefix + indent*(depth-1)
			}
			lines = append(lines, strings.Repeat(" ", width)+"- "+link)
			continue
		}
		lines = append(lines, strings.Repeat(" ", indent*depth)+"- "+link)
	}
	return strings.Join(lines, "\n")
}

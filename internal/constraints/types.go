// Package constraints defines the compiled constraints document that ties
// artifact kinds to their heading and identifier rules, and the Catalog
// value every validator receives.
package constraints

import (
	"regexp"
	"sort"
	"strings"
)

// HeadingSpec declares a heading an artifact of some kind is expected to
// carry. Pointer fields are optional: nil means "not declared" and is
// omitted from the serialized document.
type HeadingSpec struct {
	ID          string   `toml:"id"`
	Level       int      `toml:"level"`
	Pattern     string   `toml:"pattern,omitempty"`
	Template    string   `toml:"template,omitempty"`
	Required    *bool    `toml:"required,omitempty"`
	Multiple    *bool    `toml:"multiple,omitempty"`
	Numbered    *bool    `toml:"numbered,omitempty"`
	Description string   `toml:"description,omitempty"`
	Examples    []string `toml:"examples,omitempty"`
}

// IsRequired reports whether the heading must appear. Absent means required.
func (h HeadingSpec) IsRequired() bool {
	return h.Required == nil || *h.Required
}

// AllowsMultiple reports whether the heading may repeat. Absent means yes.
func (h HeadingSpec) AllowsMultiple() bool {
	return h.Multiple == nil || *h.Multiple
}

// IsNumbered reports whether sibling headings at this level carry numbers.
func (h HeadingSpec) IsNumbered() bool {
	return h.Numbered != nil && *h.Numbered
}

// Constructs only a regular expression would use. Parentheses, a lone dot
// or a trailing question mark are common in prose headings and do not
// count on their own.
var regexOnlyRe = regexp.MustCompile(`[\\^$*+\[\]{}|]|\.[*+?]|\(\?`)

// PatternIsLiteral reports whether Pattern is plain heading text rather
// than a regular expression.
func (h HeadingSpec) PatternIsLiteral() bool {
	return !regexOnlyRe.MatchString(h.Pattern)
}

// A numbering prefix needs at least one dot: "1. ", "2.3 ", "2.3. ".
var numberPrefixRe = regexp.MustCompile(`^\d+(?:\.\d+)*\.\s+|^\d+(?:\.\d+)+\s+`)

// StripNumbering removes a leading "1.", "2.3" style prefix from heading text.
func StripNumbering(text string) string {
	return numberPrefixRe.ReplaceAllString(strings.TrimSpace(text), "")
}

var placeholderRe = regexp.MustCompile(`\{[^{}]*\}`)

// templateRegexp compiles a heading template into an anchored,
// case-insensitive expression where each "{placeholder}" matches any
// non-empty text.
func templateRegexp(template string) *regexp.Regexp {
	template = strings.TrimSpace(template)
	var sb strings.Builder
	sb.WriteString("(?i)^")
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(template, -1) {
		sb.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		sb.WriteString(".+")
		last = loc[1]
	}
	sb.WriteString(regexp.QuoteMeta(template[last:]))
	sb.WriteString("$")
	return regexp.MustCompile(sb.String())
}

// Matches reports whether a heading with the given level and text satisfies
// this spec. A pattern first compares case-insensitively as literal text,
// with and without numbering; unless it is plain text it is then matched
// as an anchored regular expression. A template with no pattern matches
// its literal parts, with placeholders standing for any text.
func (h HeadingSpec) Matches(level int, text string) bool {
	if h.Level != 0 && level != h.Level {
		return false
	}
	raw := strings.TrimSpace(text)
	stripped := StripNumbering(text)
	switch {
	case h.Pattern != "":
		pattern := strings.TrimSpace(h.Pattern)
		if strings.EqualFold(stripped, pattern) || strings.EqualFold(raw, pattern) {
			return true
		}
		if h.PatternIsLiteral() {
			return false
		}
		re, err := regexp.Compile("(?i)^(?:" + h.Pattern + ")$")
		if err != nil {
			return false
		}
		return re.MatchString(stripped) || re.MatchString(raw)
	case h.Template != "":
		re := templateRegexp(h.Template)
		return re.MatchString(stripped) || re.MatchString(raw)
	default:
		return true
	}
}

// Describe returns human-readable text for the heading, for issue messages.
func (h HeadingSpec) Describe() string {
	switch {
	case h.Template != "":
		return h.Template
	case h.Pattern != "":
		return h.Pattern
	default:
		return h.ID
	}
}

// ReferenceRule constrains references to an identifier kind that appear in
// one target artifact kind.
type ReferenceRule struct {
	Coverage *bool    `toml:"coverage,omitempty"`
	Task     *bool    `toml:"task,omitempty"`
	Priority *bool    `toml:"priority,omitempty"`
	Headings []string `toml:"headings,omitempty"`
}

// IdentifierSpec declares an identifier kind an artifact kind may define.
type IdentifierSpec struct {
	Kind       string                   `toml:"-"`
	Name       string                   `toml:"-"`
	Required   *bool                    `toml:"required,omitempty"`
	Task       *bool                    `toml:"task,omitempty"`
	Priority   *bool                    `toml:"priority,omitempty"`
	ToCode     *bool                    `toml:"to_code,omitempty"`
	Template   string                   `toml:"template,omitempty"`
	Headings   []string                 `toml:"headings,omitempty"`
	References map[string]ReferenceRule `toml:"references,omitempty"`
}

// IsRequired reports whether at least one definition must exist. Absent
// means optional.
func (s IdentifierSpec) IsRequired() bool {
	return s.Required != nil && *s.Required
}

// IsToCode reports whether definitions must be traced into code.
func (s IdentifierSpec) IsToCode() bool {
	return s.ToCode != nil && *s.ToCode
}

// ArtifactConstraints is the per-kind constraint record.
type ArtifactConstraints struct {
	TOC         *bool                     `toml:"toc,omitempty"`
	Headings    []HeadingSpec             `toml:"headings,omitempty"`
	Identifiers map[string]IdentifierSpec `toml:"identifiers,omitempty"`
}

// WantsTOC reports whether artifacts of this kind carry a table of contents.
func (a ArtifactConstraints) WantsTOC() bool {
	return a.TOC == nil || *a.TOC
}

// Heading returns the heading spec with the given id.
func (a ArtifactConstraints) Heading(id string) (HeadingSpec, bool) {
	for _, h := range a.Headings {
		if h.ID == id {
			return h, true
		}
	}
	return HeadingSpec{}, false
}

// IdentifierKinds returns the declared identifier kinds, sorted.
func (a ArtifactConstraints) IdentifierKinds() []string {
	kinds := make([]string, 0, len(a.Identifiers))
	for k := range a.Identifiers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Document is the whole constraints file, keyed by artifact kind.
type Document struct {
	Artifacts map[string]ArtifactConstraints `toml:"artifacts"`
}

// Kinds returns the artifact kinds in the document, sorted.
func (d *Document) Kinds() []string {
	kinds := make([]string, 0, len(d.Artifacts))
	for k := range d.Artifacts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Bool returns a pointer to v, for building optional fields.
func Bool(v bool) *bool {
	return &v
}

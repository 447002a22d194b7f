// Package blueprint parses annotated Markdown blueprints into a structured
// ParsedBlueprint and compiles blueprints into a constraints document.
package blueprint

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/markers"
)

// ParsedBlueprint is the structured form of one blueprint file. A blueprint
// with Errors must not be used for generation or compilation.
type ParsedBlueprint struct {
	Path         string
	ArtifactKind string // empty for codebase blueprints
	KitSlug      string
	Version      string
	Description  string
	TOC          bool
	Markers      []Marker
	Errors       []string
	Warnings     []string

	ExampleFrontmatter map[string]any
}

// OK reports whether the blueprint parsed without errors.
func (bp *ParsedBlueprint) OK() bool {
	return len(bp.Errors) == 0
}

// IsCodebase reports whether this blueprint targets code rather than an
// artifact kind.
func (bp *ParsedBlueprint) IsCodebase() bool {
	return bp.ArtifactKind == ""
}

// ParseFile reads and parses a blueprint from disk. Only I/O failures are
// returned as errors; malformed content lands in bp.Errors.
func ParseFile(path string) (*ParsedBlueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blueprint: %w", err)
	}
	bp := Parse(string(data))
	bp.Path = path
	return bp, nil
}

// Parse parses blueprint content in a single pass.
//
// An opening marker while another is open, a mismatched closing marker, an
// unclosed marker or an unclosed fence aborts parsing: the result carries
// the error and no markers. Invalid TOML inside a marker is recorded and
// parsing continues so later problems are reported too.
func Parse(content string) *ParsedBlueprint {
	bp := &ParsedBlueprint{TOC: true}
	tokens, unclosedFence := markers.TokenizeBlueprint(content)

	var (
		open  *Marker
		block *Block
		body  []string
	)

	abort := func(msg string) *ParsedBlueprint {
		bp.Errors = append(bp.Errors, msg)
		bp.Markers = nil
		return bp
	}

	for _, tok := range tokens {
		switch tok.Type {
		case markers.TokenOpen:
			if open != nil {
				return abort(fmt.Sprintf("line %d: unclosed marker `@cpt:%s` opened at line %d (found `@cpt:%s`)",
					tok.Line, open.Name, open.Line, tok.Name))
			}
			open = &Marker{Kind: ParseKind(tok.Name), Name: tok.Name, Line: tok.Line}

		case markers.TokenClose:
			if open == nil {
				bp.Errors = append(bp.Errors, fmt.Sprintf("line %d: closing marker `@/cpt:%s` without opening marker", tok.Line, tok.Name))
				continue
			}
			if tok.Name != open.Name {
				return abort(fmt.Sprintf("line %d: unclosed marker `@cpt:%s` opened at line %d (found `@/cpt:%s`)",
					tok.Line, open.Name, open.Line, tok.Name))
			}
			open.EndLine = tok.Line
			bp.finishMarker(open)
			open = nil

		case markers.TokenFenceOpen:
			if open != nil {
				block = &Block{Lang: tok.Name, Line: tok.Line}
				body = body[:0]
			}

		case markers.TokenFenceClose:
			if open != nil && block != nil {
				block.Body = strings.Join(body, "\n")
				open.Blocks = append(open.Blocks, *block)
				block = nil
			}

		default:
			if block != nil {
				body = append(body, tok.Text)
			}
		}
	}

	if unclosedFence != nil {
		return abort(fmt.Sprintf("line %d: unclosed fenced block", unclosedFence.Line))
	}
	if open != nil {
		return abort(fmt.Sprintf("line %d: unclosed marker `@cpt:%s`", open.Line, open.Name))
	}

	bp.liftBlueprintMarker()
	return bp
}

// finishMarker decodes the marker's blocks and appends it.
func (bp *ParsedBlueprint) finishMarker(m *Marker) {
	var mdParts []string
	for i := range m.Blocks {
		b := &m.Blocks[i]
		switch b.Lang {
		case "toml":
			var table map[string]any
			if err := toml.Unmarshal([]byte(b.Body), &table); err != nil {
				b.Err = err
				bp.Errors = append(bp.Errors, fmt.Sprintf("line %d: invalid TOML in `@cpt:%s` marker: %v", b.Line, m.Name, err))
				continue
			}
			if m.Table == nil {
				m.Table = make(map[string]any)
			}
			for k, v := range table {
				m.Table[k] = v
			}
		case "markdown", "md":
			mdParts = append(mdParts, b.Body)
		default:
			bp.Warnings = append(bp.Warnings, fmt.Sprintf("line %d: ignoring fenced block %q in `@cpt:%s` marker", b.Line, b.Lang, m.Name))
		}
	}
	m.Markdown = strings.Join(mdParts, "\n\n")

	if m.Kind == KindUnknown {
		bp.Warnings = append(bp.Warnings, fmt.Sprintf("line %d: unknown marker kind `@cpt:%s` kept as-is", m.Line, m.Name))
	}

	if err := m.decodePayload(); err != nil {
		bp.Errors = append(bp.Errors, fmt.Sprintf("line %d: invalid `@cpt:%s` payload: %v", m.Line, m.Name, err))
	}
	bp.Markers = append(bp.Markers, *m)
}

// decodePayload decodes every valid toml block, in order, into the typed
// payload for the marker kind and checks required fields.
func (m *Marker) decodePayload() error {
	var payload any
	switch m.Kind {
	case KindBlueprint:
		payload = &BlueprintPayload{}
	case KindHeading:
		payload = &constraints.HeadingSpec{}
	case KindID:
		payload = &IdentifierPayload{}
	case KindRules:
		payload = &RulesPayload{}
	case KindRule:
		payload = &RulePayload{}
	case KindChecklist:
		payload = &ChecklistPayload{}
	case KindCheck:
		payload = &CheckPayload{}
	case KindExample:
		payload = &ExamplePayload{}
	case KindWorkflow:
		payload = &WorkflowPayload{}
	default:
		return nil
	}

	for _, b := range m.Blocks {
		if b.Lang != "toml" || b.Err != nil {
			continue
		}
		if err := toml.Unmarshal([]byte(b.Body), payload); err != nil {
			return err
		}
	}
	m.Payload = payload
	// A skipped block was already reported; field checks would only echo it.
	if len(m.SkippedBlocks()) > 0 {
		return nil
	}

	switch p := payload.(type) {
	case *constraints.HeadingSpec:
		if p.ID == "" {
			return fmt.Errorf("heading needs an id")
		}
		if p.Level < 1 || p.Level > 6 {
			return fmt.Errorf("heading %q level %d out of range 1-6", p.ID, p.Level)
		}
	case *IdentifierPayload:
		if p.Kind == "" {
			return fmt.Errorf("identifier needs a kind")
		}
	case *CheckPayload:
		if p.Kind == "" {
			p.Kind = CheckMustHave
		}
		switch p.Kind {
		case CheckMustHave, CheckMustNotHave, CheckFormat:
		default:
			return fmt.Errorf("check %q has unknown kind %q", p.ID, p.Kind)
		}
	case *RulePayload:
		if p.Kind == "" {
			p.Kind = "tasks"
		}
		if p.Kind != "tasks" && p.Kind != "validation" {
			return fmt.Errorf("rule kind must be \"tasks\" or \"validation\", got %q", p.Kind)
		}
		if p.Section == "" {
			return fmt.Errorf("rule needs a section")
		}
	case *WorkflowPayload:
		if p.Name == "" {
			return fmt.Errorf("workflow needs a name")
		}
	}
	return nil
}

// liftBlueprintMarker copies kit-level settings from the first blueprint
// marker onto the ParsedBlueprint.
func (bp *ParsedBlueprint) liftBlueprintMarker() {
	found := false
	for _, m := range bp.Markers {
		if m.Kind != KindBlueprint {
			continue
		}
		if found {
			bp.Warnings = append(bp.Warnings, fmt.Sprintf("line %d: duplicate `@cpt:blueprint` marker ignored", m.Line))
			continue
		}
		found = true
		p, ok := m.Payload.(*BlueprintPayload)
		if !ok {
			continue
		}
		bp.ArtifactKind = p.Artifact
		bp.KitSlug = p.Kit
		if bp.KitSlug == "" {
			bp.KitSlug = p.KitSlug
		}
		bp.Version = p.Version
		bp.Description = p.Description
		if p.TOC != nil {
			bp.TOC = *p.TOC
		}
		bp.ExampleFrontmatter = p.ExampleFrontmatter
	}

	if !found {
		bp.Warnings = append(bp.Warnings, "no `@cpt:blueprint` marker found")
		return
	}
	if bp.Version != "" && !semver.IsValid(CanonicalVersion(bp.Version)) {
		bp.Warnings = append(bp.Warnings, fmt.Sprintf("version %q is not a semantic version", bp.Version))
	}
}

// CanonicalVersion returns v with a leading "v", as x/mod/semver expects.
func CanonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// MarkersOf returns markers of one kind, in file order.
func (bp *ParsedBlueprint) MarkersOf(kind Kind) []Marker {
	var out []Marker
	for _, m := range bp.Markers {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Headings returns the declared heading specs in file order.
func (bp *ParsedBlueprint) Headings() []constraints.HeadingSpec {
	var out []constraints.HeadingSpec
	for _, m := range bp.MarkersOf(KindHeading) {
		if p, ok := m.Payload.(*constraints.HeadingSpec); ok {
			out = append(out, *p)
		}
	}
	return out
}

// Identifiers returns the declared identifier specs in file order.
func (bp *ParsedBlueprint) Identifiers() []constraints.IdentifierSpec {
	var out []constraints.IdentifierSpec
	for _, m := range bp.MarkersOf(KindID) {
		if p, ok := m.Payload.(*IdentifierPayload); ok {
			out = append(out, p.Spec())
		}
	}
	return out
}

// Checklist returns the checklist configuration, if declared.
func (bp *ParsedBlueprint) Checklist() (*ChecklistPayload, string, bool) {
	for _, m := range bp.MarkersOf(KindChecklist) {
		if p, ok := m.Payload.(*ChecklistPayload); ok {
			return p, m.Markdown, true
		}
	}
	return &ChecklistPayload{}, "", false
}

// Rules returns the rules configuration, if declared.
func (bp *ParsedBlueprint) Rules() (*RulesPayload, string, bool) {
	for _, m := range bp.MarkersOf(KindRules) {
		if p, ok := m.Payload.(*RulesPayload); ok {
			return p, m.Markdown, true
		}
	}
	return &RulesPayload{}, "", false
}

package blueprint

import (
	"fmt"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
)

// Kind identifies a blueprint marker type.
type Kind int

const (
	// KindUnknown is a marker name this version does not understand. Such
	// markers are kept (with their raw name) and reported as warnings.
	KindUnknown Kind = iota
	KindBlueprint
	KindHeading
	KindPrompt
	KindExample
	KindID
	KindRules
	KindRule
	KindChecklist
	KindCheck
	KindChecklistEpilogue
	KindSkill
	KindSysprompt
	KindWorkflow
)

var kindNames = map[Kind]string{
	KindBlueprint:         "blueprint",
	KindHeading:           "heading",
	KindPrompt:            "prompt",
	KindExample:           "example",
	KindID:                "id",
	KindRules:             "rules",
	KindRule:              "rule",
	KindChecklist:         "checklist",
	KindCheck:             "check",
	KindChecklistEpilogue: "checklist_epilogue",
	KindSkill:             "skill",
	KindSysprompt:         "sysprompt",
	KindWorkflow:          "workflow",
}

// ParseKind maps a marker name to its Kind.
func ParseKind(name string) Kind {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Block is one fenced block inside a marker.
type Block struct {
	Lang string
	Line int // line of the opening fence
	Body string
	// Err is set when a toml block failed to decode; the block was skipped.
	Err error
}

// Marker is one `@cpt:{name}` ... `@/cpt:{name}` region.
type Marker struct {
	Kind     Kind
	Name     string // name as written
	Line     int    // opening marker line
	EndLine  int    // closing marker line
	Table    map[string]any
	Markdown string
	Blocks   []Block
	// Payload holds the typed TOML payload for known kinds:
	// *BlueprintPayload, *constraints.HeadingSpec, *IdentifierPayload,
	// *RulesPayload, *RulePayload, *ChecklistPayload, *CheckPayload,
	// *ExamplePayload or *WorkflowPayload. It is nil for kinds that carry
	// only Markdown.
	Payload any
}

// SkippedBlocks returns the toml blocks that failed to decode.
func (m Marker) SkippedBlocks() []Block {
	var out []Block
	for _, b := range m.Blocks {
		if b.Err != nil {
			out = append(out, b)
		}
	}
	return out
}

// BlueprintPayload is the `@cpt:blueprint` table.
type BlueprintPayload struct {
	Artifact           string         `toml:"artifact"`
	Kit                string         `toml:"kit"`
	KitSlug            string         `toml:"kit_slug"`
	Version            string         `toml:"version"`
	TOC                *bool          `toml:"toc"`
	Description        string         `toml:"description"`
	ExampleFrontmatter map[string]any `toml:"example_frontmatter"`
}

// IdentifierPayload is the `@cpt:id` table.
type IdentifierPayload struct {
	Kind       string                               `toml:"kind"`
	Name       string                               `toml:"name"`
	Required   *bool                                `toml:"required"`
	Task       *bool                                `toml:"task"`
	Priority   *bool                                `toml:"priority"`
	ToCode     *bool                                `toml:"to_code"`
	Template   string                               `toml:"template"`
	Headings   []string                             `toml:"headings"`
	References map[string]constraints.ReferenceRule `toml:"references"`
}

// Spec converts the payload into an identifier spec.
func (p IdentifierPayload) Spec() constraints.IdentifierSpec {
	return constraints.IdentifierSpec{
		Kind:       p.Kind,
		Name:       p.Name,
		Required:   p.Required,
		Task:       p.Task,
		Priority:   p.Priority,
		ToCode:     p.ToCode,
		Template:   p.Template,
		Headings:   p.Headings,
		References: p.References,
	}
}

// RulePhases lists the ordered phase sections of one rules group.
type RulePhases struct {
	Title  string   `toml:"title"`
	Phases []string `toml:"phases"`
}

// RulesPayload is the `@cpt:rules` table.
type RulesPayload struct {
	Title      string     `toml:"title"`
	Tasks      RulePhases `toml:"tasks"`
	Validation RulePhases `toml:"validation"`
}

// RulePayload is the `@cpt:rule` table.
type RulePayload struct {
	Kind    string `toml:"kind"` // "tasks" or "validation"
	Section string `toml:"section"`
	Title   string `toml:"title"`
}

// Domain is a checklist domain.
type Domain struct {
	Abbr          string   `toml:"abbr"`
	Name          string   `toml:"name"`
	Header        string   `toml:"header"`
	Preamble      string   `toml:"preamble"`
	Standards     []string `toml:"standards"`
	StandardsText string   `toml:"standards_text"`
}

// HeaderText returns the rendered domain header, e.g. "Security (SEC)".
func (d Domain) HeaderText() string {
	switch {
	case d.Header != "":
		return d.Header
	case d.Name != "" && d.Abbr != "":
		return fmt.Sprintf("%s (%s)", d.Name, d.Abbr)
	case d.Name != "":
		return d.Name
	default:
		return d.Abbr
	}
}

// ChecklistPayload is the `@cpt:checklist` table.
type ChecklistPayload struct {
	Title           string   `toml:"title"`
	GroupByKind     bool     `toml:"group_by_kind"`
	MustNotPreamble string   `toml:"must_not_preamble"`
	Domains         []Domain `toml:"domain"`
}

// Check kinds.
const (
	CheckMustHave    = "must_have"
	CheckMustNotHave = "must_not_have"
	CheckFormat      = "format_check"
)

// CheckKinds is the rendering order of check kinds.
var CheckKinds = []string{CheckMustHave, CheckMustNotHave, CheckFormat}

// CheckPayload is the `@cpt:check` table.
type CheckPayload struct {
	ID       string `toml:"id"`
	Domain   string `toml:"domain"`
	Kind     string `toml:"kind"`
	Title    string `toml:"title"`
	Severity string `toml:"severity"`
}

// ExamplePayload is the optional `@cpt:example` table.
type ExamplePayload struct {
	Title string `toml:"title"`
}

// WorkflowPayload is the `@cpt:workflow` table.
type WorkflowPayload struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

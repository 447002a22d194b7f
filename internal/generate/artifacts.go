// Package generate turns parsed blueprints into the generated kit tree:
// per-kind rules, checklists, templates and examples plus kit-level
// SKILL.md, sysprompt.md, workflows and a manifest.
//
// Rendering is deterministic: the same blueprints always produce
// byte-identical files.
package generate

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/blueprint"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/toc"
)

// Artifact file names.
const (
	RulesFile     = "rules.md"
	ChecklistFile = "checklist.md"
	TemplateFile  = "template.md"
	ExampleFile   = "example.md"
)

// Artifact renders the per-blueprint document set, keyed by file name.
// Empty documents are left out. A blueprint with parse errors is refused.
func Artifact(bp *blueprint.ParsedBlueprint) (map[string]string, error) {
	if !bp.OK() {
		return nil, fmt.Errorf("blueprint %s has parse errors", label(bp))
	}
	example, err := RenderExample(bp)
	if err != nil {
		return nil, err
	}

	files := map[string]string{
		RulesFile:     RenderRules(bp),
		ChecklistFile: RenderChecklist(bp),
		TemplateFile:  RenderTemplate(bp),
		ExampleFile:   example,
	}
	for name, content := range files {
		if content == "" {
			delete(files, name)
		}
	}
	return files, nil
}

func label(bp *blueprint.ParsedBlueprint) string {
	if bp.ArtifactKind != "" {
		return bp.ArtifactKind
	}
	if bp.Path != "" {
		return bp.Path
	}
	return "codebase"
}

// finish trims trailing blank lines and ends the document with one newline.
func finish(sb *strings.Builder) string {
	s := strings.TrimRight(sb.String(), "\n")
	if s == "" {
		return ""
	}
	return s + "\n"
}

// withTOC applies heading-mode TOC insertion when the blueprint wants it.
func withTOC(bp *blueprint.ParsedBlueprint, content string) string {
	if !bp.TOC || content == "" {
		return content
	}
	return toc.Generate(content, toc.ModeHeading, toc.DefaultOptions())
}

// RenderTemplate renders heading markers as headings, prompts as HTML
// comments after them, and id markers as sample definition lines.
func RenderTemplate(bp *blueprint.ParsedBlueprint) string {
	var sb strings.Builder
	wrote := false
	for _, m := range bp.Markers {
		switch m.Kind {
		case blueprint.KindHeading:
			h, ok := m.Payload.(*constraints.HeadingSpec)
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "%s %s\n\n", strings.Repeat("#", h.Level), headingText(*h))
			wrote = true
		case blueprint.KindPrompt:
			if m.Markdown == "" {
				continue
			}
			fmt.Fprintf(&sb, "<!--\n%s\n-->\n\n", strings.ReplaceAll(m.Markdown, "-->", "-- >"))
		case blueprint.KindID:
			p, ok := m.Payload.(*blueprint.IdentifierPayload)
			if !ok {
				continue
			}
			sb.WriteString(sampleDefinition(p.Spec()) + "\n\n")
		}
	}
	if !wrote {
		return ""
	}
	return withTOC(bp, finish(&sb))
}

// headingText is the text a template shows for h: its template, a literal
// pattern, or a "<id>" placeholder when only a regex is known.
func headingText(h constraints.HeadingSpec) string {
	switch {
	case h.Template != "":
		return h.Template
	case h.Pattern != "" && h.PatternIsLiteral():
		return h.Pattern
	default:
		return "<" + h.ID + ">"
	}
}

// sampleDefinition renders an example definition line for spec, shaped
// the way the document scanner reads definitions.
func sampleDefinition(spec constraints.IdentifierSpec) string {
	id := spec.Template
	if id == "" {
		id = fmt.Sprintf("cpt-{system}-%s-{slug}", spec.Kind)
	}
	var parts []string
	if spec.Task != nil && *spec.Task {
		parts = append(parts, "[ ]")
	}
	if spec.Priority != nil && *spec.Priority {
		parts = append(parts, "`p1` -")
	}
	parts = append(parts, fmt.Sprintf("**ID**: `%s`", id))
	line := strings.Join(parts, " ")
	if len(parts) > 1 {
		line = "- " + line
	}
	return line
}

// RenderExample joins example bodies under the blueprint's example
// frontmatter. No example markers means no example.md.
func RenderExample(bp *blueprint.ParsedBlueprint) (string, error) {
	examples := bp.MarkersOf(blueprint.KindExample)
	if len(examples) == 0 {
		return "", nil
	}

	var sb strings.Builder
	if len(bp.ExampleFrontmatter) > 0 {
		fm, err := yaml.Marshal(bp.ExampleFrontmatter)
		if err != nil {
			return "", fmt.Errorf("encoding example frontmatter for %s: %w", label(bp), err)
		}
		sb.WriteString("---\n")
		sb.Write(fm)
		sb.WriteString("---\n\n")
	}
	for _, m := range examples {
		body := strings.TrimSpace(m.Markdown)
		if body == "" {
			continue
		}
		if p, ok := m.Payload.(*blueprint.ExamplePayload); ok && p.Title != "" {
			fmt.Fprintf(&sb, "<!-- example: %s -->\n\n", p.Title)
		}
		sb.WriteString(body + "\n\n")
	}
	return withTOC(bp, finish(&sb)), nil
}

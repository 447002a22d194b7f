package generate

import (
	"fmt"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/blueprint"
)

type ruleKey struct {
	kind    string
	section string
}

type ruleEntry struct {
	title string
	body  string
}

// RenderRules renders rules.md: task and validation phases in the order the
// rules marker lists them, then any section no phase list mentions, then
// TOC guidance (when the kind uses a TOC) and the dependencies footer.
// A blueprint with neither rules nor rule markers produces nothing.
func RenderRules(bp *blueprint.ParsedBlueprint) string {
	cfg, intro, declared := bp.Rules()

	grouped := make(map[ruleKey][]ruleEntry)
	var order []ruleKey
	for _, m := range bp.MarkersOf(blueprint.KindRule) {
		p, ok := m.Payload.(*blueprint.RulePayload)
		if !ok {
			continue
		}
		key := ruleKey{kind: p.Kind, section: p.Section}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], ruleEntry{title: p.Title, body: strings.TrimSpace(m.Markdown)})
	}
	if !declared && len(order) == 0 {
		return ""
	}

	phases := map[string][]string{
		"tasks":      cfg.Tasks.Phases,
		"validation": cfg.Validation.Phases,
	}
	// Without a rules marker, sections keep declaration order.
	if !declared {
		for _, key := range order {
			phases[key.kind] = append(phases[key.kind], key.section)
		}
	}

	var sb strings.Builder
	title := cfg.Title
	if title == "" {
		title = fmt.Sprintf("%s Rules", titleSubject(bp))
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	if intro != "" {
		sb.WriteString(strings.TrimSpace(intro) + "\n\n")
	}

	placed := make(map[ruleKey]bool)
	writeGroup := func(kind, heading string) {
		if len(phases[kind]) == 0 {
			return
		}
		fmt.Fprintf(&sb, "## %s\n\n", heading)
		for _, section := range phases[kind] {
			key := ruleKey{kind: kind, section: section}
			placed[key] = true
			fmt.Fprintf(&sb, "### %s\n\n", section)
			writeRuleEntries(&sb, grouped[key])
		}
	}
	writeGroup("tasks", orDefault(cfg.Tasks.Title, "Tasks"))
	writeGroup("validation", orDefault(cfg.Validation.Title, "Validation"))

	var extra []ruleKey
	for _, key := range order {
		if !placed[key] {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sb.WriteString("## Additional Rules\n\n")
		for _, key := range extra {
			if key.kind == "validation" {
				fmt.Fprintf(&sb, "### %s (validation)\n\n", key.section)
			} else {
				fmt.Fprintf(&sb, "### %s\n\n", key.section)
			}
			writeRuleEntries(&sb, grouped[key])
		}
	}

	if bp.TOC {
		sb.WriteString("## TOC Maintenance\n\n")
		sb.WriteString("This artifact keeps a `## Table of Contents` section. After adding, removing or renaming headings, " +
			"regenerate it with `cpt toc --heading <file>` and confirm with `cpt validate-toc <file>`.\n\n")
	}

	sb.WriteString("## Dependencies\n\n")
	fmt.Fprintf(&sb, "- `%s`: structure every %s document follows\n", TemplateFile, subject(bp))
	fmt.Fprintf(&sb, "- `%s`: review criteria applied after these rules\n", ChecklistFile)
	return finish(&sb)
}

func writeRuleEntries(sb *strings.Builder, entries []ruleEntry) {
	for _, e := range entries {
		if e.title != "" {
			fmt.Fprintf(sb, "#### %s\n\n", e.title)
		}
		if e.body != "" {
			sb.WriteString(e.body + "\n\n")
		}
	}
}

// subject names what a blueprint describes: its artifact kind, or "code".
func subject(bp *blueprint.ParsedBlueprint) string {
	if bp.IsCodebase() {
		return "code"
	}
	return bp.ArtifactKind
}

// titleSubject is subject for use in document titles.
func titleSubject(bp *blueprint.ParsedBlueprint) string {
	if bp.IsCodebase() {
		return "Codebase"
	}
	return bp.ArtifactKind
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package generate

import (
	"fmt"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/blueprint"
)

var checkKindTitles = map[string]string{
	blueprint.CheckMustHave:    "MUST HAVE",
	blueprint.CheckMustNotHave: "MUST NOT HAVE",
	blueprint.CheckFormat:      "FORMAT CHECKS",
}

type check struct {
	blueprint.CheckPayload
	body string
}

// RenderChecklist renders checklist.md. With group_by_kind the checks sit
// under one H1 per kind and then an H2 per domain; otherwise only domains
// group them. Any checklist_epilogue content is appended verbatim. No check
// markers means an empty string.
func RenderChecklist(bp *blueprint.ParsedBlueprint) string {
	var checks []check
	for _, m := range bp.MarkersOf(blueprint.KindCheck) {
		if p, ok := m.Payload.(*blueprint.CheckPayload); ok {
			checks = append(checks, check{CheckPayload: *p, body: strings.TrimSpace(m.Markdown)})
		}
	}
	if len(checks) == 0 {
		return ""
	}

	cfg, intro, _ := bp.Checklist()
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", orDefault(cfg.Title, titleSubject(bp)+" Checklist"))
	if intro != "" {
		sb.WriteString(strings.TrimSpace(intro) + "\n\n")
	}

	if cfg.GroupByKind {
		for _, kind := range blueprint.CheckKinds {
			var group []check
			for _, c := range checks {
				if c.Kind == kind {
					group = append(group, c)
				}
			}
			if len(group) == 0 {
				continue
			}
			fmt.Fprintf(&sb, "# %s\n\n", checkKindTitles[kind])
			if kind == blueprint.CheckMustNotHave && cfg.MustNotPreamble != "" {
				sb.WriteString(strings.TrimSpace(cfg.MustNotPreamble) + "\n\n")
			}
			writeDomains(&sb, cfg, group)
		}
	} else {
		writeDomains(&sb, cfg, checks)
	}

	for _, m := range bp.MarkersOf(blueprint.KindChecklistEpilogue) {
		if body := strings.TrimSpace(m.Markdown); body != "" {
			sb.WriteString(body + "\n\n")
		}
	}
	return finish(&sb)
}

// writeDomains groups checks by domain: declared domains first in
// declaration order, then undeclared ones in order of first use.
func writeDomains(sb *strings.Builder, cfg *blueprint.ChecklistPayload, checks []check) {
	type bucket struct {
		domain blueprint.Domain
		checks []check
	}
	var buckets []*bucket
	byKey := make(map[string]*bucket)

	for _, d := range cfg.Domains {
		b := &bucket{domain: d}
		buckets = append(buckets, b)
		for _, k := range []string{d.Abbr, d.Name} {
			if k != "" {
				byKey[strings.ToLower(k)] = b
			}
		}
	}
	for _, c := range checks {
		key := strings.ToLower(c.Domain)
		b, ok := byKey[key]
		if !ok {
			name := c.Domain
			if name == "" {
				name = "General"
			}
			b = &bucket{domain: blueprint.Domain{Name: name}}
			byKey[key] = b
			buckets = append(buckets, b)
		}
		b.checks = append(b.checks, c)
	}

	for _, b := range buckets {
		if len(b.checks) == 0 {
			continue
		}
		fmt.Fprintf(sb, "## %s\n\n", b.domain.HeaderText())
		if b.domain.Preamble != "" {
			sb.WriteString(strings.TrimSpace(b.domain.Preamble) + "\n\n")
		}
		if len(b.domain.Standards) > 0 {
			fmt.Fprintf(sb, "**Standards**: %s\n\n", strings.Join(b.domain.Standards, ", "))
		}
		if b.domain.StandardsText != "" {
			sb.WriteString(strings.TrimSpace(b.domain.StandardsText) + "\n\n")
		}
		for _, c := range b.checks {
			writeCheck(sb, c)
		}
	}
}

func writeCheck(sb *strings.Builder, c check) {
	switch {
	case c.ID != "" && c.Title != "":
		fmt.Fprintf(sb, "### %s: %s\n\n", c.ID, c.Title)
	case c.ID != "":
		fmt.Fprintf(sb, "### %s\n\n", c.ID)
	default:
		fmt.Fprintf(sb, "### %s\n\n", orDefault(c.Title, "Check"))
	}
	if c.Severity != "" {
		fmt.Fprintf(sb, "**Severity**: %s\n\n", c.Severity)
	}
	if c.body != "" {
		sb.WriteString(c.body + "\n\n")
	}
}

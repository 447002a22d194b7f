package validate

import (
	"context"
	"fmt"
	"sort"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// ReferenceValidator enforces reference rules declared under
// identifiers.{kind}.references.{TARGET}: coverage=true requires every
// definition to be referenced from a TARGET artifact, coverage=false
// prohibits such references, and each reference in TARGET must satisfy the
// rule's own task, priority and heading constraints.
type ReferenceValidator struct{}

// Name returns the validator identifier.
func (v *ReferenceValidator) Name() string {
	return "references"
}

// Priority returns 50 (cross-artifact rule).
func (v *ReferenceValidator) Priority() int {
	return 50
}

// Validate checks every declared reference rule.
func (v *ReferenceValidator) Validate(ctx context.Context, in *Input) report.Result {
	result := report.NewResult()
	// An id kind owned by several artifact kinds may carry the same rule
	// twice; each reference is judged once per target.
	checked := make(map[string]bool)

	doc := in.Catalog.Constraints()
	for _, artifactKind := range doc.Kinds() {
		ac := doc.Artifacts[artifactKind]
		for _, idKind := range ac.IdentifierKinds() {
			spec := ac.Identifiers[idKind]
			targets := make([]string, 0, len(spec.References))
			for t := range spec.References {
				targets = append(targets, t)
			}
			sort.Strings(targets)

			for _, target := range targets {
				rule := spec.References[target]
				targetAC, _ := in.Catalog.Artifact(target)
				prohibited := rule.Coverage != nil && !*rule.Coverage

				referenced := make(map[string]bool)
				for _, ref := range in.References() {
					if !ref.Parsed || ref.Doc.Kind != target || ref.ID.Kind() != idKind {
						continue
					}
					referenced[ref.Hit.ID] = true

					key := fmt.Sprintf("%s\x00%s\x00%d\x00%s", target, ref.Doc.Path, ref.Hit.Line, ref.Hit.ID)
					if checked[key] {
						continue
					}
					checked[key] = true

					if prohibited {
						issue := ref.Issue("ref-prohibited",
							fmt.Sprintf("%s artifacts must not reference %q identifiers (%s)", target, idKind, ref.Hit.ID))
						issue.Details = map[string]interface{}{"target_kind": target}
						result.AddError(issue)
						continue
					}
					refRule := occurrenceRule{task: rule.Task, priority: rule.Priority, headings: rule.Headings}
					for _, issue := range refRule.check(ref, targetAC, "ref", "reference") {
						issue.Details = map[string]interface{}{"target_kind": target}
						result.AddError(issue)
					}
				}

				if rule.Coverage == nil || !*rule.Coverage {
					continue
				}
				seen := make(map[string]bool)
				for _, def := range in.Definitions() {
					if !def.Parsed || def.Doc.Kind != artifactKind || def.ID.Kind() != idKind {
						continue
					}
					if seen[def.Hit.ID] || referenced[def.Hit.ID] {
						continue
					}
					seen[def.Hit.ID] = true
					issue := def.Issue("ref-missing",
						fmt.Sprintf("missing required reference: %s is not referenced from any %s artifact", def.Hit.ID, target))
					issue.Expected = target
					issue.Details = map[string]interface{}{"target_kind": target}
					result.AddError(issue)
				}
			}
		}
	}
	return result
}

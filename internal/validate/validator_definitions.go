package validate

import (
	"context"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// DefinitionValidator applies each identifier kind's task, priority and
// heading placement rules to its definitions.
type DefinitionValidator struct{}

// Name returns the validator identifier.
func (v *DefinitionValidator) Name() string {
	return "definitions"
}

// Priority returns 10 (per-artifact rule).
func (v *DefinitionValidator) Priority() int {
	return 10
}

// Validate checks every definition whose kind its artifact declares.
func (v *DefinitionValidator) Validate(ctx context.Context, in *Input) report.Result {
	result := report.NewResult()
	for _, occ := range in.Definitions() {
		if !occ.Parsed {
			continue
		}
		ac, ok := in.Catalog.Artifact(occ.Doc.Kind)
		if !ok {
			continue
		}
		spec, ok := ac.Identifiers[occ.ID.Kind()]
		if !ok {
			continue
		}
		rule := occurrenceRule{task: spec.Task, priority: spec.Priority, headings: spec.Headings}
		for _, issue := range rule.check(occ, ac, "def", "definition") {
			result.AddError(issue)
		}
	}
	return result
}

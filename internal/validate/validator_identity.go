package validate

import (
	"context"
	"fmt"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// IdentityValidator flags ids defined more than once and references to ids
// that are never defined.
type IdentityValidator struct{}

// Name returns the validator identifier.
func (v *IdentityValidator) Name() string {
	return "identity"
}

// Priority returns 5 (structural check).
func (v *IdentityValidator) Priority() int {
	return 5
}

// Validate checks definition uniqueness and reference resolution.
func (v *IdentityValidator) Validate(ctx context.Context, in *Input) report.Result {
	result := report.NewResult()

	seen := make(map[string]bool)
	for _, occ := range in.Definitions() {
		if seen[occ.Hit.ID] {
			continue
		}
		seen[occ.Hit.ID] = true
		defs := in.DefinitionsOf(occ.Hit.ID)
		first := defs[0]
		for _, dup := range defs[1:] {
			issue := dup.Issue("id-duplicate",
				fmt.Sprintf("identifier %s is already defined at %s:%d", dup.Hit.ID, first.Doc.Path, first.Hit.Line))
			issue.Details = map[string]interface{}{
				"first_path": first.Doc.Path,
				"first_line": first.Hit.Line,
			}
			result.AddError(issue)
		}
	}

	for _, occ := range in.References() {
		// Unparsable ids already carry a kind warning.
		if !occ.Parsed || len(in.DefinitionsOf(occ.Hit.ID)) > 0 {
			continue
		}
		result.AddError(occ.Issue("ref-undefined",
			fmt.Sprintf("reference to undefined identifier %s", occ.Hit.ID)))
	}

	return result
}

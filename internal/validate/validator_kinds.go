package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// KindValidator checks identifier kinds: every id must parse to a kind some
// artifact declares, definitions may only use kinds their artifact kind
// declares, and required kinds must be defined at least once.
type KindValidator struct{}

// Name returns the validator identifier.
func (v *KindValidator) Name() string {
	return "identifier_kinds"
}

// Priority returns 1 (structural check, runs first).
func (v *KindValidator) Priority() int {
	return 1
}

// Validate checks kind legality and required-kind presence.
func (v *KindValidator) Validate(ctx context.Context, in *Input) report.Result {
	result := report.NewResult()

	for _, occs := range [][]Occurrence{in.Definitions(), in.References()} {
		for _, occ := range occs {
			if occ.Parsed {
				continue
			}
			if occ.ID.Unrecognized {
				issue := occ.Issue("id-kind-unknown",
					fmt.Sprintf("identifier %s: %q is not a kind declared by any artifact", occ.Hit.ID, occ.ID.Guess))
				issue.Found = occ.ID.Guess
				result.AddWarning(issue)
				continue
			}
			msg := fmt.Sprintf("identifier %s cannot be parsed", occ.Hit.ID)
			if _, err := in.Catalog.ParseID(occ.Hit.ID); err != nil {
				msg = err.Error()
			}
			result.AddWarning(occ.Issue("id-invalid", msg))
		}
	}

	for _, doc := range in.Documents {
		if _, ok := in.Catalog.Artifact(doc.Kind); !ok {
			result.AddWarning(report.Issue{
				Code:         "artifact-kind-unknown",
				Message:      fmt.Sprintf("no constraints for artifact kind %q", doc.Kind),
				Path:         doc.Path,
				ArtifactKind: doc.Kind,
			})
		}
	}

	for _, occ := range in.Definitions() {
		if !occ.Parsed {
			continue
		}
		ac, ok := in.Catalog.Artifact(occ.Doc.Kind)
		if !ok {
			continue
		}
		if _, allowed := ac.Identifiers[occ.ID.Kind()]; allowed {
			continue
		}
		issue := occ.Issue("id-kind-not-allowed",
			fmt.Sprintf("kind not allowed: %s artifacts may not define %q identifiers (%s)", occ.Doc.Kind, occ.ID.Kind(), occ.Hit.ID))
		issue.Expected = strings.Join(ac.IdentifierKinds(), ", ")
		issue.Found = occ.ID.Kind()
		result.AddError(issue)
	}

	for _, artifactKind := range in.Catalog.Constraints().Kinds() {
		docs := in.DocumentsOf(artifactKind)
		if len(docs) == 0 {
			continue
		}
		ac, _ := in.Catalog.Artifact(artifactKind)
		defined := make(map[string]bool)
		for _, occ := range in.Definitions() {
			if occ.Parsed && occ.Doc.Kind == artifactKind {
				defined[occ.ID.Kind()] = true
			}
		}
		for _, idKind := range ac.IdentifierKinds() {
			if !ac.Identifiers[idKind].IsRequired() || defined[idKind] {
				continue
			}
			result.AddError(report.Issue{
				Code:         "id-kind-required",
				Message:      fmt.Sprintf("required identifier kind %q has no definition in any %s artifact", idKind, artifactKind),
				Path:         docs[0].Path,
				ArtifactKind: artifactKind,
				IDKind:       idKind,
				Expected:     idKind,
			})
		}
	}

	return result
}

package blueprint

import (
	"fmt"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
)

// Compile builds a constraints document from parsed blueprints. Codebase
// blueprints (no artifact kind) contribute nothing. Blueprints with parse
// errors are rejected, as are two blueprints claiming the same kind.
//
// Only declared attributes are carried over, so compiling and then loading
// the document reproduces every heading and identifier rule exactly.
func Compile(bps []*ParsedBlueprint) (*constraints.Document, error) {
	doc := &constraints.Document{Artifacts: make(map[string]constraints.ArtifactConstraints)}
	sources := make(map[string]string)

	for _, bp := range bps {
		if !bp.OK() {
			return nil, fmt.Errorf("blueprint %s has %d parse error(s)", displayPath(bp), len(bp.Errors))
		}
		if bp.IsCodebase() {
			continue
		}
		kind := bp.ArtifactKind
		if prev, dup := sources[kind]; dup {
			return nil, fmt.Errorf("artifact kind %s declared by both %s and %s", kind, prev, displayPath(bp))
		}
		sources[kind] = displayPath(bp)
		doc.Artifacts[kind] = compileArtifact(bp)
	}
	return doc, nil
}

func compileArtifact(bp *ParsedBlueprint) constraints.ArtifactConstraints {
	ac := constraints.ArtifactConstraints{}
	if !bp.TOC {
		ac.TOC = constraints.Bool(false)
	}

	ac.Headings = append(ac.Headings, bp.Headings()...)

	for _, spec := range bp.Identifiers() {
		if ac.Identifiers == nil {
			ac.Identifiers = make(map[string]constraints.IdentifierSpec)
		}
		if len(spec.References) == 0 {
			spec.References = nil
		}
		ac.Identifiers[spec.Kind] = spec
	}
	return ac
}

func displayPath(bp *ParsedBlueprint) string {
	if bp.Path != "" {
		return bp.Path
	}
	if bp.ArtifactKind != "" {
		return bp.ArtifactKind + " blueprint"
	}
	return "codebase blueprint"
}

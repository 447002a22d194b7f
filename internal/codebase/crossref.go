package codebase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/docscan"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// TraceMode is a system's traceability level.
type TraceMode string

const (
	// TraceFull requires code markers for to_code identifiers.
	TraceFull TraceMode = "FULL"
	// TraceDocsOnly prohibits code markers entirely.
	TraceDocsOnly TraceMode = "DOCS-ONLY"
)

// ParseTraceMode accepts the two modes case-insensitively; empty is FULL.
func ParseTraceMode(s string) (TraceMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(TraceFull):
		return TraceFull, nil
	case string(TraceDocsOnly):
		return TraceDocsOnly, nil
	}
	return "", fmt.Errorf("unknown traceability mode %q (want FULL or DOCS-ONLY)", s)
}

// Location is where an identifier is defined.
type Location struct {
	Path string
	Line int
}

// Expectations is what the artifacts say the code must and must not carry.
type Expectations struct {
	// ArtifactIDs holds every identifier defined in an artifact.
	ArtifactIDs map[string]Location
	// ToCodeIDs are to_code identifiers that must be marked in code.
	ToCodeIDs map[string]bool
	// ForbiddenIDs are to_code identifiers whose task is still unchecked;
	// code must not reference them yet.
	ForbiddenIDs map[string]bool
	// Instructions maps an identifier to its declared CDSL instructions.
	Instructions map[string]map[string]bool
}

// NewExpectations derives expectations from scanned artifacts. An
// identifier kind is to_code when the defining artifact kind's constraints
// say so.
func NewExpectations(catalog *constraints.Catalog, docs []*docscan.Document) Expectations {
	exp := Expectations{
		ArtifactIDs:  make(map[string]Location),
		ToCodeIDs:    make(map[string]bool),
		ForbiddenIDs: make(map[string]bool),
		Instructions: make(map[string]map[string]bool),
	}
	for _, doc := range docs {
		ac, constrained := catalog.Artifact(doc.Kind)
		for _, def := range doc.Definitions() {
			if _, dup := exp.ArtifactIDs[def.ID]; !dup {
				exp.ArtifactIDs[def.ID] = Location{Path: doc.Path, Line: def.Line}
			}
			for _, inst := range doc.Instructions[def.ID] {
				if exp.Instructions[def.ID] == nil {
					exp.Instructions[def.ID] = make(map[string]bool)
				}
				exp.Instructions[def.ID][inst.Slug] = true
			}
			if !constrained {
				continue
			}
			id, err := catalog.ParseID(def.ID)
			if err != nil || id.Unrecognized {
				continue
			}
			if !ac.Identifiers[id.Kind()].IsToCode() {
				continue
			}
			if def.HasTask && !def.Checked {
				exp.ForbiddenIDs[def.ID] = true
			} else {
				exp.ToCodeIDs[def.ID] = true
			}
		}
	}
	return exp
}

// CrossValidate checks code markers against artifact expectations. In
// DOCS-ONLY mode any marker is an error and nothing else is checked.
func CrossValidate(files []*CodeFile, exp Expectations, mode TraceMode) report.Result {
	result := report.NewResult()
	files = sortedFiles(files)

	if mode == TraceDocsOnly {
		for _, f := range files {
			refs := f.References()
			if len(refs) == 0 {
				continue
			}
			result.AddError(report.Issue{
				Code:    "marker-prohibited",
				Message: fmt.Sprintf("cpt markers are not allowed in DOCS-ONLY mode (%d found)", len(refs)),
				Path:    f.Path,
				Line:    refs[0].Line,
				ID:      refs[0].ID,
				Details: map[string]interface{}{"count": len(refs)},
			})
		}
		return result
	}

	referenced := make(map[string]bool)
	codeInsts := make(map[string]map[string]Location)
	forbiddenReported := make(map[string]bool)

	for _, f := range files {
		for _, ref := range f.References() {
			referenced[ref.ID] = true
			if _, ok := exp.ArtifactIDs[ref.ID]; !ok {
				result.AddError(report.Issue{
					Code:    "ref-orphan",
					Message: fmt.Sprintf("orphan reference: %s is not defined in any artifact", ref.ID),
					Path:    f.Path,
					Line:    ref.Line,
					ID:      ref.ID,
				})
				continue
			}
			if exp.ForbiddenIDs[ref.ID] && !forbiddenReported[ref.ID] {
				forbiddenReported[ref.ID] = true
				result.AddError(report.Issue{
					Code:    "ref-unchecked",
					Message: fmt.Sprintf("%s is referenced in code but its artifact task is not checked", ref.ID),
					Path:    f.Path,
					Line:    ref.Line,
					ID:      ref.ID,
				})
			}
			if ref.MarkerType == "block" {
				if codeInsts[ref.ID] == nil {
					codeInsts[ref.ID] = make(map[string]Location)
				}
				if _, seen := codeInsts[ref.ID][ref.Inst]; !seen {
					codeInsts[ref.ID][ref.Inst] = Location{Path: f.Path, Line: ref.Line}
				}
			}
		}
	}

	for _, id := range sortedKeys(exp.ToCodeIDs) {
		if referenced[id] {
			continue
		}
		loc := exp.ArtifactIDs[id]
		result.AddError(report.Issue{
			Code:    "marker-missing",
			Message: fmt.Sprintf("no marker found for %s", id),
			Path:    loc.Path,
			Line:    loc.Line,
			ID:      id,
		})
	}

	// Instructions are compared only for identifiers the code marks at all;
	// an unmarked identifier is already reported above.
	for _, id := range sortedKeys(referenced) {
		declared, ok := exp.Instructions[id]
		if !ok || len(declared) == 0 {
			continue
		}
		loc := exp.ArtifactIDs[id]
		for _, inst := range sortedKeys(declared) {
			if _, ok := codeInsts[id][inst]; ok {
				continue
			}
			result.AddError(report.Issue{
				Code:    "inst-missing",
				Message: fmt.Sprintf("instruction missing from code: %s inst-%s", id, inst),
				Path:    loc.Path,
				Line:    loc.Line,
				ID:      id,
				Details: map[string]interface{}{"inst": inst},
			})
		}
	}

	for _, id := range sortedKeys(codeInsts) {
		if _, defined := exp.ArtifactIDs[id]; !defined {
			continue
		}
		insts := codeInsts[id]
		for _, inst := range sortedKeys(insts) {
			if exp.Instructions[id][inst] {
				continue
			}
			site := insts[inst]
			result.AddError(report.Issue{
				Code:    "inst-orphaned",
				Message: fmt.Sprintf("orphaned code block: %s inst-%s is not declared in the artifact", id, inst),
				Path:    site.Path,
				Line:    site.Line,
				ID:      id,
				Details: map[string]interface{}{"inst": inst},
			})
		}
	}

	return result
}

func sortedFiles(files []*CodeFile) []*CodeFile {
	out := make([]*CodeFile, 0, len(files))
	for _, f := range files {
		if f != nil {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

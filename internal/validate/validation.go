// Package validate is the constraint engine: it checks scanned artifact
// documents against the compiled constraints catalog and reports every
// violation as a structured issue.
package validate

import (
	"context"
	"sort"
	"sync"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/docscan"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// Validator is the interface for pluggable artifact validation.
type Validator interface {
	// Name returns a unique identifier for this validator.
	Name() string

	// Priority determines execution order (lower values run first).
	// Suggested priorities:
	//   1-9:   identifier structure (kind legality, duplicates)
	//   10-49: per-artifact rules (placement, checkboxes, headings)
	//   50+:   cross-artifact rules (reference obligations)
	Priority() int

	// Validate checks the input and returns any errors or warnings found.
	Validate(ctx context.Context, in *Input) report.Result
}

// Input is what every validator sees: the catalog and the scanned
// documents. Validators must not modify it.
type Input struct {
	Catalog   *constraints.Catalog
	Documents []*docscan.Document

	once sync.Once
	idx  *index
}

// NewInput bundles a catalog and scanned documents.
func NewInput(catalog *constraints.Catalog, docs []*docscan.Document) *Input {
	return &Input{Catalog: catalog, Documents: docs}
}

// Occurrence is one hit together with its document and parsed id.
type Occurrence struct {
	Doc *docscan.Document
	Hit docscan.Hit
	ID  constraints.ID
	// Parsed is false when the id could not be split into system and kind.
	Parsed bool
}

// Issue returns an issue pre-filled with the occurrence's location.
func (o Occurrence) Issue(code, msg string) report.Issue {
	return report.Issue{
		Code:         code,
		Message:      msg,
		Path:         o.Doc.Path,
		Line:         o.Hit.Line,
		ArtifactKind: o.Doc.Kind,
		IDKind:       o.ID.Kind(),
		ID:           o.Hit.ID,
	}
}

type index struct {
	definitions []Occurrence
	references  []Occurrence
	defsByID    map[string][]Occurrence
	refsByID    map[string][]Occurrence
	docsByKind  map[string][]*docscan.Document
}

// index parses every hit once; validators share the result.
func (in *Input) index() *index {
	in.once.Do(func() {
		idx := &index{
			defsByID:   make(map[string][]Occurrence),
			refsByID:   make(map[string][]Occurrence),
			docsByKind: make(map[string][]*docscan.Document),
		}
		for _, doc := range in.Documents {
			idx.docsByKind[doc.Kind] = append(idx.docsByKind[doc.Kind], doc)
			for _, hit := range doc.Hits {
				occ := Occurrence{Doc: doc, Hit: hit}
				if id, err := in.Catalog.ParseID(hit.ID); err == nil {
					occ.ID = id
					occ.Parsed = !id.Unrecognized
				}
				if hit.Type == docscan.Definition {
					idx.definitions = append(idx.definitions, occ)
					idx.defsByID[hit.ID] = append(idx.defsByID[hit.ID], occ)
				} else {
					idx.references = append(idx.references, occ)
					idx.refsByID[hit.ID] = append(idx.refsByID[hit.ID], occ)
				}
			}
		}
		in.idx = idx
	})
	return in.idx
}

// Definitions returns every definition occurrence in document order.
func (in *Input) Definitions() []Occurrence {
	return in.index().definitions
}

// References returns every reference occurrence in document order.
func (in *Input) References() []Occurrence {
	return in.index().references
}

// ReferencesTo returns the references to one id.
func (in *Input) ReferencesTo(id string) []Occurrence {
	return in.index().refsByID[id]
}

// DefinitionsOf returns the definitions of one id.
func (in *Input) DefinitionsOf(id string) []Occurrence {
	return in.index().defsByID[id]
}

// DocumentsOf returns the documents of one artifact kind.
func (in *Input) DocumentsOf(kind string) []*docscan.Document {
	return in.index().docsByKind[kind]
}

// Registry manages a collection of validators and orchestrates validation.
type Registry struct {
	validators []Validator
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		validators: make([]Validator, 0),
	}
}

// DefaultRegistry returns a registry with every built-in validator.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&KindValidator{})
	r.Register(&IdentityValidator{})
	r.Register(&DefinitionValidator{})
	r.Register(&HeadingValidator{})
	r.Register(&ReferenceValidator{})
	return r
}

// Register adds a validator to the registry.
// Validators are automatically sorted by priority after registration.
func (r *Registry) Register(v Validator) {
	r.validators = append(r.validators, v)
	sort.SliceStable(r.validators, func(i, j int) bool {
		return r.validators[i].Priority() < r.validators[j].Priority()
	})
}

// Names returns the registered validator names in execution order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.validators))
	for i, v := range r.validators {
		names[i] = v.Name()
	}
	return names
}

// ValidateAll runs all registered validators against the input.
// Validators run in priority order (lowest first).
// All validators run even if earlier ones fail (collect all issues).
func (r *Registry) ValidateAll(ctx context.Context, in *Input) report.Result {
	result := report.NewResult()
	for _, v := range r.validators {
		if ctx.Err() != nil {
			break
		}
		result.Merge(v.Validate(ctx, in))
	}
	result.Sort()
	return result
}

// Documents validates scanned documents with the default registry.
func Documents(ctx context.Context, catalog *constraints.Catalog, docs []*docscan.Document) report.Result {
	return DefaultRegistry().ValidateAll(ctx, NewInput(catalog, docs))
}

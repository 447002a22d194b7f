package constraints

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// Parse decodes a constraints document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing constraints: %w", err)
	}
	if doc.Artifacts == nil {
		doc.Artifacts = make(map[string]ArtifactConstraints)
	}
	for kind, ac := range doc.Artifacts {
		for idKind, spec := range ac.Identifiers {
			spec.Kind = idKind
			ac.Identifiers[idKind] = spec
		}
		doc.Artifacts[kind] = ac
	}
	return &doc, nil
}

// Load reads and decodes a constraints document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading constraints file: %w", err)
	}
	return Parse(data)
}

// Marshal encodes the document. Optional fields that were never declared
// are omitted; the encoder sorts table keys so output is deterministic.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding constraints: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the document to path.
func Save(path string, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing constraints file: %w", err)
	}
	return nil
}

// Check verifies the document's internal references: every heading id named
// by an identifier or reference rule must be declared in the artifact kind
// it points into, and every reference target must be a known artifact kind.
// It returns one message per problem, sorted.
func (d *Document) Check() []string {
	var problems []string
	for kind, ac := range d.Artifacts {
		for idKind, spec := range ac.Identifiers {
			for _, hid := range spec.Headings {
				if _, ok := ac.Heading(hid); !ok {
					problems = append(problems, fmt.Sprintf(
						"artifacts.%s.identifiers.%s: heading %q is not declared in %s", kind, idKind, hid, kind))
				}
			}
			for target, rule := range spec.References {
				tac, ok := d.Artifacts[target]
				if !ok {
					problems = append(problems, fmt.Sprintf(
						"artifacts.%s.identifiers.%s.references: unknown artifact kind %q", kind, idKind, target))
					continue
				}
				for _, hid := range rule.Headings {
					if _, ok := tac.Heading(hid); !ok {
						problems = append(problems, fmt.Sprintf(
							"artifacts.%s.identifiers.%s.references.%s: heading %q is not declared in %s",
							kind, idKind, target, hid, target))
					}
				}
			}
		}
	}
	sort.Strings(problems)
	return problems
}

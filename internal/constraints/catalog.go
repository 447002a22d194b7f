package constraints

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog bundles everything validators need to interpret identifiers:
// the compiled constraints, the registered system slugs and the set of
// identifier kinds those constraints declare. It is built once per run and
// never mutated.
type Catalog struct {
	doc        *Document
	systems    []string
	knownKinds map[string]bool
	kindOwners map[string][]string
}

// NewCatalog builds a catalog. System slugs are deduplicated and kept in
// longest-first order, which is the tie-break used when one slug is a prefix
// of another ("app" vs "app-v2").
func NewCatalog(doc *Document, systemSlugs []string) *Catalog {
	if doc == nil {
		doc = &Document{Artifacts: map[string]ArtifactConstraints{}}
	}
	seen := make(map[string]bool)
	systems := make([]string, 0, len(systemSlugs))
	for _, s := range systemSlugs {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		systems = append(systems, s)
	}
	sort.SliceStable(systems, func(i, j int) bool {
		if len(systems[i]) != len(systems[j]) {
			return len(systems[i]) > len(systems[j])
		}
		return systems[i] < systems[j]
	})

	known := make(map[string]bool)
	owners := make(map[string][]string)
	for _, artifactKind := range doc.Kinds() {
		for _, idKind := range doc.Artifacts[artifactKind].IdentifierKinds() {
			known[idKind] = true
			owners[idKind] = append(owners[idKind], artifactKind)
		}
	}

	return &Catalog{doc: doc, systems: systems, knownKinds: known, kindOwners: owners}
}

// Constraints returns the underlying document.
func (c *Catalog) Constraints() *Document {
	return c.doc
}

// Artifact returns the constraints for one artifact kind.
func (c *Catalog) Artifact(kind string) (ArtifactConstraints, bool) {
	ac, ok := c.doc.Artifacts[kind]
	return ac, ok
}

// Systems returns the registered system slugs, longest first.
func (c *Catalog) Systems() []string {
	out := make([]string, len(c.systems))
	copy(out, c.systems)
	return out
}

// KnownKind reports whether any artifact kind declares this identifier kind.
func (c *Catalog) KnownKind(kind string) bool {
	return c.knownKinds[kind]
}

// KindOwners returns the artifact kinds that declare an identifier kind.
func (c *Catalog) KindOwners(kind string) []string {
	return c.kindOwners[kind]
}

// Segment is one (kind, slug) pair of a composite identifier.
type Segment struct {
	Kind string
	Slug string
}

// ID is a parsed cpt identifier.
type ID struct {
	Raw    string
	System string
	Chain  []Segment
	// Unrecognized is set when the token after the system slug is not a
	// known identifier kind. Guess then holds that token.
	Unrecognized bool
	Guess        string
}

// Kind returns the identifier kind: the kind of the last chain segment.
func (id ID) Kind() string {
	if len(id.Chain) == 0 {
		return ""
	}
	return id.Chain[len(id.Chain)-1].Kind
}

// ParseID splits a cpt identifier into system slug and kind chain.
//
// The system is the longest registered slug that prefixes the id. When no
// systems are registered the first token is taken as the system. Kind
// tokens are recognized only if they belong to the catalog's known-kind
// set; a known kind starts a new segment only once the current segment has
// a slug, so slugs may reuse kind words.
func (c *Catalog) ParseID(raw string) (ID, error) {
	id := ID{Raw: raw}
	if !strings.HasPrefix(raw, "cpt-") {
		return id, fmt.Errorf("identifier %q does not start with \"cpt-\"", raw)
	}
	rest := strings.TrimPrefix(raw, "cpt-")

	system := ""
	for _, s := range c.systems {
		if strings.HasPrefix(rest, s+"-") {
			system = s
			break
		}
	}
	if system == "" {
		if len(c.systems) > 0 {
			return id, fmt.Errorf("identifier %q does not match any registered system", raw)
		}
		idx := strings.Index(rest, "-")
		if idx <= 0 {
			return id, fmt.Errorf("identifier %q has no kind", raw)
		}
		system = rest[:idx]
	}
	id.System = system
	rest = strings.TrimPrefix(rest, system+"-")

	tokens := strings.Split(rest, "-")
	var current *Segment
	for i := 0; i < len(tokens); {
		if current == nil || current.Slug != "" {
			if kind, n := c.matchKind(tokens, i); n > 0 && i+n < len(tokens) {
				id.Chain = append(id.Chain, Segment{Kind: kind})
				current = &id.Chain[len(id.Chain)-1]
				i += n
				continue
			}
		}
		if current == nil {
			id.Unrecognized = true
			id.Guess = tokens[0]
			return id, nil
		}
		if current.Slug == "" {
			current.Slug = tokens[i]
		} else {
			current.Slug += "-" + tokens[i]
		}
		i++
	}
	if current == nil || current.Slug == "" {
		return id, fmt.Errorf("identifier %q has no slug", raw)
	}
	return id, nil
}

// matchKind finds the longest known kind made of tokens[i:j].
func (c *Catalog) matchKind(tokens []string, i int) (string, int) {
	for j := len(tokens); j > i; j-- {
		candidate := strings.Join(tokens[i:j], "-")
		if c.knownKinds[candidate] {
			return candidate, j - i
		}
	}
	return "", 0
}

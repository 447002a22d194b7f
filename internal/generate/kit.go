package generate

import (
	"fmt"
	"log"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/blueprint"
)

// Kit-level file names.
const (
	SkillFile     = "SKILL.md"
	SyspromptFile = "sysprompt.md"
	ManifestFile  = "manifest.toml"
	WorkflowDir   = "workflow"
)

// KitOutput is the full generated tree for one kit, keyed by slash
// separated paths relative to the kit directory.
type KitOutput struct {
	Slug     string
	Version  string
	Files    map[string]string
	Warnings []string
}

// Paths returns the generated file paths in sorted order.
func (k *KitOutput) Paths() []string {
	paths := make([]string, 0, len(k.Files))
	for p := range k.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ArtifactDir returns where a blueprint's documents go inside the kit:
// artifacts/{KIND} for artifact blueprints, codebase for the rest.
func ArtifactDir(bp *blueprint.ParsedBlueprint) string {
	if bp.IsCodebase() {
		return "codebase"
	}
	return path.Join("artifacts", bp.ArtifactKind)
}

// GroupByKit splits blueprints by kit slug. Blueprints that do not name a
// kit fall into defaultSlug.
func GroupByKit(bps []*blueprint.ParsedBlueprint, defaultSlug string) map[string][]*blueprint.ParsedBlueprint {
	out := make(map[string][]*blueprint.ParsedBlueprint)
	for _, bp := range bps {
		slug := bp.KitSlug
		if slug == "" {
			slug = defaultSlug
		}
		out[slug] = append(out[slug], bp)
	}
	return out
}

// BuildKit renders every document of one kit. Blueprints are processed in
// the order given; callers pass them sorted for stable output.
func BuildKit(slug string, bps []*blueprint.ParsedBlueprint) (*KitOutput, error) {
	if slug == "" {
		return nil, fmt.Errorf("kit slug is required")
	}
	kit := &KitOutput{Slug: slug, Files: make(map[string]string)}

	dirs := make(map[string]string)
	var (
		skills     []skillSection
		sysprompts []string
		workflows  = make(map[string]string)
	)

	for _, bp := range bps {
		if !bp.OK() {
			return nil, fmt.Errorf("blueprint %s has %d parse error(s)", label(bp), len(bp.Errors))
		}
		dir := ArtifactDir(bp)
		if prev, dup := dirs[dir]; dup {
			return nil, fmt.Errorf("blueprints %s and %s both generate %s", prev, label(bp), dir)
		}
		dirs[dir] = label(bp)

		files, err := Artifact(bp)
		if err != nil {
			return nil, err
		}
		for name, content := range files {
			kit.Files[path.Join(dir, name)] = content
		}

		kit.noteVersion(bp)

		for _, m := range bp.MarkersOf(blueprint.KindSkill) {
			if body := strings.TrimSpace(m.Markdown); body != "" {
				skills = append(skills, skillSection{subject: subject(bp), body: body})
			}
		}
		for _, m := range bp.MarkersOf(blueprint.KindSysprompt) {
			if body := strings.TrimSpace(m.Markdown); body != "" {
				sysprompts = append(sysprompts, body)
			}
		}
		for _, m := range bp.MarkersOf(blueprint.KindWorkflow) {
			p, ok := m.Payload.(*blueprint.WorkflowPayload)
			if !ok {
				continue
			}
			name := path.Join(WorkflowDir, p.Name+".md")
			if _, dup := workflows[name]; dup {
				return nil, fmt.Errorf("workflow %q declared more than once in kit %s", p.Name, slug)
			}
			content, err := renderWorkflow(p, m.Markdown)
			if err != nil {
				return nil, err
			}
			workflows[name] = content
		}
	}

	for name, content := range workflows {
		kit.Files[name] = content
	}
	if len(skills) > 0 {
		content, err := renderSkill(kit, bps, skills)
		if err != nil {
			return nil, err
		}
		kit.Files[SkillFile] = content
	}
	if len(sysprompts) > 0 {
		kit.Files[SyspromptFile] = strings.Join(sysprompts, "\n\n") + "\n"
	}

	manifest, err := renderManifest(kit, bps)
	if err != nil {
		return nil, err
	}
	kit.Files[ManifestFile] = manifest
	return kit, nil
}

// noteVersion takes the first declared version as the kit version and
// warns when blueprints disagree.
func (k *KitOutput) noteVersion(bp *blueprint.ParsedBlueprint) {
	if bp.Version == "" {
		return
	}
	if k.Version == "" {
		k.Version = bp.Version
		return
	}
	if blueprint.CanonicalVersion(bp.Version) != blueprint.CanonicalVersion(k.Version) {
		msg := fmt.Sprintf("kit %s: blueprint %s declares version %s, kit uses %s", k.Slug, label(bp), bp.Version, k.Version)
		log.Printf("[WARN] %s", msg)
		k.Warnings = append(k.Warnings, msg)
	}
}

type skillSection struct {
	subject string
	body    string
}

type skillFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version,omitempty"`
}

func renderSkill(kit *KitOutput, bps []*blueprint.ParsedBlueprint, sections []skillSection) (string, error) {
	fm := skillFrontmatter{Name: kit.Slug, Version: kit.Version}
	for _, bp := range bps {
		if bp.Description != "" {
			fm.Description = bp.Description
			break
		}
	}
	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("encoding SKILL.md frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(data)
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "# %s\n\n", kit.Slug)
	for _, s := range sections {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", s.subject, s.body)
	}
	return finish(&sb), nil
}

type workflowFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

func renderWorkflow(p *blueprint.WorkflowPayload, body string) (string, error) {
	data, err := yaml.Marshal(workflowFrontmatter{Name: p.Name, Description: p.Description})
	if err != nil {
		return "", fmt.Errorf("encoding workflow %s frontmatter: %w", p.Name, err)
	}
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(data)
	sb.WriteString("---\n\n")
	if body = strings.TrimSpace(body); body != "" {
		sb.WriteString(body + "\n")
	}
	return finish(&sb), nil
}

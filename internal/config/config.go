// Package config loads the project file cpt.yaml and applies CPT_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FileName is the default project file name.
const FileName = "cpt.yaml"

// Config is the project configuration.
type Config struct {
	// Blueprints is the directory holding *.md blueprint sources
	Blueprints string `yaml:"blueprints"`

	// Constraints is the compiled constraints file
	Constraints string `yaml:"constraints"`

	// OutputDir receives generated kits under kits/{slug}
	OutputDir string `yaml:"output_dir"`

	// Kit is the slug for blueprints that do not name one
	Kit string `yaml:"kit"`

	Systems []System `yaml:"systems"`

	// Ignore holds doublestar patterns excluded from codebase scans
	Ignore []string `yaml:"ignore,omitempty"`

	Scan    ScanConfig    `yaml:"scan"`
	History HistoryConfig `yaml:"history"`

	// root is the directory relative paths resolve against
	root string
}

// System is one registered system.
type System struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`

	// Traceability is FULL (default) or DOCS-ONLY
	Traceability string `yaml:"traceability,omitempty"`

	Artifacts []Artifact     `yaml:"artifacts"`
	Codebase  []CodebaseRoot `yaml:"codebase,omitempty"`
}

// Artifact maps a path or doublestar glob to an artifact kind.
type Artifact struct {
	Path string `yaml:"path"`
	Kind string `yaml:"kind"`
}

// CodebaseRoot is a source directory and the extensions scanned in it.
type CodebaseRoot struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// ArtifactFile is one resolved artifact.
type ArtifactFile struct {
	Path   string
	Kind   string
	System string
}

// Default returns the default configuration rooted at the working
// directory.
func Default() *Config {
	return &Config{
		Blueprints:  "blueprints",
		Constraints: ".gen/constraints.toml",
		OutputDir:   ".gen",
		Kit:         "sdlc",
		Systems: []System{
			{
				Name:         "App",
				Slug:         "app",
				Traceability: "FULL",
				Artifacts: []Artifact{
					{Path: "architecture/PRD.md", Kind: "PRD"},
					{Path: "architecture/DESIGN.md", Kind: "DESIGN"},
					{Path: "architecture/features/*.md", Kind: "FEATURE"},
				},
				Codebase: []CodebaseRoot{
					{Path: "src", Extensions: []string{".go", ".py", ".ts"}},
				},
			},
		},
		Ignore:  []string{"**/vendor/**", "**/node_modules/**"},
		Scan:    DefaultScanConfig(),
		History: DefaultHistoryConfig(),
		root:    ".",
	}
}

// Load reads a YAML project file over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	cfg.Systems = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	cfg.root = filepath.Dir(path)

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to the defaults (with environment
// overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg = Default()
	cfg.root = filepath.Dir(path)
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveDefault writes the default configuration to a file.
func SaveDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
//
// Environment variables:
//   - CPT_OUTPUT_DIR: generated output directory
//   - CPT_CONSTRAINTS: compiled constraints file
//   - CPT_BLUEPRINTS: blueprint directory
//   - CPT_SCAN_WORKERS, CPT_MIN_COVERAGE, CPT_MIN_GRANULARITY: see ScanConfig
//   - CPT_HISTORY_ENABLED, CPT_HISTORY_PATH: see HistoryConfig
func (c *Config) ApplyEnv() error {
	if err := parseEnvString("CPT_OUTPUT_DIR", &c.OutputDir); err != nil {
		return err
	}
	if err := parseEnvString("CPT_CONSTRAINTS", &c.Constraints); err != nil {
		return err
	}
	if err := parseEnvString("CPT_BLUEPRINTS", &c.Blueprints); err != nil {
		return err
	}
	if err := c.Scan.applyEnv(); err != nil {
		return err
	}
	return c.History.applyEnv()
}

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must be set")
	}
	if c.Kit != "" && !slugRe.MatchString(c.Kit) {
		return fmt.Errorf("kit %q must be a lowercase slug", c.Kit)
	}

	seen := make(map[string]bool)
	for i, s := range c.Systems {
		if !slugRe.MatchString(s.Slug) {
			return fmt.Errorf("systems[%d]: slug %q must be a lowercase slug", i, s.Slug)
		}
		if seen[s.Slug] {
			return fmt.Errorf("systems[%d]: duplicate slug %q", i, s.Slug)
		}
		seen[s.Slug] = true

		switch strings.ToUpper(s.Traceability) {
		case "", "FULL", "DOCS-ONLY":
		default:
			return fmt.Errorf("systems[%d]: traceability must be FULL or DOCS-ONLY (got %q)", i, s.Traceability)
		}
		for j, a := range s.Artifacts {
			if a.Path == "" || a.Kind == "" {
				return fmt.Errorf("systems[%d].artifacts[%d]: path and kind are required", i, j)
			}
			if !doublestar.ValidatePattern(filepath.ToSlash(a.Path)) {
				return fmt.Errorf("systems[%d].artifacts[%d]: invalid pattern %q", i, j, a.Path)
			}
		}
		for j, r := range s.Codebase {
			if r.Path == "" {
				return fmt.Errorf("systems[%d].codebase[%d]: path is required", i, j)
			}
		}
	}
	for _, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	if err := c.Scan.Validate(); err != nil {
		return err
	}
	return c.History.Validate()
}

// Root returns the directory relative paths resolve against.
func (c *Config) Root() string {
	if c.root == "" {
		return "."
	}
	return c.root
}

// Resolve makes path absolute-or-root-relative. Absolute paths pass
// through.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root(), path)
}

// SystemSlugs returns the registered system slugs.
func (c *Config) SystemSlugs() []string {
	slugs := make([]string, 0, len(c.Systems))
	for _, s := range c.Systems {
		slugs = append(slugs, s.Slug)
	}
	return slugs
}

// ArtifactFiles expands every system's artifact patterns. Files matched by
// more than one pattern keep their first kind. The result is sorted by path.
func (c *Config) ArtifactFiles() ([]ArtifactFile, error) {
	seen := make(map[string]bool)
	var out []ArtifactFile
	for _, s := range c.Systems {
		for _, a := range s.Artifacts {
			matches, err := doublestar.FilepathGlob(c.Resolve(a.Path))
			if err != nil {
				return nil, fmt.Errorf("expanding %s: %w", a.Path, err)
			}
			for _, m := range matches {
				if seen[m] {
					continue
				}
				seen[m] = true
				out = append(out, ArtifactFile{Path: m, Kind: a.Kind, System: s.Slug})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

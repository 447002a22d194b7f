package generate

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/blueprint"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/storage"
)

// Manifest records what a kit generation produced.
type Manifest struct {
	Kit        string              `toml:"kit"`
	Version    string              `toml:"version,omitempty"`
	Files      []string            `toml:"files"`
	Blueprints []ManifestBlueprint `toml:"blueprint,omitempty"`
}

// ManifestBlueprint is one source blueprint of a kit.
type ManifestBlueprint struct {
	Kind    string `toml:"kind,omitempty"`
	Source  string `toml:"source,omitempty"`
	Version string `toml:"version,omitempty"`
}

func renderManifest(kit *KitOutput, bps []*blueprint.ParsedBlueprint) (string, error) {
	m := Manifest{Kit: kit.Slug, Version: kit.Version, Files: kit.Paths()}
	for _, bp := range bps {
		entry := ManifestBlueprint{Kind: bp.ArtifactKind, Version: bp.Version}
		if bp.Path != "" {
			entry.Source = filepath.Base(bp.Path)
		}
		m.Blueprints = append(m.Blueprints, entry)
	}
	data, err := toml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}
	return string(data), nil
}

// ReadManifest loads the manifest of a previously generated kit directory.
func ReadManifest(kitDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(kitDir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest in %s: %w", kitDir, err)
	}
	return &m, nil
}

// KitDir is where a kit's generated tree lives under outputDir.
func KitDir(outputDir, slug string) string {
	return filepath.Join(outputDir, "kits", slug)
}

// WriteResult reports what Write did.
type WriteResult struct {
	Dir      string
	Files    []string
	Warnings []string
}

// Write replaces the kit's directory under outputDir with kit's files. The
// old tree is removed first, never patched. Writers of the same kit are
// serialized by a lock file next to the kit directory.
func Write(outputDir string, kit *KitOutput) (*WriteResult, error) {
	dir := KitDir(outputDir, kit.Slug)
	lockPath := storage.LockPath(outputDir, kit.Slug)
	if err := storage.AcquireLock(lockPath, kit.Slug); err != nil {
		return nil, err
	}
	defer func() {
		if err := storage.ReleaseLock(lockPath); err != nil {
			log.Printf("[WARN] %v", err)
		}
	}()

	res := &WriteResult{Dir: dir, Files: kit.Paths()}
	res.Warnings = append(res.Warnings, kit.Warnings...)

	prev, err := ReadManifest(dir)
	switch {
	case err == nil:
		if w := downgradeWarning(prev.Version, kit.Version, kit.Slug); w != "" {
			res.Warnings = append(res.Warnings, w)
		}
	case !errors.Is(err, fs.ErrNotExist):
		res.Warnings = append(res.Warnings, fmt.Sprintf("ignoring unreadable manifest: %v", err))
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("removing %s: %w", dir, err)
	}
	for _, rel := range res.Files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(kit.Files[rel]), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", full, err)
		}
	}
	return res, nil
}

// downgradeWarning reports regenerating a kit at a lower version than the
// one already on disk.
func downgradeWarning(oldVersion, newVersion, slug string) string {
	o, n := blueprint.CanonicalVersion(oldVersion), blueprint.CanonicalVersion(newVersion)
	if !semver.IsValid(o) || !semver.IsValid(n) {
		return ""
	}
	if semver.Compare(n, o) < 0 {
		return fmt.Sprintf("kit %s version %s is lower than the previously generated %s", slug, newVersion, oldVersion)
	}
	return ""
}

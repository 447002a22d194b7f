package codebase

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// Root is one codebase directory to scan. Extensions are matched
// case-insensitively with their leading dot (".go"); empty means any file.
type Root struct {
	Path       string
	Extensions []string
}

// DefaultIgnore is used when a walker has no ignore patterns.
var DefaultIgnore = []string{
	"**/vendor/**",
	"**/node_modules/**",
	"**/.git/**",
	"**/*_generated.go",
}

// Walker lists source files under a set of roots.
type Walker struct {
	Roots []Root
	// Ignore holds doublestar patterns matched against slash-separated
	// paths relative to each root.
	Ignore []string
}

// NewWalker creates a walker; nil ignore patterns select DefaultIgnore.
func NewWalker(roots []Root, ignore []string) *Walker {
	if ignore == nil {
		ignore = DefaultIgnore
	}
	return &Walker{Roots: roots, Ignore: ignore}
}

// Files returns every matching file, sorted and deduplicated.
func (w *Walker) Files(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, root := range w.Roots {
		exts := make(map[string]bool, len(root.Extensions))
		for _, e := range root.Extensions {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			exts[strings.ToLower(e)] = true
		}

		err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rel, err := filepath.Rel(root.Path, path)
			if err != nil {
				return err
			}
			if rel != "." && w.excluded(filepath.ToSlash(rel), d) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if len(exts) > 0 && !exts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root.Path, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// excluded checks hidden entries and the ignore patterns. Directories are
// also tested with a trailing "/**" element so "vendor/**" prunes vendor.
func (w *Walker) excluded(rel string, d fs.DirEntry) bool {
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return true
	}
	for _, pattern := range w.Ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		if d.IsDir() {
			if ok, err := doublestar.Match(pattern, rel+"/x"); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// Cache holds parsed code files by path so validation and coverage share
// one parse per file.
type Cache struct {
	mu    sync.Mutex
	files map[string]*CodeFile
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{files: make(map[string]*CodeFile)}
}

// Get returns the cached file, loading it on first use.
func (c *Cache) Get(path string) (*CodeFile, error) {
	c.mu.Lock()
	f, ok := c.files[path]
	c.mu.Unlock()
	if ok {
		return f, nil
	}
	f, err := LoadCodeFile(path)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.files[path]; ok {
		return existing, nil
	}
	c.files[path] = f
	return f, nil
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.files)
}

// LoadAll loads and parses files with at most workers goroutines (0 means
// no limit). The returned slice is in input order. A read failure stops
// the load and is returned.
func (c *Cache) LoadAll(ctx context.Context, paths []string, workers int) ([]*CodeFile, error) {
	out := make([]*CodeFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := c.Get(path)
			if err != nil {
				return err
			}
			f.parse()
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

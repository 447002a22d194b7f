package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/codebase"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/config"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/coverage"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/docscan"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/validate"
)

// project is the state one validate or coverage invocation works from.
type project struct {
	cfg     *config.Config
	catalog *constraints.Catalog
	cache   *codebase.Cache
}

// openProject loads the compiled constraints named by cfg.
func openProject(cfg *config.Config) (*project, error) {
	path := cfg.Resolve(cfg.Constraints)
	doc, err := constraints.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("constraints file %s not found (run 'cpt generate' first)", path)
		}
		return nil, err
	}
	return &project{
		cfg:     cfg,
		catalog: constraints.NewCatalog(doc, cfg.SystemSlugs()),
		cache:   codebase.NewCache(),
	}, nil
}

// scanArtifacts scans every configured artifact, grouped by system slug.
// Unreadable files become "file" errors.
func (p *project) scanArtifacts() (map[string][]*docscan.Document, report.Result, error) {
	result := report.NewResult()
	files, err := p.cfg.ArtifactFiles()
	if err != nil {
		return nil, result, err
	}
	bySystem := make(map[string][]*docscan.Document)
	for _, f := range files {
		doc, err := docscan.ScanFile(f.Path, f.Kind)
		if err != nil {
			result.AddError(report.Issue{
				Code:         "file",
				Message:      err.Error(),
				Path:         f.Path,
				ArtifactKind: f.Kind,
			})
			continue
		}
		bySystem[f.System] = append(bySystem[f.System], doc)
	}
	return bySystem, result, nil
}

// codeFiles lists and parses a system's codebase. Roots that do not exist
// are reported as warnings and skipped.
func (p *project) codeFiles(ctx context.Context, sys config.System) ([]*codebase.CodeFile, report.Result, error) {
	result := report.NewResult()
	var roots []codebase.Root
	for _, r := range sys.Codebase {
		path := p.cfg.Resolve(r.Path)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				result.AddWarning(report.Issue{
					Code:    "codebase-root-missing",
					Message: fmt.Sprintf("codebase root of system %s does not exist", sys.Slug),
					Path:    path,
				})
				continue
			}
			return nil, result, err
		}
		roots = append(roots, codebase.Root{Path: path, Extensions: r.Extensions})
	}
	if len(roots) == 0 {
		return nil, result, nil
	}

	paths, err := codebase.NewWalker(roots, p.cfg.Ignore).Files(ctx)
	if err != nil {
		return nil, result, err
	}
	files, err := p.cache.LoadAll(ctx, paths, p.cfg.Scan.Workers)
	if err != nil {
		return nil, result, err
	}
	return files, result, nil
}

type validateOptions struct {
	SkipCode bool
}

// validateProject runs artifact validation and, unless skipped, code marker
// validation and cross-validation for every system.
func validateProject(ctx context.Context, p *project, opts validateOptions) (report.Result, error) {
	bySystem, result, err := p.scanArtifacts()
	if err != nil {
		return result, err
	}

	var all []*docscan.Document
	for _, sys := range p.cfg.Systems {
		all = append(all, bySystem[sys.Slug]...)
	}
	result.Merge(validate.Documents(ctx, p.catalog, all))

	if !opts.SkipCode {
		for _, sys := range p.cfg.Systems {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			mode, err := codebase.ParseTraceMode(sys.Traceability)
			if err != nil {
				return result, err
			}
			files, walkResult, err := p.codeFiles(ctx, sys)
			if err != nil {
				return result, err
			}
			result.Merge(walkResult)
			result.Merge(codebase.ValidateAll(files))

			exp := codebase.NewExpectations(p.catalog, bySystem[sys.Slug])
			result.Merge(codebase.CrossValidate(files, exp, mode))
		}
	}

	result.Sort()
	return result, nil
}

// coverageProject scans the codebases of every system, or only of the
// named system when slug is set.
func coverageProject(ctx context.Context, cfg *config.Config, slug string) (*coverage.Report, report.Result, error) {
	p := &project{cfg: cfg, cache: codebase.NewCache()}
	result := report.NewResult()

	var paths []string
	found := slug == ""
	for _, sys := range cfg.Systems {
		if slug != "" && sys.Slug != slug {
			continue
		}
		found = true
		files, walkResult, err := p.codeFiles(ctx, sys)
		if err != nil {
			return nil, result, err
		}
		result.Merge(walkResult)
		for _, f := range files {
			paths = append(paths, f.Path)
		}
	}
	if !found {
		return nil, result, fmt.Errorf("unknown system %q", slug)
	}

	rep, err := coverage.Scan(ctx, p.cache, paths, cfg.Scan.Workers)
	if err != nil {
		return nil, result, err
	}
	return rep, result, nil
}

package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// ignoreDirs are directories skipped during the walk: build outputs,
// caches, VCS metadata and dependency directories. Any other directory
// whose name starts with "." is skipped as hidden tooling.
var ignoreDirs = map[string]bool{
	"node_modules": true, "__pycache__": true, "vendor": true,
	"dist": true, "build": true, "target": true, "bin": true, "obj": true,
	"out": true, "venv": true, "coverage": true,
}

// Result is the output of one scan.
type Result struct {
	Projects  []DiscoveredProject
	Manifests []Manifest
	Report    issues.Report
}

// Scanner walks a repository and discovers projects from their manifests.
type Scanner struct {
	root    string
	exclude []string
	maxSize int64
	workers int
}

// NewScanner creates a Scanner from the effective configuration.
func NewScanner(cfg config.Config) *Scanner {
	workers := cfg.Scan.Workers
	if workers < 1 {
		workers = 1
	}
	return &Scanner{
		root:    cfg.RepoRoot,
		exclude: cfg.Scan.Exclude,
		maxSize: cfg.Scan.MaxManifestBytes,
		workers: workers,
	}
}

type candidate struct {
	abs  string
	rel  string
	kind ManifestKind
}

// Scan discovers every project under the root. A manifest that cannot be
// read or parsed is skipped with a warning; it never aborts the scan.
// The only error returned is ctx's.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &Result{}

	candidates := s.walk(&res.Report)

	manifests := make([]*Manifest, len(candidates))
	skipped := make([]*issues.Issue, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, issue := s.load(c)
			manifests[i], skipped[i] = m, issue
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range candidates {
		if skipped[i] != nil {
			res.Report.Add(*skipped[i])
			continue
		}
		if manifests[i] != nil {
			res.Manifests = append(res.Manifests, *manifests[i])
		}
	}

	res.Projects = projectsFrom(res.Manifests)
	res.Report.Sort()
	return res, nil
}

// walk collects manifest candidates in lexical path order.
func (s *Scanner) walk(report *issues.Report) []candidate {
	var out []candidate
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // graceful degradation
		}
		rel, _ := filepath.Rel(s.root, p)
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			name := d.Name()
			if ignoreDirs[name] || strings.HasPrefix(name, ".") || s.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		kind := manifestKindFor(d.Name())
		if kind == "" || s.excluded(rel) {
			return nil
		}
		out = append(out, candidate{abs: p, rel: rel, kind: kind})
		return nil
	})
	if err != nil {
		report.Add(issues.Warnf(issues.ManifestSkipped, "walking %s: %v", s.root, err))
	}
	return out
}

func (s *Scanner) excluded(rel string) bool {
	for _, pattern := range s.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) load(c candidate) (*Manifest, *issues.Issue) {
	skip := func(format string, args ...any) (*Manifest, *issues.Issue) {
		is := issues.Warnf(issues.ManifestSkipped, format, args...).
			At(c.rel).
			In("projects")
		return nil, &is
	}

	info, err := os.Stat(c.abs)
	if err != nil {
		return skip("manifest unreadable: %v", err)
	}
	if s.maxSize > 0 && info.Size() > s.maxSize {
		return skip("manifest skipped: %s exceeds the %s limit",
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(s.maxSize)))
	}
	data, err := os.ReadFile(c.abs)
	if err != nil {
		return skip("manifest unreadable: %v", err)
	}
	m, err := ParseManifest(c.kind, c.abs, data)
	if err != nil {
		return skip("manifest skipped: %v", err)
	}
	m.Path = c.rel
	return &m, nil
}

// projectsFrom classifies manifests and guarantees unique project names
// by qualifying later duplicates with their directory.
func projectsFrom(manifests []Manifest) []DiscoveredProject {
	sort.SliceStable(manifests, func(i, j int) bool { return manifests[i].Path < manifests[j].Path })

	seen := make(map[string]bool, len(manifests))
	projects := make([]DiscoveredProject, 0, len(manifests))
	for _, m := range manifests {
		dir := path.Dir(m.Path)
		name := strings.TrimSpace(m.Name)
		if name == "" {
			name = path.Base(dir)
		}
		if seen[strings.ToLower(name)] {
			name = fmt.Sprintf("%s (%s)", name, dir)
		}
		seen[strings.ToLower(name)] = true

		projects = append(projects, DiscoveredProject{
			Name:             name,
			Type:             Classify(m),
			Path:             dir,
			ManifestPath:     m.Path,
			ManifestKind:     m.Kind,
			FrameworkVersion: m.FrameworkVersion,
			DependencyCount:  m.DependencyCount(),
		})
	}
	return projects
}

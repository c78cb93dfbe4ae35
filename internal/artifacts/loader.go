package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/frontmatter"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

// Loader reads artifacts from disk. A Loader belongs to one request: its
// cache makes repeated visits during a single graph build consistent and
// cheap, and it is discarded afterwards.
type Loader struct {
	root     string
	maxBytes int64
	workers  int
	cache    *lru.Cache[string, *Artifact]
}

// NewLoader creates a Loader for cfg.
func NewLoader(cfg config.Config) (*Loader, error) {
	size := cfg.Artifacts.CacheSize
	if size < 1 {
		size = 1
	}
	cache, err := lru.New[string, *Artifact](size)
	if err != nil {
		return nil, fmt.Errorf("creating artifact cache: %w", err)
	}
	workers := cfg.Scan.Workers
	if workers < 1 {
		workers = 1
	}
	return &Loader{root: cfg.RepoRoot, maxBytes: cfg.Artifacts.MaxFileBytes, workers: workers, cache: cache}, nil
}

// Root returns the repository root the loader resolves against.
func (l *Loader) Root() string { return l.root }

// Exists reports whether the resolved path names an existing regular file.
func (l *Loader) Exists(rel string) bool {
	if rel == "" || Outside(rel) {
		return false
	}
	if l.cache.Contains(rel) {
		return true
	}
	info, err := os.Stat(l.abs(rel))
	return err == nil && !info.IsDir()
}

func (l *Loader) abs(rel string) string {
	return filepath.Join(l.root, filepath.FromSlash(rel))
}

// Load returns the artifact at rel. It returns an error wrapping
// fs.ErrNotExist when the file is missing.
func (l *Loader) Load(rel string) (*Artifact, error) {
	if a, ok := l.cache.Get(rel); ok {
		return a, nil
	}
	if rel == "" || Outside(rel) {
		return nil, fmt.Errorf("%s: %w", rel, fs.ErrNotExist)
	}
	a, err := l.read(rel)
	if err != nil {
		return nil, err
	}
	l.cache.Add(rel, a)
	return a, nil
}

func (l *Loader) read(rel string) (*Artifact, error) {
	abs := l.abs(rel)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", rel, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("artifact %s is a directory: %w", rel, fs.ErrNotExist)
	}

	a := &Artifact{Path: rel, DirType: DirTypeOf(rel)}
	a.DeclaredType = a.DirType
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		a.TooLarge = true
		return a, nil
	}
	if !strings.EqualFold(path.Ext(rel), ".md") {
		return a, nil // non-document targets are graph leaves
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", rel, err)
	}
	Parse(a, data)
	return a, nil
}

// Parse fills a's metadata and references from the file content.
func Parse(a *Artifact, data []byte) {
	body := string(data)
	doc := frontmatter.Parse(data)
	if doc != nil {
		a.Document = doc
		a.FrontMatter = doc.Fields
		body = doc.Body
		if t := Type(strings.TrimSpace(cast.ToString(doc.Get("type")))); t.Valid() {
			a.DeclaredType = t
		}
	}
	a.RawDependencies = DeclaredDependencies(doc)
	a.UsedBy = DeclaredUsedBy(doc)
	a.InlineReferences = InlineReferences(body)
	a.References = mergeReferences(a.RawDependencies, a.InlineReferences)
}

// List returns every managed artifact path (*.md under the artifact
// directories), sorted.
func (l *Loader) List() ([]string, error) {
	var out []string
	for _, dir := range ArtifactDirs {
		base := filepath.Join(l.root, config.BotDir, dir)
		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".md") {
				return nil
			}
			rel, err := filepath.Rel(l.root, p)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", dir, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// LoadAll loads paths in parallel. Unreadable files are omitted from the
// result; ordering follows paths.
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]*Artifact, error) {
	loaded := make([]*Artifact, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := l.Load(p)
			if err == nil {
				loaded[i] = a
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]*Artifact, 0, len(paths))
	for _, a := range loaded {
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

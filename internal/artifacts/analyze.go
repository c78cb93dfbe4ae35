package artifacts

import (
	"context"
	"sort"

	"github.com/HendryAvila/dotbot/internal/issues"
)

const category = "dependencies"

// Analysis is the full-graph integrity result for the managed tree.
type Analysis struct {
	Artifacts []*Artifact `json:"-"`
	Graph     *Graph      `json:"graph"`
	Orphans   []string    `json:"orphans"`
	Report    issues.Report
}

// Analyze loads every managed artifact, builds the full graph and reports
// cycles, broken references and orphans.
func Analyze(ctx context.Context, loader *Loader) (*Analysis, error) {
	paths, err := loader.List()
	if err != nil {
		return nil, err
	}
	all, err := loader.LoadAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	g := NewBuilder(loader).Build(paths)
	res := &Analysis{
		Artifacts: all,
		Graph:     g,
		Orphans:   Orphans(all, g, loader.Exists),
	}
	res.Report.Add(GraphIssues(g)...)
	for _, o := range res.Orphans {
		res.Report.Add(issues.Warnf(issues.OrphanArtifact,
			"%s is not reachable from any entry point", o).
			At(o).
			In(category).
			Recommend("Reference it from a command, spec, standard or product document, declare used_by, or delete it."))
	}
	for _, a := range all {
		if a.TooLarge {
			res.Report.Add(issues.Warnf(issues.CheckFailed,
				"%s exceeds the artifact size limit; its references were not analyzed", a.Path).
				At(a.Path).
				In(category))
		}
	}
	res.Report.Sort()
	return res, nil
}

// GraphIssues converts cycles and broken references into issues.
func GraphIssues(g *Graph) []issues.Issue {
	var out []issues.Issue
	for _, c := range g.Cycles {
		out = append(out, issues.Errorf(issues.CircularDependency,
			"circular dependency: %s", CyclePath(c)).
			At(c[0]).
			In(category).
			With("cycle", c).
			Recommend("Remove one of the references so the dependency chain terminates."))
	}
	for _, br := range g.Broken {
		out = append(out, issues.Errorf(issues.BrokenFileReference,
			"%s references %s, which does not exist", br.Source, br.Raw).
			At(br.Source).
			In(category).
			With("source", br.Source).
			With("reference", br.Raw).
			With("target", br.Target).
			Recommendf("Create %s or fix the reference.", br.Target))
	}
	return out
}

// Orphans returns the artifacts that are neither entry points nor
// reachable. Reachable is the forward closure, over g's edges, of the
// entry points together with every backlinked artifact: those named in a
// used_by list, and those whose used_by names an existing artifact.
func Orphans(all []*Artifact, g *Graph, exists func(string) bool) []string {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	var queue []string
	seen := map[string]bool{}
	push := func(p string) {
		if !seen[p] {
			seen[p] = true
			queue = append(queue, p)
		}
	}
	for _, a := range all {
		if InEntryDir(a.Path) {
			push(a.Path)
		}
		for _, u := range a.UsedBy {
			target := ResolvePath(u)
			if target == "" {
				continue
			}
			push(target)
			if exists(target) {
				push(a.Path)
			}
		}
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, next := range adj[p] {
			push(next)
		}
	}

	var orphans []string
	for _, a := range all {
		if !seen[a.Path] {
			orphans = append(orphans, a.Path)
		}
	}
	sort.Strings(orphans)
	if orphans == nil {
		orphans = []string{}
	}
	return orphans
}

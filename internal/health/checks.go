package health

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/HendryAvila/dotbot/internal/artifacts"
	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/discovery"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/solution"
)

// RequiredDirs must exist under .bot for the basic tier to pass.
var RequiredDirs = []string{
	artifacts.DirWorkflows, artifacts.DirAgents, artifacts.DirStandards,
	artifacts.DirCommands, artifacts.DirProduct,
}

// Product documents checked by the standard tier.
const (
	MissionDoc   = "mission.md"
	TechStackDoc = "tech-stack.md"
	RoadmapDoc   = "roadmap.md"
)

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func botRel(parts ...string) string {
	return filepath.ToSlash(filepath.Join(append([]string{config.BotDir}, parts...)...))
}

// structure reports whether the managed tree exists. When it does not,
// a single DOTBOT_NOT_FOUND is recorded and every other check is skipped.
func (r *run) structure() (bool, error) {
	c := r.begin("structure")
	defer c.end()

	if !isDir(r.cfg.BotPath()) {
		c.fail("bot-directory", solution.DotbotNotFound(r.cfg.RepoRoot))
		return false, nil
	}
	c.pass("bot-directory", "%s directory found", config.BotDir)

	for _, d := range RequiredDirs {
		rel := botRel(d)
		if isDir(filepath.Join(r.cfg.BotPath(), d)) {
			c.pass("dir:"+d, "%s present", rel)
			continue
		}
		c.fail("dir:"+d, issues.Errorf(issues.DirectoryMissing, "required directory %s is missing", rel).
			At(rel).
			Recommendf("Reinstall dotbot or create %s.", rel))
	}
	return true, nil
}

func (r *run) state() error {
	c := r.begin("state")
	defer c.end()

	rel := botRel(config.StateFile)
	data, err := os.ReadFile(r.cfg.StatePath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.fail("state-file", issues.Warnf(issues.StateMissing, "%s not found", rel).
			At(rel).
			Recommend("Run the dotbot installer to initialize state."))
		return nil
	case err != nil:
		c.fail("state-file", issues.Errorf(issues.StateInvalid, "%s unreadable: %v", rel, err).At(rel))
		return nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		c.fail("state-file", issues.Errorf(issues.StateInvalid, "%s is not valid JSON: %v", rel, err).
			At(rel).
			Recommend("Restore the state file from version control or re-initialize it."))
		return nil
	}
	c.pass("state-file", "%s parses", rel)
	return nil
}

// listArtifacts lists managed artifacts once per run.
func (r *run) listArtifacts() ([]string, error) {
	if r.paths != nil {
		return r.paths, nil
	}
	paths, err := r.loader.List()
	if err != nil {
		return nil, err
	}
	if paths == nil {
		paths = []string{}
	}
	r.paths = paths
	return paths, nil
}

func (r *run) artifactCounts() error {
	c := r.begin("artifacts")
	defer c.end()

	paths, err := r.listArtifacts()
	if err != nil {
		return err
	}
	counts := map[artifacts.Type]int{}
	for _, p := range paths {
		counts[artifacts.DirTypeOf(p)]++
	}

	expect := []struct {
		name string
		typ  artifacts.Type
		min  int
	}{
		{"agents", artifacts.TypeAgent, r.cfg.Health.ExpectedAgents},
		{"workflows", artifacts.TypeWorkflow, r.cfg.Health.ExpectedWorkflows},
		{"standards", artifacts.TypeStandard, r.cfg.Health.ExpectedStandards},
	}
	for _, e := range expect {
		found := counts[e.typ]
		var ch *Check
		switch {
		case e.typ == artifacts.TypeStandard && found == 0:
			ch = c.fail(e.name, issues.Warnf(issues.StandardsNotFound, "no standards found in %s", botRel(artifacts.DirStandards)).
				At(botRel(artifacts.DirStandards)).
				Recommend("Add coding standards so agents follow project conventions."))
		case found < e.min:
			ch = c.fail(e.name, issues.Warnf(issues.CountBelowExpected,
				"found %d %s, expected at least %d", found, e.name, e.min).
				At(botRel(e.name)).
				With("found", found).
				With("expected", e.min))
		default:
			ch = c.pass(e.name, "found %d %s", found, e.name)
		}
		ch.Details = map[string]any{"found": found, "expected": e.min}
	}
	c.pass("commands", "found %d commands", counts[artifacts.TypeCommand]).Details = map[string]any{"found": counts[artifacts.TypeCommand]}
	return nil
}

func (r *run) product() error {
	c := r.begin("product")
	defer c.end()

	docs := []struct {
		file string
		code issues.Code
		hint string
	}{
		{MissionDoc, issues.ProductDocMissing, "Describe the product mission so agents understand the goal."},
		{TechStackDoc, issues.TechStackMissing, "Document the tech stack so agents pick matching tools."},
		{RoadmapDoc, issues.ProductDocMissing, "Add a roadmap to give agents planning context."},
	}
	for _, d := range docs {
		rel := botRel(artifacts.DirProduct, d.file)
		if isFile(filepath.Join(r.cfg.BotPath(), artifacts.DirProduct, d.file)) {
			c.pass(d.file, "%s present", rel)
			continue
		}
		c.fail(d.file, issues.Warnf(d.code, "%s is missing", rel).At(rel).Recommend(d.hint))
	}
	return nil
}

func (r *run) loadProjects() (*solution.Structure, error) {
	if r.projects != nil {
		return r.projects, nil
	}
	st, report, err := r.solution.Structure(r.ctx)
	if err != nil {
		return nil, err
	}
	r.projects = st
	r.projectReport = report
	return st, nil
}

func (r *run) projectDiscovery() error {
	c := r.begin("projects")
	defer c.end()

	st, err := r.loadProjects()
	if err != nil {
		return err
	}
	c.file("discovery", r.projectReport.All())
	if st.Total == 0 {
		c.fail("discovery", issues.Warnf(issues.NoProjects, "no projects were discovered").
			Recommend("Check that manifests exist and are not excluded by scan.exclude."))
		return nil
	}
	ch := c.pass("discovery", "discovered %d project(s), %d registered", st.Total, st.Registered)
	ch.Details = map[string]any{"total": st.Total, "registered": st.Registered, "byType": st.CountsByType}
	return nil
}

func (r *run) frontmatter() error {
	c := r.begin("frontmatter")
	defer c.end()

	paths, err := r.listArtifacts()
	if err != nil {
		return err
	}
	all, err := r.loader.LoadAll(r.ctx, paths)
	if err != nil {
		return err
	}
	invalid := 0
	for _, a := range all {
		found := artifacts.ValidateSchema(a)
		if len(found) > 0 {
			invalid++
		}
		c.file(a.Path, found)
	}
	c.pass("schema", "validated %d artifact(s), %d with findings", len(all), invalid)
	return nil
}

func (r *run) dependencies() error {
	c := r.begin("dependencies")
	defer c.end()

	res, err := artifacts.Analyze(r.ctx, r.loader)
	if err != nil {
		return err
	}
	c.file("graph", res.Report.All())
	ch := c.pass("graph", "%d artifact(s), %d edge(s), %d cycle(s), %d broken, %d orphan(s)",
		len(res.Graph.Nodes), len(res.Graph.Edges), len(res.Graph.Cycles), len(res.Graph.Broken), len(res.Orphans))
	ch.Details = map[string]any{
		"nodes":   len(res.Graph.Nodes),
		"edges":   len(res.Graph.Edges),
		"cycles":  len(res.Graph.Cycles),
		"broken":  len(res.Graph.Broken),
		"orphans": len(res.Orphans),
	}
	return nil
}

// tests computes the share of non-test projects that have a test project
// targeting them.
func (r *run) tests() error {
	c := r.begin("tests")
	defer c.end()

	st, err := r.loadProjects()
	if err != nil {
		return err
	}
	projects := st.Discovered
	covered := map[string]bool{}
	nonTest := 0
	for _, p := range projects {
		if p.Type == discovery.TypeTest {
			if target, ok := discovery.TargetOfTest(p, projects); ok {
				covered[target.Name] = true
			}
			continue
		}
		nonTest++
	}
	if nonTest == 0 {
		c.pass("test-ratio", "no non-test projects to cover")
		return nil
	}

	var uncovered []string
	for _, p := range projects {
		if p.Type != discovery.TypeTest && !covered[p.Name] {
			uncovered = append(uncovered, p.Name)
		}
	}
	sort.Strings(uncovered)
	ratio := float64(len(covered)) / float64(nonTest)
	details := map[string]any{"ratio": ratio, "covered": len(covered), "projects": nonTest, "threshold": r.cfg.Health.MinTestRatio}

	if ratio < r.cfg.Health.MinTestRatio {
		c.fail("test-ratio", issues.Warnf(issues.TestCoverageLow,
			"%d of %d project(s) have a test project (%.0f%%, threshold %.0f%%)",
			len(covered), nonTest, ratio*100, r.cfg.Health.MinTestRatio*100).
			With("uncovered", uncovered).
			Recommendf("Add test projects for: %s.", joinMax(uncovered, 5))).Details = details
		return nil
	}
	c.pass("test-ratio", "%d of %d project(s) have a test project", len(covered), nonTest).Details = details
	return nil
}

func (r *run) vcs() error {
	c := r.begin("vcs")
	defer c.end()

	if _, err := os.Stat(filepath.Join(r.cfg.RepoRoot, ".git")); err == nil {
		c.pass("git", "version control initialized")
		return nil
	}
	c.fail("git", issues.Warnf(issues.VCSMissing, "no .git found at the repository root").
		Recommend("Initialize version control so artifact changes are tracked."))
	return nil
}

func joinMax(list []string, n int) string {
	if len(list) <= n {
		return strings.Join(list, ", ")
	}
	return strings.Join(list[:n], ", ") + ", ..."
}

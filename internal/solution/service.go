package solution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/discovery"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/registry"
)

const category = "projects"

// Structure is the payload of a solution-structure query.
type Structure struct {
	RepoRoot     string          `json:"repoRoot"`
	Projects     []MergedProject `json:"projects"`
	Total        int             `json:"total"`
	Registered   int             `json:"registered"`
	CountsByType map[string]int  `json:"countsByType"`
	Undiscovered []string        `json:"undiscovered"` // registered names with no manifest

	Discovered []discovery.DiscoveredProject `json:"-"`
}

// Service answers solution queries. It holds no state between calls:
// every method rescans and reloads.
type Service struct {
	cfg     config.Config
	scanner *discovery.Scanner
	store   registry.Store
}

// NewService creates a solution service for cfg. A nil store defaults to
// the registry file under the managed tree.
func NewService(cfg config.Config, store registry.Store) *Service {
	if store == nil {
		store = registry.NewFileStore(cfg.RegistryPath())
	}
	return &Service{cfg: cfg, scanner: discovery.NewScanner(cfg), store: store}
}

// loadRegistry turns registry load failures into report entries. The
// returned registry is nil when it could not be read.
func (s *Service) loadRegistry(report *issues.Report) *registry.Registry {
	reg, err := s.store.Load()
	if err == nil {
		return reg
	}
	report.Add(issues.Errorf(issues.RegistryParseError, "registry could not be loaded: %v", err).
		At(relRegistry).
		In(category).
		Recommend("Fix or delete .bot/registry.json; discovery still works without it."))
	return nil
}

var relRegistry = config.BotDir + "/" + config.RegistryFile

// Structure scans the repository and merges every project with the
// registry. A broken registry is reported and ignored.
func (s *Service) Structure(ctx context.Context) (*Structure, issues.Report, error) {
	var report issues.Report

	scan, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("scanning projects: %w", err)
	}
	report.Merge(scan.Report)

	reg := s.loadRegistry(&report)
	merged := MergeAll(scan.Projects, reg)

	st := &Structure{
		RepoRoot:     s.cfg.RepoRoot,
		Projects:     merged,
		Total:        len(merged),
		CountsByType: make(map[string]int),
		Undiscovered: []string{},
		Discovered:   scan.Projects,
	}
	found := make(map[string]bool, len(merged))
	for _, m := range merged {
		st.CountsByType[string(m.Type)]++
		if m.Registered {
			st.Registered++
		}
		found[strings.ToLower(m.Name)] = true
	}
	if reg != nil {
		for _, name := range reg.Names() {
			if !found[strings.ToLower(name)] {
				st.Undiscovered = append(st.Undiscovered, name)
				report.Add(issues.Warnf(issues.ProjectNotFound,
					"registered project %q was not found by discovery", name).
					In(category).
					With("project", name).
					Recommend("Unregister it or restore its manifest."))
			}
		}
	}
	report.Add(aliasCollisions(merged)...)
	report.Sort()
	return st, report, nil
}

// aliasCollisions reports merged aliases that are no longer unique: a
// registry alias shadowing another project's inferred alias, and inferred
// aliases shared by several projects.
func aliasCollisions(merged []MergedProject) []issues.Issue {
	byAlias := make(map[string][]MergedProject)
	for _, m := range merged {
		key := strings.ToLower(m.Alias)
		byAlias[key] = append(byAlias[key], m)
	}
	keys := make([]string, 0, len(byAlias))
	for k := range byAlias {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []issues.Issue
	for _, k := range keys {
		group := byAlias[k]
		if len(group) < 2 {
			continue
		}
		var registered, inferred []string
		for _, m := range group {
			if m.AliasSource == AliasFromRegistry {
				registered = append(registered, m.Name)
			} else {
				inferred = append(inferred, m.Name)
			}
		}
		switch {
		case len(registered) > 0 && len(inferred) > 0:
			out = append(out, issues.Warnf(issues.AliasConflict,
				"registered alias %q of %s collides with the inferred alias of %s",
				k, strings.Join(registered, ", "), strings.Join(inferred, ", ")).
				In(category).
				With("alias", k).
				With("registered", registered).
				With("inferred", inferred).
				Recommend("Register an explicit alias for the other project(s)."))
		case len(inferred) > 1:
			out = append(out, issues.Warnf(issues.AliasConflict,
				"inferred alias %q is shared by %s", k, strings.Join(inferred, ", ")).
				In(category).
				With("alias", k).
				With("projects", inferred).
				Recommend("Register distinct aliases to disambiguate."))
		}
	}
	return out
}

// Project looks a project up by name or alias, case-insensitively.
// Names take precedence over aliases.
func (s *Service) Project(ctx context.Context, nameOrAlias string) (*MergedProject, issues.Report, error) {
	st, report, err := s.Structure(ctx)
	if err != nil {
		return nil, report, err
	}
	if m := Find(st.Projects, nameOrAlias); m != nil {
		return m, report, nil
	}
	report.Add(issues.Errorf(issues.ProjectNotFound, "no project named or aliased %q", nameOrAlias).
		In(category).
		With("query", nameOrAlias).
		Recommend("Run solution_structure to list known projects and aliases."))
	return nil, report, nil
}

// Find returns the project whose name, then alias, matches query.
func Find(projects []MergedProject, query string) *MergedProject {
	q := strings.TrimSpace(query)
	for i := range projects {
		if strings.EqualFold(projects[i].Name, q) {
			return &projects[i]
		}
	}
	for i := range projects {
		if strings.EqualFold(projects[i].Alias, q) {
			return &projects[i]
		}
	}
	return nil
}

// Register upserts a registry entry and saves it. The project name is
// matched case-insensitively against discovered projects and existing
// entries and stored under the canonical spelling. On update, empty fields
// keep their stored values unless named in reset. The save is rejected
// (and the file left untouched) when the alias is already registered to
// another project.
func (s *Service) Register(ctx context.Context, entry registry.Entry, reset ...registry.Field) (*registry.Entry, issues.Report, error) {
	var report issues.Report
	if !s.managed(&report) {
		return nil, report, nil
	}

	reg := s.loadRegistry(&report)
	if reg == nil {
		return nil, report, nil
	}

	scan, err := s.scanner.Scan(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("scanning projects: %w", err)
	}

	entry.ProjectName = canonicalName(strings.TrimSpace(entry.ProjectName), scan.Projects, reg)

	next := reg.Clone()
	saved := next.Upsert(entry, reset...)

	if err := s.store.Save(next); err != nil {
		var conflict *registry.ConflictError
		if errors.As(err, &conflict) {
			report.Add(issues.Errorf(issues.AliasConflict, "%v", conflict).
				In(category).
				With("alias", conflict.Alias).
				With("project", conflict.Project).
				With("existing", conflict.Existing).
				Recommend("Choose a different alias or unregister the other project first."))
			return nil, report, nil
		}
		return nil, report, fmt.Errorf("saving registry: %w", err)
	}

	known := false
	for _, p := range scan.Projects {
		if strings.EqualFold(p.Name, saved.ProjectName) {
			known = true
			break
		}
	}
	if !known {
		report.Add(issues.Warnf(issues.ProjectNotFound,
			"project %q is not currently discoverable; the entry was saved anyway", saved.ProjectName).
			In(category).
			With("project", saved.ProjectName))
	}
	if saved.Alias != "" {
		inferred := discovery.InferAliases(scan.Projects)
		for _, p := range scan.Projects {
			if strings.EqualFold(p.Name, saved.ProjectName) {
				continue
			}
			if own, ok := next.Entry(p.Name); ok && own.Alias != "" {
				continue
			}
			if strings.EqualFold(inferred[p.Name], saved.Alias) {
				report.Add(issues.Warnf(issues.AliasConflict,
					"alias %q shadows the inferred alias of %q", saved.Alias, p.Name).
					In(category).
					With("alias", saved.Alias).
					With("project", p.Name).
					Recommendf("Register an explicit alias for %s.", p.Name))
			}
		}
	}
	report.Sort()
	return &saved, report, nil
}

// canonicalName returns the discovered project's spelling of name, else an
// existing entry's key, else name unchanged.
func canonicalName(name string, projects []discovery.DiscoveredProject, reg *registry.Registry) string {
	for _, p := range projects {
		if strings.EqualFold(p.Name, name) {
			return p.Name
		}
	}
	if e, ok := reg.Entry(name); ok {
		return e.ProjectName
	}
	return name
}

// Unregister removes a project's registry entry.
func (s *Service) Unregister(_ context.Context, name string) (issues.Report, error) {
	var report issues.Report
	if !s.managed(&report) {
		return report, nil
	}
	reg := s.loadRegistry(&report)
	if reg == nil {
		return report, nil
	}

	key := name
	if e, ok := reg.Entry(name); ok {
		key = e.ProjectName
	}
	next := reg.Clone()
	if !next.Remove(key) {
		report.Add(issues.Errorf(issues.ProjectNotFound, "project %q is not registered", name).
			In(category).
			With("project", name))
		return report, nil
	}
	if err := s.store.Save(next); err != nil {
		return report, fmt.Errorf("saving registry: %w", err)
	}
	return report, nil
}

// managed reports DOTBOT_NOT_FOUND when the managed tree is absent.
// Registry writes never create it implicitly.
func (s *Service) managed(report *issues.Report) bool {
	if info, err := os.Stat(s.cfg.BotPath()); err == nil && info.IsDir() {
		return true
	}
	report.Add(DotbotNotFound(s.cfg.RepoRoot))
	return false
}

// DotbotNotFound builds the single issue reported when the managed tree
// is missing.
func DotbotNotFound(root string) issues.Issue {
	return issues.Errorf(issues.DotbotNotFound, "no %s directory found in %s", config.BotDir, root).
		In("structure").
		With("root", root).
		Recommend("Install dotbot into this repository to create the .bot/ tree.")
}

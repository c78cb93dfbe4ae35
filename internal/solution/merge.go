// Package solution merges discovered projects with curated registry
// metadata and answers solution-level queries.
//
// Structural fields (name, type, path, framework, dependency count) always
// come from discovery. Enrichment fields (alias, summary, tags, owner) come
// from the registry when set and are inferred otherwise, so the merged
// view is complete even when nothing is registered.
package solution

import (
	"time"

	"github.com/HendryAvila/dotbot/internal/discovery"
	"github.com/HendryAvila/dotbot/internal/registry"
)

// AliasSource records where a merged alias came from.
type AliasSource string

const (
	AliasFromRegistry AliasSource = "registry"
	AliasInferred     AliasSource = "inferred"
)

// MergedProject is the enriched view of one project. It is recomputed on
// every query and never stored.
type MergedProject struct {
	Name             string                 `json:"name"`
	Type             discovery.ProjectType  `json:"type"`
	Path             string                 `json:"path"`
	ManifestPath     string                 `json:"manifestPath"`
	ManifestKind     discovery.ManifestKind `json:"manifestKind"`
	FrameworkVersion string                 `json:"frameworkVersion,omitempty"`
	DependencyCount  int                    `json:"dependencyCount"`

	Alias         string      `json:"alias"`
	AliasSource   AliasSource `json:"aliasSource"`
	InferredAlias string      `json:"inferredAlias"`
	Summary       string      `json:"summary"`
	Tags          []string    `json:"tags"`
	Owner         string      `json:"owner,omitempty"`

	Registered   bool       `json:"registered"`
	RegisteredAt *time.Time `json:"registeredAt,omitempty"`
}

type typeDefaults struct {
	summary string
	tags    []string
}

var defaultsByType = map[discovery.ProjectType]typeDefaults{
	discovery.TypeWebService:  {"Backend web service", []string{"backend", "api"}},
	discovery.TypeFrontendApp: {"Frontend application", []string{"frontend", "ui"}},
	discovery.TypeTest:        {"Automated test project", []string{"test"}},
	discovery.TypeExecutable:  {"Executable application", []string{"app"}},
	discovery.TypeLibrary:     {"Shared library", []string{"library"}},
	discovery.TypeOther:       {"Project", []string{}},
}

func defaultsFor(t discovery.ProjectType) typeDefaults {
	if d, ok := defaultsByType[t]; ok {
		return d
	}
	return defaultsByType[discovery.TypeOther]
}

// Merge combines a discovered project with its registry entry (nil when
// unregistered). inferredAlias is the Alias Generator's output for p.
func Merge(p discovery.DiscoveredProject, entry *registry.Entry, inferredAlias string) MergedProject {
	d := defaultsFor(p.Type)
	m := MergedProject{
		Name:             p.Name,
		Type:             p.Type,
		Path:             p.Path,
		ManifestPath:     p.ManifestPath,
		ManifestKind:     p.ManifestKind,
		FrameworkVersion: p.FrameworkVersion,
		DependencyCount:  p.DependencyCount,

		Alias:         inferredAlias,
		AliasSource:   AliasInferred,
		InferredAlias: inferredAlias,
		Summary:       d.summary,
		Tags:          append([]string{}, d.tags...),
	}
	if entry == nil {
		return m
	}

	m.Registered = true
	if !entry.RegisteredAt.IsZero() {
		at := entry.RegisteredAt
		m.RegisteredAt = &at
	}
	if entry.Alias != "" {
		m.Alias = entry.Alias
		m.AliasSource = AliasFromRegistry
	}
	if entry.Summary != "" {
		m.Summary = entry.Summary
	}
	if len(entry.Tags) > 0 {
		m.Tags = append([]string{}, entry.Tags...)
	}
	m.Owner = entry.Owner
	return m
}

// MergeAll merges every discovered project against reg (which may be nil).
// Registry keys match project names case-insensitively. Output order
// follows the discovery order.
func MergeAll(projects []discovery.DiscoveredProject, reg *registry.Registry) []MergedProject {
	inferred := discovery.InferAliases(projects)
	out := make([]MergedProject, 0, len(projects))
	for _, p := range projects {
		var entry *registry.Entry
		if reg != nil {
			if e, ok := reg.Entry(p.Name); ok {
				entry = &e
			}
		}
		out = append(out, Merge(p, entry, inferred[p.Name]))
	}
	return out
}

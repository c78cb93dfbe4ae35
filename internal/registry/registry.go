// Package registry persists the optional, curated project metadata that
// enriches discovered projects: aliases, summaries, tags and owners.
//
// The registry is a single JSON file inside the managed tree. Absence is a
// valid state (an empty registry). Saves are all-or-nothing: aliases are
// validated first and the file is replaced by an atomic rename, so a failed
// or concurrent save never leaves a partially written registry behind.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Version is the registryVersion written by this package.
const Version = "1.0.0"

// versionConstraint accepts every registry this package can read.
const versionConstraint = "^1"

// timeNow is a package-level variable for testability.
var timeNow = time.Now

// ErrParse is wrapped by every error caused by an unreadable registry file.
var ErrParse = errors.New("registry parse error")

// Entry is the curated metadata for one project, keyed by project name.
type Entry struct {
	ProjectName  string    `json:"projectName"`
	Alias        string    `json:"alias,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Tags         []string  `json:"tags"`
	Owner        string    `json:"owner,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Registry is the on-disk document.
type Registry struct {
	RegistryVersion string           `json:"registryVersion"`
	LastUpdated     time.Time        `json:"lastUpdated"`
	Projects        map[string]Entry `json:"projects"`
}

// New returns an empty registry at the current version.
func New() *Registry {
	return &Registry{
		RegistryVersion: Version,
		Projects:        make(map[string]Entry),
	}
}

// ConflictError reports two different projects claiming the same alias.
type ConflictError struct {
	Alias    string
	Project  string
	Existing string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("alias %q is used by both %q and %q", e.Alias, e.Existing, e.Project)
}

// checkVersion validates a registryVersion against the supported range.
func checkVersion(v string) error {
	if v == "" {
		return fmt.Errorf("%w: registryVersion is missing", ErrParse)
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: registryVersion %q: %v", ErrParse, v, err)
	}
	c, err := semver.NewConstraint(versionConstraint)
	if err != nil {
		return fmt.Errorf("compiling version constraint: %w", err)
	}
	if !c.Check(ver) {
		return fmt.Errorf("%w: registryVersion %s is not supported (want %s)", ErrParse, v, versionConstraint)
	}
	return nil
}

// Validate enforces global alias uniqueness (case-insensitive). Entries are
// visited in name order so the reported pair is deterministic.
func (r *Registry) Validate() error {
	owners := make(map[string]string, len(r.Projects))
	for _, name := range r.Names() {
		alias := strings.ToLower(strings.TrimSpace(r.Projects[name].Alias))
		if alias == "" {
			continue
		}
		if prev, ok := owners[alias]; ok {
			return &ConflictError{Alias: r.Projects[name].Alias, Project: name, Existing: prev}
		}
		owners[alias] = name
	}
	return nil
}

// Names returns the registered project names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Projects))
	for name := range r.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry looks a project up by exact name, then case-insensitively.
func (r *Registry) Entry(name string) (Entry, bool) {
	key, ok := r.key(name)
	if !ok {
		return Entry{}, false
	}
	return r.Projects[key], true
}

// key returns the map key stored for name, matching exactly first.
func (r *Registry) key(name string) (string, bool) {
	if _, ok := r.Projects[name]; ok {
		return name, true
	}
	for key := range r.Projects {
		if strings.EqualFold(key, name) {
			return key, true
		}
	}
	return "", false
}

// Field names an optional entry field a caller can clear on update.
type Field string

const (
	FieldAlias   Field = "alias"
	FieldSummary Field = "summary"
	FieldTags    Field = "tags"
	FieldOwner   Field = "owner"
)

// Fields lists every clearable field.
var Fields = []Field{FieldAlias, FieldSummary, FieldTags, FieldOwner}

// ParseField maps a field name to a Field.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q (want alias, summary, tags or owner)", s)
}

// Upsert inserts the entry for e.ProjectName or updates the existing one,
// matching the name case-insensitively, and returns the stored value.
// On update, empty alias, summary, owner and tags keep their stored
// values unless named in reset, and the original registration time is kept.
func (r *Registry) Upsert(e Entry, reset ...Field) Entry {
	if r.Projects == nil {
		r.Projects = make(map[string]Entry)
	}
	e.ProjectName = strings.TrimSpace(e.ProjectName)
	e.Alias = strings.TrimSpace(e.Alias)
	e.Summary = strings.TrimSpace(e.Summary)
	e.Owner = strings.TrimSpace(e.Owner)
	e.Tags = NormalizeTags(e.Tags)

	if key, ok := r.key(e.ProjectName); ok {
		prev := r.Projects[key]
		cleared := make(map[Field]bool, len(reset))
		for _, f := range reset {
			cleared[f] = true
		}
		if e.Alias == "" && !cleared[FieldAlias] {
			e.Alias = prev.Alias
		}
		if e.Summary == "" && !cleared[FieldSummary] {
			e.Summary = prev.Summary
		}
		if e.Owner == "" && !cleared[FieldOwner] {
			e.Owner = prev.Owner
		}
		if len(e.Tags) == 0 && !cleared[FieldTags] {
			e.Tags = append([]string{}, prev.Tags...)
		}
		if !prev.RegisteredAt.IsZero() {
			e.RegisteredAt = prev.RegisteredAt
		}
		if key != e.ProjectName {
			delete(r.Projects, key)
		}
	}
	if e.RegisteredAt.IsZero() {
		e.RegisteredAt = timeNow().UTC()
	}
	r.Projects[e.ProjectName] = e
	return e
}

// Remove deletes the entry for name and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	if _, ok := r.Projects[name]; !ok {
		return false
	}
	delete(r.Projects, name)
	return true
}

// Clone returns a deep copy, so callers can try a mutation and discard it.
func (r *Registry) Clone() *Registry {
	out := &Registry{
		RegistryVersion: r.RegistryVersion,
		LastUpdated:     r.LastUpdated,
		Projects:        make(map[string]Entry, len(r.Projects)),
	}
	for k, e := range r.Projects {
		e.Tags = append([]string(nil), e.Tags...)
		out.Projects[k] = e
	}
	return out
}

// NormalizeTags trims tags, drops empties, and drops duplicates keeping
// the first occurrence. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

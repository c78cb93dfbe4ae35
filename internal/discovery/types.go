// Package discovery finds the buildable projects in a repository.
//
// The pipeline runs leaves first: the scanner walks the tree and parses
// every manifest it recognises, the classifier assigns a ProjectType from
// the parsed facts, and the alias generator derives short identifiers.
// Everything here is read-only and recomputed on every call.
package discovery

// ProjectType is the classifier's verdict for a manifest.
type ProjectType string

const (
	TypeLibrary     ProjectType = "library"
	TypeExecutable  ProjectType = "executable"
	TypeTest        ProjectType = "test"
	TypeWebService  ProjectType = "web-service"
	TypeFrontendApp ProjectType = "frontend-app"
	TypeOther       ProjectType = "other"
)

// ManifestKind names the manifest format a project was discovered from.
type ManifestKind string

const (
	KindMSBuild   ManifestKind = "msbuild"
	KindNPM       ManifestKind = "npm"
	KindGoMod     ManifestKind = "gomod"
	KindCargo     ManifestKind = "cargo"
	KindPyProject ManifestKind = "pyproject"
	KindPubspec   ManifestKind = "pubspec"
)

// Manifest holds the structural facts parsed out of one manifest file.
// It is the classifier's only input.
type Manifest struct {
	Kind             ManifestKind
	Path             string // repo-relative, slash separated
	Name             string
	SDK              string
	OutputType       string
	FrameworkVersion string
	Dependencies     []string // runtime dependency names
	DevDependencies  []string // development-only dependency names
	Executable       bool     // explicit executable-output marker
	TestProject      bool     // explicit test-project marker
	HasIdentity      bool     // the manifest declares its own name/package
}

// DependencyCount is the number of declared dependencies of any kind.
func (m Manifest) DependencyCount() int {
	return len(m.Dependencies) + len(m.DevDependencies)
}

// DiscoveredProject is one buildable unit found by a scan. It is never
// persisted and never mutated after the scan returns it.
type DiscoveredProject struct {
	Name             string       `json:"name"`
	Type             ProjectType  `json:"type"`
	Path             string       `json:"path"`
	ManifestPath     string       `json:"manifestPath"`
	ManifestKind     ManifestKind `json:"manifestKind"`
	FrameworkVersion string       `json:"frameworkVersion,omitempty"`
	DependencyCount  int          `json:"dependencyCount"`
}

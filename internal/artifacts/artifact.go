// Package artifacts loads the managed documents under .bot/, extracts
// their references, builds the dependency graph and analyzes it for
// cycles, broken references and orphans.
//
// Every path inside this package is repository-relative with forward
// slashes, so the same file is always the same graph node regardless of
// how a reference spelled it.
package artifacts

import (
	"path"
	"strings"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/frontmatter"
)

// Type is the declared kind of a managed artifact.
type Type string

const (
	TypeWorkflow   Type = "workflow"
	TypeAgent      Type = "agent"
	TypeStandard   Type = "standard"
	TypeCommand    Type = "command"
	TypeProductDoc Type = "product-doc"
)

// Managed subdirectories of the .bot tree.
const (
	DirWorkflows = "workflows"
	DirAgents    = "agents"
	DirStandards = "standards"
	DirCommands  = "commands"
	DirProduct   = "product"
	DirSpecs     = "specs"
)

// dirTypes maps a managed subdirectory to the artifact type it holds.
var dirTypes = map[string]Type{
	DirWorkflows: TypeWorkflow,
	DirAgents:    TypeAgent,
	DirStandards: TypeStandard,
	DirCommands:  TypeCommand,
	DirProduct:   TypeProductDoc,
	DirSpecs:     TypeProductDoc,
}

// ArtifactDirs lists every directory scanned for artifacts, in order.
var ArtifactDirs = []string{DirWorkflows, DirAgents, DirStandards, DirCommands, DirProduct, DirSpecs}

// EntryDirs are the orphan-analysis entry points.
var EntryDirs = []string{DirCommands, DirSpecs, DirStandards, DirProduct}

// Artifact is one parsed document. It reflects the file's bytes at the
// time it was loaded and is never written back.
type Artifact struct {
	Path             string                `json:"filePath"`
	DeclaredType     Type                  `json:"declaredType,omitempty"`
	DirType          Type                  `json:"-"` // type implied by the directory
	FrontMatter      map[string]any        `json:"frontMatter"`
	RawDependencies  []string              `json:"rawDependencies"`
	InlineReferences []string              `json:"inlineReferences"`
	UsedBy           []string              `json:"usedBy"`
	References       []Reference           `json:"-"` // merged, de-duplicated
	Document         *frontmatter.Document `json:"-"`
	TooLarge         bool                  `json:"-"`
}

// Valid reports whether t is one of the five artifact types.
func (t Type) Valid() bool {
	switch t {
	case TypeWorkflow, TypeAgent, TypeStandard, TypeCommand, TypeProductDoc:
		return true
	}
	return false
}

// DirTypeOf returns the type implied by a path's managed subdirectory, or
// "" when the path is not under one.
func DirTypeOf(rel string) Type {
	rest, ok := strings.CutPrefix(rel, config.BotDir+"/")
	if !ok {
		return ""
	}
	dir, _, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}
	return dirTypes[dir]
}

// InEntryDir reports whether rel lives under an orphan-analysis entry dir.
func InEntryDir(rel string) bool {
	for _, d := range EntryDirs {
		if strings.HasPrefix(rel, config.BotDir+"/"+d+"/") {
			return true
		}
	}
	return false
}

// ResolvePath normalizes a reference to a repository-relative slash path:
// backslashes become slashes, leading "./" and "/" are dropped, and the
// result is cleaned. Paths that climb above the root keep their "../".
func ResolvePath(ref string) string {
	p := strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))
	for {
		switch {
		case strings.HasPrefix(p, "./"):
			p = p[2:]
		case strings.HasPrefix(p, "/"):
			p = p[1:]
		default:
			p = path.Clean(p)
			if p == "." {
				return ""
			}
			return p
		}
	}
}

// Outside reports whether a resolved path escapes the repository root.
func Outside(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, "../")
}

package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/HendryAvila/dotbot/internal/artifacts"
	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/frontmatter"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/mark3labs/mcp-go/mcp"
)

// Operation names.
const (
	OpArtifactFrontmatter = "artifact.frontmatter"
	OpArtifactReferences  = "artifact.references"
)

// loadArtifact resolves a caller-supplied path and loads it with a fresh
// loader. A nil artifact comes with an INVALID_PARAMETER envelope.
func loadArtifact(r *Responder, c call, cfg config.Config, raw string) (*artifacts.Loader, *artifacts.Artifact, *Envelope, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil, r.invalid(c, "path", "'path' is required: pass a repository-relative file path"), nil
	}
	rel := artifacts.ResolvePath(raw)
	if rel == "" || artifacts.Outside(rel) {
		return nil, nil, r.invalid(c, "path", "path %q is outside the repository", raw), nil
	}

	loader, err := artifacts.NewLoader(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := loader.Load(rel)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, r.invalid(c, "path", "file %s does not exist", rel), nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading %s: %w", rel, err)
	}
	return loader, a, nil, nil
}

// --- artifact_frontmatter ---

// FrontmatterData is the payload of artifact.frontmatter.
type FrontmatterData struct {
	Path           string                  `json:"path"`
	Type           artifacts.Type          `json:"type,omitempty"`
	HasFrontMatter bool                    `json:"hasFrontMatter"`
	Fields         map[string]any          `json:"fields"`
	Keys           []string                `json:"keys"`
	Violations     []frontmatter.Violation `json:"violations"`
	Dependencies   []string                `json:"dependencies"`
	UsedBy         []string                `json:"usedBy"`
}

// FrontmatterTool handles the artifact_frontmatter MCP tool.
type FrontmatterTool struct {
	cfg  config.Config
	resp *Responder
}

// NewFrontmatterTool creates a FrontmatterTool.
func NewFrontmatterTool(cfg config.Config, resp *Responder) *FrontmatterTool {
	return &FrontmatterTool{cfg: cfg, resp: resp}
}

// Definition returns the MCP tool definition for registration.
func (t *FrontmatterTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_frontmatter",
		mcp.WithDescription(
			"Parse the front-matter block of one document and validate it against "+
				"the schema for its artifact type. Returns typed fields in declaration "+
				"order plus any grammar violations with line numbers.",
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Repository-relative path, e.g. '.bot/workflows/build.md'."),
		),
	)
}

// Handle processes the artifact_frontmatter tool call.
func (t *FrontmatterTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := t.Run(ctx, req.GetString("path", ""))
	if err != nil {
		return nil, err
	}
	return toResult(env)
}

// Run parses and validates one document.
func (t *FrontmatterTool) Run(_ context.Context, path string) (*Envelope, error) {
	c := t.resp.start(OpArtifactFrontmatter)
	_, a, env, err := loadArtifact(t.resp, c, t.cfg, path)
	if env != nil || err != nil {
		return env, err
	}

	data := FrontmatterData{
		Path:         a.Path,
		Type:         a.DeclaredType,
		Fields:       map[string]any{},
		Keys:         []string{},
		Violations:   []frontmatter.Violation{},
		Dependencies: nonNilStrings(a.RawDependencies),
		UsedBy:       nonNilStrings(a.UsedBy),
	}
	if doc := a.Document; doc != nil {
		data.HasFrontMatter = true
		data.Fields = doc.Fields
		data.Keys = nonNilStrings(doc.Keys)
		if doc.Violations != nil {
			data.Violations = doc.Violations
		}
	}

	var report issues.Report
	report.Add(artifacts.ValidateSchema(a)...)

	var summary string
	switch {
	case a.TooLarge:
		report.Add(issues.Warnf(issues.CheckFailed, "%s exceeds the artifact size limit and was not parsed", a.Path).At(a.Path))
		summary = fmt.Sprintf("%s was not parsed.", a.Path)
	case !data.HasFrontMatter:
		summary = fmt.Sprintf("%s has no front-matter.", a.Path)
	default:
		summary = fmt.Sprintf("%s declares %s.", a.Path, plural(len(data.Keys), "key", "keys"))
	}
	return t.resp.finish(c, summary, data, report), nil
}

// --- artifact_references ---

// ReferencesData is the payload of artifact.references.
type ReferencesData struct {
	Root   string                      `json:"root"`
	Nodes  []string                    `json:"nodes"`
	Edges  []artifacts.Edge            `json:"edges"`
	Broken []artifacts.BrokenReference `json:"broken"`
	Cycles [][]string                  `json:"cycles"`
}

// ReferencesTool handles the artifact_references MCP tool.
type ReferencesTool struct {
	cfg  config.Config
	resp *Responder
}

// NewReferencesTool creates a ReferencesTool.
func NewReferencesTool(cfg config.Config, resp *Responder) *ReferencesTool {
	return &ReferencesTool{cfg: cfg, resp: resp}
}

// Definition returns the MCP tool definition for registration.
func (t *ReferencesTool) Definition() mcp.Tool {
	return mcp.NewTool("artifact_references",
		mcp.WithDescription(
			"Resolve every document reachable from one artifact through its "+
				"front-matter dependencies and inline @path.md references. Reports "+
				"broken references and circular dependencies.",
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Repository-relative path of the root artifact."),
		),
	)
}

// Handle processes the artifact_references tool call.
func (t *ReferencesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := t.Run(ctx, req.GetString("path", ""))
	if err != nil {
		return nil, err
	}
	return toResult(env)
}

// Run resolves the graph reachable from path.
func (t *ReferencesTool) Run(_ context.Context, path string) (*Envelope, error) {
	c := t.resp.start(OpArtifactReferences)
	loader, a, env, err := loadArtifact(t.resp, c, t.cfg, path)
	if env != nil || err != nil {
		return env, err
	}

	g := artifacts.NewBuilder(loader).Resolve(a.Path)
	var report issues.Report
	report.Add(artifacts.GraphIssues(g)...)

	data := ReferencesData{Root: a.Path, Nodes: g.Nodes, Edges: g.Edges, Broken: g.Broken, Cycles: g.Cycles}
	summary := fmt.Sprintf("%s reaches %s over %s; %d broken, %d cyclic.",
		a.Path, plural(len(g.Nodes)-1, "document", "documents"), plural(len(g.Edges), "edge", "edges"),
		len(g.Broken), len(g.Cycles))
	return t.resp.finish(c, summary, data, report), nil
}

func nonNilStrings(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/dotbot/internal/metrics"
	"github.com/HendryAvila/dotbot/internal/registry"
	"github.com/HendryAvila/dotbot/internal/solution"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
)

// Operation names.
const (
	OpSolutionStructure  = "solution.structure"
	OpSolutionProject    = "solution.project"
	OpSolutionRegister   = "solution.register"
	OpSolutionUnregister = "solution.unregister"
)

// --- solution_structure ---

// StructureTool handles the solution_structure MCP tool.
type StructureTool struct {
	svc     *solution.Service
	resp    *Responder
	metrics *metrics.Metrics
}

// NewStructureTool creates a StructureTool. m may be nil.
func NewStructureTool(svc *solution.Service, resp *Responder, m *metrics.Metrics) *StructureTool {
	return &StructureTool{svc: svc, resp: resp, metrics: m}
}

// Definition returns the MCP tool definition for registration.
func (t *StructureTool) Definition() mcp.Tool {
	return mcp.NewTool("solution_structure",
		mcp.WithDescription(
			"List every buildable project in the repository with its type, path, "+
				"alias, summary, tags and owner. Filesystem facts come from manifest "+
				"discovery; enrichment comes from .bot/registry.json when present, "+
				"otherwise from inferred defaults.",
		),
	)
}

// Handle processes the solution_structure tool call.
func (t *StructureTool) Handle(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := t.Run(ctx)
	if err != nil {
		return nil, err
	}
	return toResult(env)
}

// Run scans the repository and merges the registry.
func (t *StructureTool) Run(ctx context.Context) (*Envelope, error) {
	c := t.resp.start(OpSolutionStructure)
	st, report, err := t.svc.Structure(ctx)
	if err != nil {
		return nil, fmt.Errorf("building solution structure: %w", err)
	}
	t.metrics.SetProjects(st.Total)

	summary := fmt.Sprintf("Found %s, %d registered.", plural(st.Total, "project", "projects"), st.Registered)
	return t.resp.finish(c, summary, st, report), nil
}

// --- solution_project ---

// ProjectTool handles the solution_project MCP tool.
type ProjectTool struct {
	svc  *solution.Service
	resp *Responder
}

// NewProjectTool creates a ProjectTool.
func NewProjectTool(svc *solution.Service, resp *Responder) *ProjectTool {
	return &ProjectTool{svc: svc, resp: resp}
}

// Definition returns the MCP tool definition for registration.
func (t *ProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("solution_project",
		mcp.WithDescription("Look up one project by name or alias (case-insensitive) and return its merged view."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Project name or alias, e.g. 'Contoso.Api' or 'be'."),
		),
	)
}

// Handle processes the solution_project tool call.
func (t *ProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := t.Run(ctx, req.GetString("name", ""))
	if err != nil {
		return nil, err
	}
	return toResult(env)
}

// Run looks a project up.
func (t *ProjectTool) Run(ctx context.Context, name string) (*Envelope, error) {
	c := t.resp.start(OpSolutionProject)
	name = strings.TrimSpace(name)
	if name == "" {
		return t.resp.invalid(c, "name", "'name' is required: pass a project name or alias"), nil
	}

	p, report, err := t.svc.Project(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("looking up project %s: %w", name, err)
	}
	if p == nil {
		return t.resp.finish(c, fmt.Sprintf("No project matches %q.", name), nil, report), nil
	}
	summary := fmt.Sprintf("%s (%s) at %s, alias %q.", p.Name, p.Type, p.Path, p.Alias)
	return t.resp.finish(c, summary, p, report), nil
}

// --- solution_register ---

// RegisterParams are the inputs of solution.register. Empty fields keep
// the stored value on update; Clear names fields to reset instead.
type RegisterParams struct {
	Project string
	Alias   string
	Summary string
	Tags    []string
	Owner   string
	Clear   []string
}

// RegisterTool handles the solution_register MCP tool.
type RegisterTool struct {
	svc  *solution.Service
	resp *Responder
}

// NewRegisterTool creates a RegisterTool.
func NewRegisterTool(svc *solution.Service, resp *Responder) *RegisterTool {
	return &RegisterTool{svc: svc, resp: resp}
}

// Definition returns the MCP tool definition for registration.
func (t *RegisterTool) Definition() mcp.Tool {
	return mcp.NewTool("solution_register",
		mcp.WithDescription(
			"Create or update a project's entry in .bot/registry.json. Registered "+
				"alias, summary, tags and owner override inferred values. On update, "+
				"omitted fields keep their stored values; list fields in 'clear' to "+
				"reset them. An alias already registered to another project is "+
				"rejected and the file is left unchanged.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project name as discovered (case-insensitive)."),
		),
		mcp.WithString("alias",
			mcp.Description("Short unique alias. Optional."),
		),
		mcp.WithString("summary",
			mcp.Description("One-line description. Optional."),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags, as an array or a comma-separated string. Optional."),
			mcp.WithStringItems(),
		),
		mcp.WithString("owner",
			mcp.Description("Owning team or person. Optional."),
		),
		mcp.WithArray("clear",
			mcp.Description("Fields to reset on update: alias, summary, tags, owner. Optional."),
			mcp.WithStringItems(),
		),
	)
}

// Handle processes the solution_register tool call.
func (t *RegisterTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := t.Run(ctx, RegisterParams{
		Project: req.GetString("project", ""),
		Alias:   req.GetString("alias", ""),
		Summary: req.GetString("summary", ""),
		Tags:    tagsArg(req.GetArguments()["tags"]),
		Owner:   req.GetString("owner", ""),
		Clear:   tagsArg(req.GetArguments()["clear"]),
	})
	if err != nil {
		return nil, err
	}
	return toResult(env)
}

// Run saves the entry.
func (t *RegisterTool) Run(ctx context.Context, p RegisterParams) (*Envelope, error) {
	c := t.resp.start(OpSolutionRegister)
	if strings.TrimSpace(p.Project) == "" {
		return t.resp.invalid(c, "project", "'project' is required: pass the discovered project name"), nil
	}

	reset := make([]registry.Field, 0, len(p.Clear))
	for _, name := range p.Clear {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := registry.ParseField(name)
		if err != nil {
			return t.resp.invalid(c, "clear", "%v", err), nil
		}
		reset = append(reset, f)
	}

	saved, report, err := t.svc.Register(ctx, registry.Entry{
		ProjectName: p.Project,
		Alias:       p.Alias,
		Summary:     p.Summary,
		Tags:        p.Tags,
		Owner:       p.Owner,
	}, reset...)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", p.Project, err)
	}
	if saved == nil {
		return t.resp.finish(c, fmt.Sprintf("%s was not registered.", strings.TrimSpace(p.Project)), nil, report), nil
	}
	summary := fmt.Sprintf("Registered %s.", saved.ProjectName)
	if saved.Alias != "" {
		summary = fmt.Sprintf("Registered %s with alias %q.", saved.ProjectName, saved.Alias)
	}
	return t.resp.finish(c, summary, saved, report), nil
}

// tagsArg accepts an array of strings or one comma-separated string.
// An absent argument yields nil.
func tagsArg(raw any) []string {
	if raw == nil {
		return nil
	}
	if s, ok := raw.(string); ok {
		return strings.Split(s, ",")
	}
	return cast.ToStringSlice(raw)
}

// --- solution_unregister ---

// UnregisterTool handles the solution_unregister MCP tool.
type UnregisterTool struct {
	svc  *solution.Service
	resp *Responder
}

// NewUnregisterTool creates an UnregisterTool.
func NewUnregisterTool(svc *solution.Service, resp *Responder) *UnregisterTool {
	return &UnregisterTool{svc: svc, resp: resp}
}

// Definition returns the MCP tool definition for registration.
func (t *UnregisterTool) Definition() mcp.Tool {
	return mcp.NewTool("solution_unregister",
		mcp.WithDescription("Remove a project's entry from .bot/registry.json. Discovery is unaffected."),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Registered project name (case-insensitive)."),
		),
	)
}

// Handle processes the solution_unregister tool call.
func (t *UnregisterTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := t.Run(ctx, req.GetString("project", ""))
	if err != nil {
		return nil, err
	}
	return toResult(env)
}

// Run removes the entry.
func (t *UnregisterTool) Run(ctx context.Context, project string) (*Envelope, error) {
	c := t.resp.start(OpSolutionUnregister)
	project = strings.TrimSpace(project)
	if project == "" {
		return t.resp.invalid(c, "project", "'project' is required: pass the registered project name"), nil
	}

	report, err := t.svc.Unregister(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("unregistering %s: %w", project, err)
	}
	if report.HasErrors() {
		return t.resp.finish(c, fmt.Sprintf("%s was not unregistered.", project), nil, report), nil
	}
	data := map[string]string{"removed": project}
	return t.resp.finish(c, fmt.Sprintf("Unregistered %s.", project), data, report), nil
}

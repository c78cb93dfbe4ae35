// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools, prompts and resources that depend on
// them. No business logic lives here, only wiring.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/metrics"
	"github.com/HendryAvila/dotbot/internal/prompts"
	"github.com/HendryAvila/dotbot/internal/resources"
	"github.com/HendryAvila/dotbot/internal/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Source is the audit source stamped on envelopes produced over MCP.
const Source = "mcp"

// registration binds one operation to its MCP tool.
type registration struct {
	operation string
	tool      mcp.Tool
	handler   server.ToolHandlerFunc
}

// registrations is the explicit operation table served over MCP.
func registrations(ts *tools.Toolset) []registration {
	return []registration{
		{tools.OpSolutionStructure, ts.Structure.Definition(), ts.Structure.Handle},
		{tools.OpSolutionProject, ts.Project.Definition(), ts.Project.Handle},
		{tools.OpSolutionRegister, ts.Register.Definition(), ts.Register.Handle},
		{tools.OpSolutionUnregister, ts.Unregister.Definition(), ts.Unregister.Handle},
		{tools.OpArtifactFrontmatter, ts.Frontmatter.Definition(), ts.Frontmatter.Handle},
		{tools.OpArtifactReferences, ts.References.Definition(), ts.References.Handle},
		{tools.OpHealthCheck, ts.Health.Definition(), ts.Health.Handle},
		{tools.OpHealthHistory, ts.History.Definition(), ts.History.Handle},
	}
}

// New creates and configures the MCP server with all tools, prompts
// and resources registered. m may be nil.
func New(cfg config.Config, m *metrics.Metrics) *server.MCPServer {
	s := server.NewMCPServer(
		"dotbot",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	ts := tools.NewToolset(cfg, Source, m)
	for _, r := range registrations(ts) {
		s.AddTool(r.tool, r.handler)
	}

	// --- Register prompts ---

	healthPrompt := prompts.NewHealthPrompt()
	s.AddPrompt(healthPrompt.Definition(), healthPrompt.Handle)

	projectsPrompt := prompts.NewProjectsPrompt()
	s.AddPrompt(projectsPrompt.Definition(), projectsPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(ts.Solution)
	s.AddResource(resourceHandler.StructureResource(), resourceHandler.HandleStructure)

	return s
}

// ServeMetrics exposes m on addr under /metrics until ctx is done.
func ServeMetrics(ctx context.Context, addr string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARNING: metrics server shutdown: %v", err)
		}
	}()

	log.Printf("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// serverInstructions returns the system instructions that tell the AI
// how to use dotbot.
func serverInstructions() string {
	return `You have access to dotbot, a repository introspection server for
repositories managed through a .bot/ directory.

## Tools

- solution_structure: every buildable project (type, path, alias, summary, tags, owner)
- solution_project: one project by name or alias
- solution_register / solution_unregister: edit .bot/registry.json
- artifact_frontmatter: parse and validate one document's front-matter
- artifact_references: the dependency graph reachable from one document
- health_check: tiered repository checks (basic, standard, comprehensive)
- health_history: previously recorded health_check runs

## Responses

Every tool answers with the same JSON envelope:
schema, operation, version, status (ok, warning, error), summary, data,
errors, warnings and audit. Read "summary" first. Each error or warning
has a stable "code" and, when available, a "recommendation".

A status of "error" with code DOTBOT_NOT_FOUND means the repository has no
.bot/ directory; only solution_structure, solution_project and the
artifact tools work there.

## Guidance

- Call solution_structure before answering questions about project layout.
- Ask the user before calling solution_register or solution_unregister.
- Prefer health_check level=standard; use comprehensive when the user asks
  about broken references, cycles, or front-matter problems.`
}

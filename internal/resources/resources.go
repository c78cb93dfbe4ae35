// Package resources implements MCP resource handlers for dotbot.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (dotbot://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/solution"
	"github.com/mark3labs/mcp-go/mcp"
)

// StructureURI addresses the merged solution view.
const StructureURI = "dotbot://solution/structure"

// Handler manages dotbot resource endpoints.
type Handler struct {
	svc *solution.Service
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(svc *solution.Service) *Handler {
	return &Handler{svc: svc}
}

// StructureResource returns the MCP resource definition for the solution structure.
func (h *Handler) StructureResource() mcp.Resource {
	return mcp.NewResource(
		StructureURI,
		"Solution Structure",
		mcp.WithResourceDescription("Discovered projects merged with the metadata registry"),
		mcp.WithMIMEType("application/json"),
	)
}

// structureDoc is the resource body: the structure plus its findings.
type structureDoc struct {
	*solution.Structure
	Errors   []issues.Issue `json:"errors"`
	Warnings []issues.Issue `json:"warnings"`
}

// HandleStructure returns the current solution structure as JSON.
func (h *Handler) HandleStructure(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, report, err := h.svc.Structure(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	doc := structureDoc{Structure: st, Errors: report.Errors, Warnings: report.Warnings}
	if doc.Errors == nil {
		doc.Errors = []issues.Issue{}
	}
	if doc.Warnings == nil {
		doc.Warnings = []issues.Issue{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling structure: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}

package tools

import (
	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/health"
	"github.com/HendryAvila/dotbot/internal/metrics"
	"github.com/HendryAvila/dotbot/internal/solution"
)

// Toolset holds one instance of every operation, sharing a single
// solution service, responder and metrics sink.
type Toolset struct {
	Structure   *StructureTool
	Project     *ProjectTool
	Register    *RegisterTool
	Unregister  *UnregisterTool
	Frontmatter *FrontmatterTool
	References  *ReferencesTool
	Health      *HealthCheckTool
	History     *HealthHistoryTool

	Solution *solution.Service
}

// NewToolset wires every tool for cfg. source is stamped into each
// envelope's audit block ("mcp" or "cli"). m may be nil.
func NewToolset(cfg config.Config, source string, m *metrics.Metrics) *Toolset {
	svc := solution.NewService(cfg, nil)
	resp := NewResponder(source, m)
	hist := OpenHistory(cfg)

	return &Toolset{
		Structure:   NewStructureTool(svc, resp, m),
		Project:     NewProjectTool(svc, resp),
		Register:    NewRegisterTool(svc, resp),
		Unregister:  NewUnregisterTool(svc, resp),
		Frontmatter: NewFrontmatterTool(cfg, resp),
		References:  NewReferencesTool(cfg, resp),
		Health:      NewHealthCheckTool(health.NewChecker(cfg, svc), hist, resp, m),
		History:     NewHealthHistoryTool(cfg, hist, resp),
		Solution:    svc,
	}
}

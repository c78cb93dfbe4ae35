// Package prompts holds the MCP prompts dotbot exposes. Prompts are
// canned user messages that steer the host toward the right tool calls.
package prompts

import (
	"context"
	"fmt"

	"github.com/HendryAvila/dotbot/internal/health"
	"github.com/mark3labs/mcp-go/mcp"
)

// HealthPrompt handles the dotbot-health MCP prompt.
type HealthPrompt struct{}

// NewHealthPrompt creates a HealthPrompt.
func NewHealthPrompt() *HealthPrompt {
	return &HealthPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *HealthPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("dotbot-health",
		mcp.WithPromptDescription(
			"Review the health of this repository's .bot tree and projects, "+
				"then explain what to fix first.",
		),
		mcp.WithArgument("level",
			mcp.ArgumentDescription("basic, standard or comprehensive. Default: standard."),
		),
	)
}

// Handle processes the dotbot-health prompt request. An unknown level
// falls back to the default tier.
func (p *HealthPrompt) Handle(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	level, err := health.ParseLevel(req.Params.Arguments["level"])
	if err != nil {
		level = health.LevelStandard
	}

	return &mcp.GetPromptResult{
		Description: "dotbot health review",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Please run `health_check` with level=%q.\n\n"+
						"Then:\n"+
						"1. Give me the overall status and the status of each category\n"+
						"2. List every error first, then warnings, with the file or project it points at\n"+
						"3. For each finding, use its recommendation to tell me the concrete fix\n"+
						"4. If everything passes, say so in one line", level)),
			},
		},
	}, nil
}

package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ProjectsPrompt handles the dotbot-projects MCP prompt.
// It walks the host through reviewing and registering discovered projects.
type ProjectsPrompt struct{}

// NewProjectsPrompt creates a ProjectsPrompt.
func NewProjectsPrompt() *ProjectsPrompt {
	return &ProjectsPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ProjectsPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("dotbot-projects",
		mcp.WithPromptDescription(
			"Map the projects in this repository and fill in missing registry "+
				"metadata (alias, summary, tags, owner).",
		),
		mcp.WithArgument("focus",
			mcp.ArgumentDescription("Optional project type to focus on, e.g. web-service or test."),
		),
	)
}

// Handle processes the dotbot-projects prompt request.
func (p *ProjectsPrompt) Handle(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	text := "Please run `solution_structure` to list the projects in this repository.\n\n" +
		"Then:\n" +
		"1. Show the projects as a table: name, type, path, alias, registered\n" +
		"2. Point out any registry warnings (alias collisions, projects not found)\n" +
		"3. For unregistered projects, propose an alias, a one-line summary and tags\n" +
		"4. Ask me to confirm before calling `solution_register` for each one"
	if focus := req.Params.Arguments["focus"]; focus != "" {
		text += "\n\nOnly consider projects of type " + focus + "."
	}

	return &mcp.GetPromptResult{
		Description: "dotbot project map",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}, nil
}

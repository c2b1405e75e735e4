package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the etg-status MCP prompt.
// It instructs the AI to read and present what is recorded for the project.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("etg-status",
		mcp.WithPromptDescription(
			"Show what the Execution Trace Graph holds for this project: "+
				"indexed files, recent tasks and the errors they ran into.",
		),
	)
}

// Handle processes the etg-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "ETG Project Status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please read the `etgraph://project/status` resource for this project.\n\n" +
						"Then:\n" +
						"1. Tell me how many files are indexed and how many tasks are recorded\n" +
						"2. List the recent tasks with their status\n" +
						"3. For any task that is still running or ended with errors, run `etg_query_similar_attempts` " +
						"with its prompt and summarize what went wrong\n" +
						"4. If nothing is indexed yet, offer to run `graph_index_project`",
				),
			},
		},
	}, nil
}

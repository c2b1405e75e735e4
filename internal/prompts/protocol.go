// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ProtocolPrompt handles the etg-protocol MCP prompt.
// It tells the AI how to record a task in the Execution Trace Graph.
type ProtocolPrompt struct{}

// NewProtocolPrompt creates a ProtocolPrompt.
func NewProtocolPrompt() *ProtocolPrompt {
	return &ProtocolPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ProtocolPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("etg-protocol",
		mcp.WithPromptDescription(
			"Work on a task while recording it in the Execution Trace Graph, "+
				"so that later sessions can learn from what was tried.",
		),
		mcp.WithArgument("project_root",
			mcp.ArgumentDescription("Absolute path of the project you are working in"),
		),
		mcp.WithArgument("task",
			mcp.ArgumentDescription("What you are about to do"),
		),
	)
}

// Handle processes the etg-protocol prompt request.
func (p *ProtocolPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	root := "<project root>"
	task := ""
	if args := req.Params.Arguments; args != nil {
		if r, ok := args["project_root"]; ok && r != "" {
			root = r
		}
		task = strings.TrimSpace(args["task"])
	}

	intro := "I am about to start a task."
	if task != "" {
		intro = fmt.Sprintf("I am about to start this task: %s", task)
	}

	return &mcp.GetPromptResult{
		Description: "Execution Trace Graph logging protocol",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"%s Record it in the Execution Trace Graph for project_root=%q.\n\n"+
						"Before you start:\n"+
						"1. Run `etg_query_similar_attempts` with the key words of the task and read the errors of earlier attempts\n"+
						"2. Run `graph_context_for_files` for the files you expect to change\n"+
						"3. Run `etg_log_event` kind=task_start with payload {\"user_prompt\": ...} and keep the returned task_id\n\n"+
						"While you work, pass that task_id to every event:\n"+
						"- kind=step with {\"role\": ..., \"llm_summary\": ...} when you begin a new phase\n"+
						"- kind=tool_start with {\"tool_name\": ..., \"files_touched\": [...]} before each edit or command, "+
						"then kind=tool_end with {\"success\": ..., \"duration_ms\": ...} after it\n"+
						"- kind=error with {\"error_type\": ..., \"message\": ...} whenever something fails\n"+
						"- kind=checkpoint with {\"checkpoint_file\": ...} when you save an artifact\n"+
						"- `graph_update_files` for files you changed\n\n"+
						"When you are done, log kind=task_end with {\"status\": \"completed\"} or {\"status\": \"failed\"}.",
					intro, root,
				)),
			},
		},
	}, nil
}

package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/HendryAvila/etgraph/internal/etg"
	"github.com/mark3labs/mcp-go/mcp"
)

// LogEventTool handles the etg_log_event MCP tool.
type LogEventTool struct {
	backend backend.Backend
}

// NewLogEventTool creates a LogEventTool.
func NewLogEventTool(b backend.Backend) *LogEventTool {
	return &LogEventTool{backend: b}
}

// Definition returns the MCP tool definition for etg_log_event.
func (t *LogEventTool) Definition() mcp.Tool {
	return mcp.NewTool("etg_log_event",
		mcp.WithDescription(
			"Record a task lifecycle event in the Execution Trace Graph. "+
				"Start with task_start (omit task_id to get a new one), then step, tool_start/tool_end, "+
				"checkpoint and error as work happens, and finish with task_end. "+
				"tool_start, checkpoint and error attach to the task's latest step, creating one if the task has none.",
		),
		mcp.WithTitleAnnotation("Log ETG Event"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("project_root",
			mcp.Required(),
			mcp.Description("Absolute project root path"),
		),
		mcp.WithString("task_id",
			mcp.Description("Existing task id, or omit to start a new task"),
		),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Event kind"),
			mcp.Enum(etg.KindNames()...),
		),
		mcp.WithObject("payload",
			mcp.Required(),
			mcp.Description("Event-specific payload, e.g. {\"user_prompt\": ...} for task_start or {\"tool_name\": ..., \"files_touched\": [...]} for tool_start"),
		),
	)
}

// Handle processes the etg_log_event tool call.
func (t *LogEventTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := rootArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind := req.GetString("kind", "")
	if kind == "" {
		return mcp.NewToolResultError("'kind' is required"), nil
	}
	payload, err := payloadArg(req, "payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.backend.LogEvent(ctx, root, req.GetString("task_id", ""), kind, payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("logging event failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

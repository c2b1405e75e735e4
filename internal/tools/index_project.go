package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/mark3labs/mcp-go/mcp"
)

// IndexProjectTool handles the graph_index_project MCP tool.
type IndexProjectTool struct {
	backend backend.Backend
}

// NewIndexProjectTool creates an IndexProjectTool.
func NewIndexProjectTool(b backend.Backend) *IndexProjectTool {
	return &IndexProjectTool{backend: b}
}

// Definition returns the MCP tool definition for graph_index_project.
func (t *IndexProjectTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_index_project",
		mcp.WithDescription(
			"Build or refresh the code graph for a project root. "+
				"Full mode rebuilds the file graph from scratch; incremental mode keeps existing records "+
				"and only re-hashes files whose size or mtime changed. The trace graph is never touched.",
		),
		mcp.WithTitleAnnotation("Index Project"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("project_root",
			mcp.Required(),
			mcp.Description("Absolute project root path"),
		),
		mcp.WithString("mode",
			mcp.Description("Full or incremental indexing (default: full)"),
			mcp.Enum(string(backend.ModeFull), string(backend.ModeIncremental)),
			mcp.DefaultString(string(backend.ModeFull)),
		),
	)
}

// Handle processes the graph_index_project tool call.
func (t *IndexProjectTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := rootArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := backend.ParseMode(req.GetString("mode", string(backend.ModeFull)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.backend.IndexProject(ctx, root, mode)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("indexing failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

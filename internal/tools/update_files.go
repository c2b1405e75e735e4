package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/mark3labs/mcp-go/mcp"
)

// UpdateFilesTool handles the graph_update_files MCP tool.
type UpdateFilesTool struct {
	backend backend.Backend
}

// NewUpdateFilesTool creates an UpdateFilesTool.
func NewUpdateFilesTool(b backend.Backend) *UpdateFilesTool {
	return &UpdateFilesTool{backend: b}
}

// Definition returns the MCP tool definition for graph_update_files.
func (t *UpdateFilesTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_update_files",
		mcp.WithDescription(
			"Re-index a list of files after editing them. Paths that no longer exist are skipped, not removed.",
		),
		mcp.WithTitleAnnotation("Update Files"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("project_root",
			mcp.Required(),
			mcp.Description("Absolute project root path"),
		),
		mcp.WithArray("paths",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("File paths to update (absolute or relative to project)"),
		),
	)
}

// Handle processes the graph_update_files tool call.
func (t *UpdateFilesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := rootArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths, err := stringSliceArg(req, "paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := t.backend.UpdateFiles(ctx, root, paths)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("update failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/HendryAvila/etgraph/internal/query"
	"github.com/mark3labs/mcp-go/mcp"
)

// ContextForFilesTool handles the graph_context_for_files MCP tool.
type ContextForFilesTool struct {
	backend       backend.Backend
	defaultRadius int
}

// NewContextForFilesTool creates a ContextForFilesTool. A negative
// defaultRadius selects query.DefaultRadius.
func NewContextForFilesTool(b backend.Backend, defaultRadius int) *ContextForFilesTool {
	if defaultRadius < 0 {
		defaultRadius = query.DefaultRadius
	}
	return &ContextForFilesTool{backend: b, defaultRadius: defaultRadius}
}

// Definition returns the MCP tool definition for graph_context_for_files.
func (t *ContextForFilesTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_context_for_files",
		mcp.WithDescription(
			"Return what is known about a set of files: their indexed metadata and every recorded step "+
				"that touched them, oldest step order first.",
		),
		mcp.WithTitleAnnotation("Context for Files"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("project_root",
			mcp.Required(),
			mcp.Description("Absolute project root path"),
		),
		mcp.WithArray("file_paths",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("Files to gather graph context for"),
		),
		mcp.WithNumber("radius",
			mcp.Description("Neighborhood radius, echoed back (default: 1)"),
			mcp.Min(0),
			mcp.DefaultNumber(float64(t.defaultRadius)),
		),
	)
}

// Handle processes the graph_context_for_files tool call.
func (t *ContextForFilesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := rootArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	files, err := stringSliceArg(req, "file_paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if files == nil {
		return mcp.NewToolResultError("'file_paths' is required"), nil
	}
	radius := intArg(req, "radius", t.defaultRadius)
	if radius < 0 {
		return mcp.NewToolResultError("'radius' must not be negative"), nil
	}

	res, err := t.backend.ContextForFiles(ctx, root, files, radius)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("context lookup failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

package tools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/HendryAvila/etgraph/internal/query"
	"github.com/mark3labs/mcp-go/mcp"
)

// QuerySimilarTool handles the etg_query_similar_attempts MCP tool.
type QuerySimilarTool struct {
	backend      backend.Backend
	defaultLimit int
}

// NewQuerySimilarTool creates a QuerySimilarTool. defaultLimit applies
// when the caller sends no limit; <= 0 selects query.DefaultLimit.
func NewQuerySimilarTool(b backend.Backend, defaultLimit int) *QuerySimilarTool {
	if defaultLimit <= 0 {
		defaultLimit = query.DefaultLimit
	}
	return &QuerySimilarTool{backend: b, defaultLimit: defaultLimit}
}

// Definition returns the MCP tool definition for etg_query_similar_attempts.
func (t *QuerySimilarTool) Definition() mcp.Tool {
	return mcp.NewTool("etg_query_similar_attempts",
		mcp.WithDescription(
			"Retrieve past steps relevant to a query, ranked by how often the query appears in the task prompt, "+
				"step summary and touched files. Each result includes the errors recorded on that step. "+
				"Call this before starting work to learn from earlier attempts.",
		),
		mcp.WithTitleAnnotation("Query Similar Attempts"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
		mcp.WithString("project_root",
			mcp.Required(),
			mcp.Description("Absolute project root path"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text query, matched case-insensitively as a substring"),
		),
		mcp.WithArray("file_paths",
			mcp.WithStringItems(),
			mcp.Description("Optional file path filter: only steps that touched one of these files"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max results (default: %d)", t.defaultLimit)),
			mcp.Min(1),
			mcp.DefaultNumber(float64(t.defaultLimit)),
		),
	)
}

// Handle processes the etg_query_similar_attempts tool call.
func (t *QuerySimilarTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := rootArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := req.GetString("query", "")
	if text == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	files, err := stringSliceArg(req, "file_paths")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := intArg(req, "limit", t.defaultLimit)
	if limit < 1 {
		return mcp.NewToolResultError("'limit' must be at least 1"), nil
	}

	res, err := t.backend.QuerySimilar(ctx, root, text, files, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return jsonResult(res), nil
}

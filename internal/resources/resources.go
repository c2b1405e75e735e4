// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (etgraph://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/mark3labs/mcp-go/mcp"
)

// StatusURI addresses the status of the project the server runs in.
const StatusURI = "etgraph://project/status"

// Handler manages resource endpoints.
type Handler struct {
	backend backend.Backend
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(b backend.Backend) *Handler {
	return &Handler{backend: b}
}

// StatusResource returns the MCP resource definition for project status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		StatusURI,
		"ETG Project Status",
		mcp.WithResourceDescription("Indexed file count, trace record counts and recent tasks for the current project"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current project's status as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	root, err := findRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}

	status, err := h.backend.Status(ctx, root)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}

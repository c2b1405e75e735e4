// Package tools implements the MCP tool handlers for the project graph
// and the Execution Trace Graph.
//
// Each tool is a struct that receives its dependencies through its
// constructor, exposes Definition() for the mcp.Tool schema and Handle()
// for the call. Every handler goes through backend.Backend; none of them
// touches storage directly.
//
// Domain failures (bad arguments, unknown event kinds, unreadable roots)
// come back as tool errors, never as Go errors, so the client sees them.
package tools

import (
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// stringSliceArg extracts a list of strings. A missing or null argument
// returns nil; a single string is accepted as a one-element list.
func stringSliceArg(req mcp.CallToolRequest, key string) ([]string, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("'%s[%d]' must be a string", key, i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("'%s' must be an array of strings", key)
	}
}

// payloadArg returns the payload argument as raw JSON. Clients send either
// an object or a JSON-encoded string.
func payloadArg(req mcp.CallToolRequest, key string) (json.RawMessage, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("'%s' is not valid JSON", key)
		}
		return json.RawMessage(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding '%s': %w", key, err)
		}
		return data, nil
	}
}

// rootArg returns project_root made absolute.
func rootArg(req mcp.CallToolRequest) (string, error) {
	root := req.GetString("project_root", "")
	if root == "" {
		return "", fmt.Errorf("'project_root' is required")
	}
	return backend.AbsRoot(root)
}

// jsonResult returns v as structured content, with its indented JSON as
// the text fallback.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultStructured(v, string(data))
}

package prompts

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func promptText(t *testing.T, r *mcp.GetPromptResult) string {
	t.Helper()
	require.Len(t, r.Messages, 1)
	assert.Equal(t, mcp.RoleUser, r.Messages[0].Role)
	tc, ok := r.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok, "content should be text")
	return tc.Text
}

func TestProtocolPrompt(t *testing.T) {
	p := NewProtocolPrompt()
	assert.Equal(t, "etg-protocol", p.Definition().Name)

	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"project_root": "/work/app", "task": "fix login"}
	r, err := p.Handle(context.Background(), req)
	require.NoError(t, err)

	text := promptText(t, r)
	assert.Contains(t, text, "fix login")
	assert.Contains(t, text, `project_root="/work/app"`)
	for _, kind := range []string{"task_start", "step", "tool_start", "tool_end", "error", "checkpoint", "task_end"} {
		assert.Contains(t, text, "kind="+kind)
	}
}

func TestProtocolPrompt_NoArguments(t *testing.T) {
	r, err := NewProtocolPrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	text := promptText(t, r)
	assert.Contains(t, text, "I am about to start a task.")
	assert.Contains(t, text, "<project root>")
}

func TestStatusPrompt(t *testing.T) {
	p := NewStatusPrompt()
	assert.Equal(t, "etg-status", p.Definition().Name)

	r, err := p.Handle(context.Background(), mcp.GetPromptRequest{})
	require.NoError(t, err)
	assert.Contains(t, promptText(t, r), "etgraph://project/status")
}

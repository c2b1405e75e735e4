// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it picks the backend from configuration
// and injects it into the tools, prompts and resources that depend on it.
// No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log/slog"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/HendryAvila/etgraph/internal/config"
	"github.com/HendryAvila/etgraph/internal/prompts"
	"github.com/HendryAvila/etgraph/internal/resources"
	"github.com/HendryAvila/etgraph/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the server name announced to MCP clients.
const Name = "etgraph"

// New selects the backend for pref and returns an MCP server with every
// tool, prompt and resource registered.
//
// The returned cleanup function closes the backend and must be called on
// shutdown (typically via defer). It is always non-nil.
func New(cfg *config.Config, pref backend.Preference) (*server.MCPServer, func(), error) {
	b, err := backend.Select(cfg, pref)
	if err != nil {
		return nil, noop, fmt.Errorf("selecting backend: %w", err)
	}
	slog.Info("Backend selected", "backend", b.Name(), "data_dir", cfg.DataDir)

	cleanup := func() {
		if err := b.Close(); err != nil {
			slog.Warn("Closing backend", "error", err)
		}
	}
	return NewWithBackend(b, cfg), cleanup, nil
}

// NewWithBackend builds the MCP server over an existing backend. The
// caller keeps ownership of b.
func NewWithBackend(b backend.Backend, cfg *config.Config) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register graph tools ---

	indexTool := tools.NewIndexProjectTool(b)
	s.AddTool(indexTool.Definition(), indexTool.Handle)

	updateTool := tools.NewUpdateFilesTool(b)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	contextTool := tools.NewContextForFilesTool(b, cfg.DefaultRadius)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	// --- Register ETG tools ---

	logTool := tools.NewLogEventTool(b)
	s.AddTool(logTool.Definition(), logTool.Handle)

	queryTool := tools.NewQuerySimilarTool(b, cfg.DefaultQueryLimit)
	s.AddTool(queryTool.Definition(), queryTool.Handle)

	// --- Register prompts ---

	protocolPrompt := prompts.NewProtocolPrompt()
	s.AddPrompt(protocolPrompt.Definition(), protocolPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(b)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	return s
}

// noop is the cleanup returned when no backend was opened.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use etgraph.
func serverInstructions() string {
	return `You have access to etgraph, an Execution Trace Graph for the projects you work on.
It remembers what earlier sessions tried: tasks, their steps, the tools they ran,
the files they touched and the errors they hit.

## Before you start a task
1. Call etg_query_similar_attempts with the key words of the task. Read the errors
   of earlier attempts and do not repeat them.
2. Call graph_context_for_files for the files you expect to change.
3. If the project has never been indexed, call graph_index_project once.

## While you work
Call etg_log_event with the same project_root for every event:
- task_start first, without task_id. Keep the task_id it returns and pass it to
  every later event of the task.
- step when you begin a new phase (role, llm_summary).
- tool_start before an edit or command (tool_name, files_touched), then tool_end
  after it (success, duration_ms). tool_end without tool_id closes the latest tool.
- error whenever something fails (error_type, message, raw_log_excerpt).
- checkpoint when you save an artifact (checkpoint_file).
- task_end with status "completed" or "failed" when you are done.
tool_start, checkpoint and error attach to the latest step of the task. If the
task has no step yet, one is created for them.

After editing files, call graph_update_files with their paths.

## Notes
- project_root should be absolute. Relative roots are resolved against the
  server's working directory.
- Files touched by a tool are also recorded on its step and task.
- Similarity is lexical: queries match as case-insensitive substrings.`
}

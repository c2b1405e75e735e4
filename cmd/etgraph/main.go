// etgraph: Execution Trace Graph for coding agents.
//
// It indexes project files and records what an agent did while working on
// them (tasks, steps, tool calls, checkpoints, errors), then answers "what
// was tried before?" through an MCP server or this CLI.
//
// Usage:
//
//	etgraph serve             # Start MCP server (stdio transport)
//	etgraph index <root>      # Index a project
//	etgraph query <root> <q>  # Find similar past attempts
package main

import (
	"os"

	"github.com/HendryAvila/etgraph/cmd/etgraph/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/HendryAvila/etgraph/internal/backend"
	etgserver "github.com/HendryAvila/etgraph/internal/server"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func (a *app) newServeCmd() *cobra.Command {
	var (
		backendFlag string
		once        bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Serve the graph and ETG tools over the MCP stdio transport.

--backend overrides the configured backend: auto tries SQLite and falls
back to JSON storage, sqlite fails if SQLite cannot start, storage uses
JSON files only. --once answers a single JSON-RPC request read from stdin
and exits, which is handy for debugging a client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if backendFlag != "" {
				a.cfg.Backend = backendFlag
			}
			s, cleanup, err := etgserver.New(a.cfg, backend.ParsePreference(a.cfg.Backend))
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			defer cleanup()

			if once {
				return serveOnce(cmd, s)
			}

			stopMetrics, err := a.startMetrics()
			if err != nil {
				return err
			}
			defer stopMetrics()

			return server.ServeStdio(s)
		},
	}
	cmd.Flags().StringVar(&backendFlag, "backend", "", "backend: auto, sqlite or storage (default from config)")
	cmd.Flags().BoolVar(&once, "once", false, "process a single JSON-RPC request from stdin and exit")
	return cmd
}

// serveOnce answers the first non-empty line of stdin.
func serveOnce(cmd *cobra.Command, s *server.MCPServer) error {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading request: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	resp := s.HandleMessage(cmd.Context(), json.RawMessage(line))
	if resp == nil {
		return nil
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
}

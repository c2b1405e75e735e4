// Package cmd implements the etgraph command tree.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/HendryAvila/etgraph/internal/config"
	"github.com/HendryAvila/etgraph/internal/telemetry"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	cfgFile string
	jsonOut bool
	cfg     *config.Config
}

// NewRootCmd builds the full command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "etgraph",
		Short: "etgraph - Execution Trace Graph for coding agents",
		Long: `etgraph indexes the files of a project and records what a coding agent
did while working on it: tasks, steps, tool calls, checkpoints and errors.

Later sessions ask it what was tried before, through the MCP server
("etgraph serve") or directly from this CLI.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.etgraph/config.yaml)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "always print JSON, even on a terminal")

	root.AddCommand(
		a.newServeCmd(),
		a.newIndexCmd(),
		a.newUpdateCmd(),
		a.newLogCmd(),
		a.newQueryCmd(),
		a.newContextCmd(),
		a.newStatusCmd(),
		a.newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) load(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// stdout carries the MCP transport; logs always go to stderr.
	slog.SetDefault(cfg.NewLogger(cmd.ErrOrStderr()))
	a.cfg = cfg
	return nil
}

// openBackend selects the configured backend. The caller closes it.
func (a *app) openBackend() (backend.Backend, error) {
	return backend.Select(a.cfg, backend.ParsePreference(a.cfg.Backend))
}

// startMetrics serves /metrics when metrics_addr is set. The returned stop
// function is always non-nil.
func (a *app) startMetrics() (func(), error) {
	if a.cfg.MetricsAddr == "" {
		return func() {}, nil
	}
	srv, err := telemetry.Listen(a.cfg.MetricsAddr)
	if err != nil {
		return func() {}, fmt.Errorf("starting metrics server: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Stopping metrics server", "error", err)
		}
	}, nil
}

// render prints markdown on a terminal and indented JSON otherwise.
func (a *app) render(cmd *cobra.Command, v any, markdown string) error {
	out := cmd.OutOrStdout()
	if !a.jsonOut && isTerminal(out) {
		_, err := fmt.Fprintln(out, markdown)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/HendryAvila/etgraph/internal/etg"
	"github.com/spf13/cobra"
)

func (a *app) newLogCmd() *cobra.Command {
	var (
		taskID  string
		payload string
	)
	cmd := &cobra.Command{
		Use:   "log <root> <kind>",
		Short: "Record one ETG event",
		Long: fmt.Sprintf(`Record a task lifecycle event. kind is one of: %v.

Omit --task-id on task_start to get a new task id; pass it to every later
event of the task. --payload is a JSON object, for example
'{"tool_name": "edit", "files_touched": ["main.go"]}' for tool_start.`, etg.KindNames()),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("--payload is not valid JSON")
			}
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.LogEvent(cmd.Context(), args[0], taskID, args[1], json.RawMessage(payload))
			if err != nil {
				return err
			}
			return a.render(cmd, res, res.String())
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "task the event belongs to (empty starts a new one)")
	cmd.Flags().StringVar(&payload, "payload", "{}", "event payload as a JSON object")
	return cmd
}

func (a *app) newQueryCmd() *cobra.Command {
	var (
		files []string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "query <root> <text>",
		Short: "Find past steps similar to a query",
		Long: `Rank recorded steps by how often text appears in the task prompt, the
step summary and the touched files. --file restricts the search to steps
that touched one of the given files.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				limit = a.cfg.DefaultQueryLimit
			}
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.QuerySimilar(cmd.Context(), args[0], args[1], files, limit)
			if err != nil {
				return err
			}
			return a.render(cmd, res, res.SummaryMarkdown)
		},
	}
	cmd.Flags().StringSliceVar(&files, "file", nil, "only steps that touched this file (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "max results (default from config)")
	return cmd
}

package cmd

import (
	"fmt"

	"github.com/HendryAvila/etgraph/internal/backend"
	"github.com/spf13/cobra"
)

func (a *app) newIndexCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "index <root>",
		Short: "Index every file under a project root",
		Long: `Walk the project and record size, hash, language and modification time
of every file. Directories listed in exclude_dirs are skipped.

--mode full rebuilds the file graph from scratch. --mode incremental keeps
it and re-hashes every file it walks. The data directory is never indexed.
Recorded tasks and steps are never touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := backend.ParseMode(mode)
			if err != nil {
				return err
			}
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.IndexProject(cmd.Context(), args[0], m)
			if err != nil {
				return err
			}
			return a.render(cmd, res, fmt.Sprintf("Indexed %d files in %.1fms (%s backend)", res.FilesIndexed, res.DurationMS, b.Name()))
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(backend.ModeFull), "full or incremental")
	return cmd
}

func (a *app) newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <root> <path>...",
		Short: "Re-index specific files",
		Long: `Re-record the given files. Paths may be absolute or relative to the
project root. Paths that no longer exist are skipped.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.UpdateFiles(cmd.Context(), args[0], args[1:])
			if err != nil {
				return err
			}
			return a.render(cmd, res, fmt.Sprintf("Updated %d of %d files in %.1fms", res.FilesUpdated, len(args)-1, res.DurationMS))
		},
	}
}

func (a *app) newContextCmd() *cobra.Command {
	var radius int
	cmd := &cobra.Command{
		Use:   "context <root> <file>...",
		Short: "Show what is known about a set of files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if radius < 0 {
				radius = a.cfg.DefaultRadius
			}
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.ContextForFiles(cmd.Context(), args[0], args[1:], radius)
			if err != nil {
				return err
			}
			return a.render(cmd, res, res.ReturnDisplay)
		},
	}
	cmd.Flags().IntVar(&radius, "radius", -1, "neighborhood radius (default from config)")
	return cmd
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [root]",
		Short: "Count the records stored for a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			res, err := b.Status(cmd.Context(), root)
			if err != nil {
				return err
			}
			return a.render(cmd, res, res.ReturnDisplay)
		},
	}
}

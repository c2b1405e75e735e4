package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/etgraph/internal/watch"
	"github.com/spf13/cobra"
)

func (a *app) newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <root>",
		Short: "Keep a project's file graph current as files change",
		Long: `Watch the project for file changes and re-index changed files in
batches, once the tree has been quiet for watch_debounce. Stops on
interrupt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.openBackend()
			if err != nil {
				return err
			}
			defer b.Close()

			stopMetrics, err := a.startMetrics()
			if err != nil {
				return err
			}
			defer stopMetrics()

			w, err := watch.New(args[0], b, watch.Options{
				Debounce:    a.cfg.WatchDebounce,
				ExcludeDirs: a.cfg.ExcludeDirs,
				SkipPaths:   []string{a.cfg.DataDir},
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return w.Run(ctx)
		},
	}
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/designtools/libindex/internal/autotune"
	"github.com/designtools/libindex/internal/fingerprint"
	"github.com/designtools/libindex/internal/index"
	"github.com/designtools/libindex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the library and index changes continuously",
		Long: `Watch the library and run an incremental index pass whenever files
change. Rapid editor saves are debounced into a single pass. An
initial incremental pass runs at startup to catch changes made while
the watcher was down.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			embedder, err := openEmbedder(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = embedder.Close() }()

			st, err := openStore(cfg, embedder.Dimensions())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			tracker := fingerprint.NewTracker(cfg.StateDir())
			if err := tracker.Load(); err != nil {
				return fmt.Errorf("cannot load fingerprint state: %w", err)
			}
			defer func() { _ = tracker.Close() }()

			advisor := autotune.NewAdvisor(nil, nil)
			engine := index.New(cfg, embedder, st, tracker, advisor, nil)

			// Catch up on anything changed while we were not running.
			if _, err := engine.Run(ctx, index.ModeIncremental); err != nil {
				return err
			}

			w, err := watcher.New(cfg.Paths.LibraryRoot, watcher.Options{
				Debounce:    cfg.WatchDebounce(),
				ExcludeDirs: cfg.Discovery.ExcludeDirs,
			}, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			if err := w.Start(ctx); err != nil {
				return err
			}
			fmt.Printf("Watching %s (Ctrl+C to stop)\n", cfg.Paths.LibraryRoot)

			for {
				select {
				case <-ctx.Done():
					return nil
				case batch, ok := <-w.Batches():
					if !ok {
						return nil
					}
					slog.Info("change detected, reindexing",
						slog.Int("changed_files", len(batch)))
					stats, err := engine.Run(ctx, index.ModeIncremental)
					if err != nil {
						if ctx.Err() != nil {
							return nil
						}
						// Storage failures stop the watch; anything
						// else was already absorbed per file.
						return err
					}
					if stats.FilesProcessed > 0 || stats.FilesDeleted > 0 {
						fmt.Printf("Reindexed %d files, removed %d\n",
							stats.FilesProcessed, stats.FilesDeleted)
					}
				}
			}
		},
	}
	return cmd
}

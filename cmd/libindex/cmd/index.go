package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/designtools/libindex/internal/autotune"
	"github.com/designtools/libindex/internal/fingerprint"
	"github.com/designtools/libindex/internal/index"
)

func newIndexCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the design library",
		Long: `Index the design library into the vector store.

By default runs incrementally: files whose content hash is unchanged
since the last run are skipped. Use --full to reprocess everything,
for example after changing chunking parameters.

Per-file failures are logged and the run continues; the exit code
reflects only unrecoverable startup or storage failures.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mode := index.ModeIncremental
			if full {
				mode = index.ModeFull
			}
			return runIndex(ctx, mode)
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Reprocess every file regardless of fingerprints")
	return cmd
}

func runIndex(ctx context.Context, mode index.Mode) error {
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

	stats, err := engine.Run(ctx, mode)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d files (%d chunks), skipped %d, failed %d, removed %d deleted\n",
		stats.FilesProcessed, stats.ChunksStored, stats.FilesSkipped,
		stats.FilesFailed, stats.FilesDeleted)
	return nil
}

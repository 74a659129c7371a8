package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/designtools/libindex/internal/fingerprint"
)

func newResetCmd() *cobra.Command {
	var resetStore bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear fingerprint state",
		Long: `Clear the fingerprint mapping so the next run reprocesses every file.

With --store, also clears the vector store contents. Without it the
stored chunks are kept and simply overwritten as files re-index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			tracker := fingerprint.NewTracker(cfg.StateDir())
			if err := tracker.Load(); err != nil {
				return fmt.Errorf("cannot load fingerprint state: %w", err)
			}
			defer func() { _ = tracker.Close() }()

			for _, path := range tracker.Paths() {
				tracker.Forget(path)
			}
			if err := tracker.Save(); err != nil {
				return err
			}
			fmt.Println("Fingerprint state cleared.")

			if resetStore {
				st, err := openStore(cfg, cfg.Embeddings.Dimensions)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()

				if err := st.Reset(context.Background()); err != nil {
					return err
				}
				if err := st.Save(); err != nil {
					return err
				}
				fmt.Println("Vector store cleared.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&resetStore, "store", false, "Also clear the vector store")
	return cmd
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/designtools/libindex/internal/index"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := openStore(cfg, cfg.Embeddings.Dimensions)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Stats(context.Background())
			if err != nil {
				return err
			}

			lastRun, err := index.LastRun(cfg.StateDir())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Store   any `json:"store"`
					LastRun any `json:"last_run,omitempty"`
				}{Store: stats, LastRun: lastRun})
			}

			fmt.Printf("Files:   %d\n", stats.Files)
			fmt.Printf("Chunks:  %d\n", stats.Chunks)
			if stats.GraphOrphan > 0 {
				fmt.Printf("Orphans: %d (compacted on next full run)\n", stats.GraphOrphan)
			}
			printCounts("Frameworks", stats.Frameworks)
			printCounts("Categories", stats.Categories)

			if lastRun != nil {
				fmt.Printf("Last run (%s, %s): %d processed, %d skipped, %d failed\n",
					lastRun.Mode,
					lastRun.FinishedAt.Format("2006-01-02 15:04:05"),
					lastRun.FilesProcessed, lastRun.FilesSkipped, lastRun.FilesFailed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, counts[k])
	}
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/designtools/libindex/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		k         int
		framework string
		category  string
		repo      string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed library",
		Long: `Search the indexed library by semantic similarity.

The query is embedded with the same model as the index and matched
against stored chunks. Results can be narrowed by framework, component
category, or source repository.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			query := strings.Join(args, " ")

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

			vec, err := embedder.Embed(ctx, query)
			if err != nil {
				return fmt.Errorf("cannot embed query: %w", err)
			}

			results, err := st.Search(ctx, vec, k, store.Filter{
				Framework: framework,
				Category:  category,
				RepoName:  repo,
			})
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}

			for i, r := range results {
				fmt.Printf("%d. %s (chunk %d, score %.3f)\n", i+1, r.Path, r.ChunkIndex, r.Score)
				if r.Meta.Framework != "" || r.Meta.Category != "" {
					fmt.Printf("   framework=%s category=%s section=%s\n",
						r.Meta.Framework, r.Meta.Category, r.Meta.Section)
				}
				fmt.Printf("   %s\n\n", snippet(r.Text, 200))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", 5, "Number of results")
	cmd.Flags().StringVar(&framework, "framework", "", "Filter by framework (react, vue, html, ...)")
	cmd.Flags().StringVar(&category, "category", "", "Filter by component category (hero, footer, ...)")
	cmd.Flags().StringVar(&repo, "repo", "", "Filter by source repository name")
	return cmd
}

// snippet returns the first line-ish of text, truncated at n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

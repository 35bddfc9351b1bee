package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	topK    int
	snippet int
	json    bool
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search committed documents",
		Long: `Search committed documents, best match first.

Query syntax:
  rust tantivy           either term (juxtaposed clauses are ORed)
  rust AND tantivy       both terms
  rust OR go             either term
  rust AND NOT flutter   exclude documents matching flutter
  "search engine"        exact phrase
  (rust OR go) AND fast  grouping

Operators are case-sensitive; lowercase and/or/not are ordinary words.`,
		Example: `  docidx search "Rust AND Tantivy"
  docidx search '"UI toolkit"' --top-k 3
  docidx search "engine" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, g, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().IntVar(&opts.snippet, "snippet", 80, "Characters of text to show per result (0 hides text)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, g *globalOptions, query string, opts searchOptions) (err error) {
	out := output.New(cmd.OutOrStdout())

	m, cfg, err := g.openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	topK := cfg.ClampTopK(opts.topK)
	start := time.Now()
	results, err := m.SearchDocuments(ctx, query, topK)
	if err != nil {
		return err
	}
	slog.Info("search_completed",
		slog.String("query", query),
		slog.Int("top_k", topK),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	if opts.json {
		return out.JSON(results)
	}
	out.Results(query, results, opts.snippet)
	return nil
}

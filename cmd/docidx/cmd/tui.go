package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/ui"
)

func newTUICmd(g *globalOptions) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Search the index interactively",
		Long: `Open an interactive search screen. Type a query and press Enter to
search; use the arrow keys to move through results and Esc to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), cmd, g, topK)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Maximum number of results (default from config)")

	return cmd
}

func runTUI(ctx context.Context, cmd *cobra.Command, g *globalOptions, topK int) (err error) {
	if !ui.IsTTY(cmd.OutOrStdout()) {
		return fmt.Errorf("tui needs a terminal; use 'docidx search' instead")
	}

	m, cfg, err := g.openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	title := fmt.Sprintf("docidx · %s", cfg.Index.Dir)
	return ui.RunSearch(ctx, m, cfg.ClampTopK(topK), title, cmd.InOrStdin(), cmd.OutOrStdout())
}

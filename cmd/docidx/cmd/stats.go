package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/output"
)

func newStatsCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long:  `Display the index location, backend, document count and commit generation.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, g, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, g *globalOptions, jsonOutput bool) (err error) {
	out := output.New(cmd.OutOrStdout())

	m, _, err := g.openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	st, err := m.Stats(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return out.JSON(st)
	}
	out.Stats(st)
	return nil
}

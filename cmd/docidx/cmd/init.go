package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/output"
)

func newInitCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the index if it does not exist",
		Long: `Create an empty index in the configured directory, or verify that the
existing one opens cleanly.

The backend is chosen with --backend or index.backend in .docidx.yaml and is
fixed once the index exists.`,
		Example: `  # Create a Bleve index in .docidx/index
  docidx init

  # Create a SQLite FTS5 index elsewhere
  docidx init --backend sqlite --dir /var/lib/docidx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.Context(), cmd, g)
		},
	}
}

func runInit(ctx context.Context, cmd *cobra.Command, g *globalOptions) (err error) {
	out := output.New(cmd.OutOrStdout())

	m, _, err := g.openIndex(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize index: %w", err)
	}
	defer closeIndex(m, &err)

	st, err := m.Stats(ctx)
	if err != nil {
		return err
	}

	slog.Info("index_initialized",
		slog.String("path", st.Path),
		slog.String("backend", string(st.Backend)),
		slog.Uint64("documents", st.Documents))
	out.Successf("Index ready at %s (%s, %d documents)", st.Path, st.Backend, st.Documents)
	return nil
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/pkg/docindex"
)

func newDeleteCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete documents and commit",
		Long: `Delete one or more documents in a single commit. Unknown ids are
ignored.`,
		Example: `  docidx delete doc1
  docidx delete doc1 doc2 doc3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			done := fmt.Sprintf("Deleted %d documents", len(args))
			if len(args) == 1 {
				done = fmt.Sprintf("Deleted %s", args[0])
			}
			return runWrite(cmd.Context(), cmd, g, func(ctx context.Context, m *docindex.Manager) error {
				if len(args) == 1 {
					return m.DeleteDocument(ctx, args[0])
				}
				return m.DeleteDocumentsBatch(ctx, args)
			}, done)
		},
	}
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/output"
)

func newGetCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a committed document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), cmd, g, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runGet(ctx context.Context, cmd *cobra.Command, g *globalOptions, id string, jsonOutput bool) (err error) {
	out := output.New(cmd.OutOrStdout())

	m, _, err := g.openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	doc, found, err := m.GetDocumentByID(ctx, id)
	if err != nil {
		return err
	}

	if jsonOutput {
		if !found {
			return out.JSON(map[string]any{"found": false})
		}
		return out.JSON(map[string]any{"found": true, "document": doc})
	}

	if !found {
		out.Warningf("Document %s not found", id)
		return nil
	}
	out.Document(doc)
	return nil
}

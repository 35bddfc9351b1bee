package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/output"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

// documentOptions holds flags shared by add and update.
type documentOptions struct {
	file string
}

func newAddCmd(g *globalOptions) *cobra.Command {
	var opts documentOptions

	cmd := &cobra.Command{
		Use:   "add <id> [text...]",
		Short: "Add a document and commit it",
		Long: `Add a document and commit it. An existing document with the same id is
replaced. The text is taken from the remaining arguments, or from --file
("-" reads stdin).`,
		Example: `  docidx add doc1 "Flutter is a UI toolkit"
  docidx add readme --file README.md
  cat notes.txt | docidx add notes --file -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := documentFromArgs(cmd, args, opts)
			if err != nil {
				return err
			}
			return runWrite(cmd.Context(), cmd, g, func(ctx context.Context, m *docindex.Manager) error {
				return m.AddDocument(ctx, doc)
			}, fmt.Sprintf("Added %s", doc.ID))
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the text from a file (- for stdin)")

	return cmd
}

func newUpdateCmd(g *globalOptions) *cobra.Command {
	var opts documentOptions

	cmd := &cobra.Command{
		Use:   "update <id> [text...]",
		Short: "Replace a document's text",
		Long: `Replace the text of a document in a single commit. Searches never see
the document missing or with both texts. Updating an unknown id adds it.`,
		Example: `  docidx update doc1 "Flutter is Google's UI toolkit"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := documentFromArgs(cmd, args, opts)
			if err != nil {
				return err
			}
			return runWrite(cmd.Context(), cmd, g, func(ctx context.Context, m *docindex.Manager) error {
				return m.UpdateDocument(ctx, doc)
			}, fmt.Sprintf("Updated %s", doc.ID))
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the text from a file (- for stdin)")

	return cmd
}

// documentFromArgs builds a document from <id> [text...] or --file.
func documentFromArgs(cmd *cobra.Command, args []string, opts documentOptions) (docindex.Document, error) {
	doc := docindex.Document{ID: args[0]}

	switch {
	case opts.file != "" && len(args) > 1:
		return doc, fmt.Errorf("text arguments and --file are mutually exclusive")
	case opts.file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return doc, fmt.Errorf("failed to read stdin: %w", err)
		}
		doc.Text = string(data)
	case opts.file != "":
		data, err := os.ReadFile(opts.file)
		if err != nil {
			return doc, fmt.Errorf("failed to read %s: %w", opts.file, err)
		}
		doc.Text = string(data)
	default:
		doc.Text = strings.Join(args[1:], " ")
	}
	return doc, nil
}

// runWrite opens the index, applies fn and reports success.
func runWrite(ctx context.Context, cmd *cobra.Command, g *globalOptions, fn func(context.Context, *docindex.Manager) error, done string) (err error) {
	out := output.New(cmd.OutOrStdout())

	m, _, err := g.openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	if err := fn(ctx, m); err != nil {
		return err
	}
	out.Success(done)
	return nil
}

package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docidx/internal/ingest"
	"github.com/Aman-CERP/docidx/internal/output"
)

// importOptions holds CLI flags for import.
type importOptions struct {
	batchSize int
	progress  bool
}

// importResult summarizes an import run.
type importResult struct {
	Lines    int
	Skipped  int
	Upserted int
	Deleted  int
	Batches  int
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Import documents from a JSON Lines file",
		Long: `Import documents from a JSON Lines file ("-" reads stdin). Each line is

  {"id": "doc1", "text": "..."}                 add or replace
  {"op": "delete", "id": "doc1"}                delete

Lines are applied in batches; each batch commits atomically and the last
line for an id within a batch wins. Lines that do not parse are skipped
and reported.`,
		Example: `  docidx import docs.jsonl
  docidx import docs.jsonl --batch-size 500
  producer | docidx import - --progress=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, g, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 1000, "Documents per commit")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "Show a progress bar")

	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, g *globalOptions, path string, opts importOptions) (err error) {
	if opts.batchSize < 1 {
		return fmt.Errorf("--batch-size must be at least 1, got %d", opts.batchSize)
	}
	out := output.New(cmd.OutOrStdout())

	var in io.Reader = cmd.InOrStdin()
	size := int64(-1)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		in = f
	}

	m, _, err := g.openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	var bar *progressbar.ProgressBar
	if opts.progress {
		bar = progressbar.NewOptions64(size,
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan]Importing[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr())
			}),
		)
		in = io.TeeReader(in, bar)
	}

	res, err := importLines(ctx, m, in, opts.batchSize, func(line int, perr error) {
		slog.Warn("import_line_skipped", slog.Int("line", line), slog.String("error", perr.Error()))
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("import stopped after %d lines: %w", res.Lines, err)
	}

	slog.Info("import_completed",
		slog.String("path", path),
		slog.Int("lines", res.Lines),
		slog.Int("upserted", res.Upserted),
		slog.Int("deleted", res.Deleted),
		slog.Int("skipped", res.Skipped),
		slog.Int("batches", res.Batches))

	out.Successf("Imported %d documents, deleted %d (%d batches)", res.Upserted, res.Deleted, res.Batches)
	if res.Skipped > 0 {
		out.Warningf("Skipped %d malformed lines (see log for details)", res.Skipped)
	}
	return nil
}

// importLines decodes JSON lines from r and applies them in batches of
// batchSize. Blank lines are ignored; undecodable lines are reported to
// skip and counted.
func importLines(ctx context.Context, idx ingest.Index, r io.Reader, batchSize int, skip func(line int, err error)) (importResult, error) {
	var res importResult
	batch := make([]ingest.Message, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		upserted, deleted, err := ingest.Apply(ctx, idx, batch)
		if err != nil {
			return err
		}
		res.Upserted += upserted
		res.Deleted += deleted
		res.Batches++
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		res.Lines++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		msg, err := ingest.Decode(line)
		if err != nil {
			res.Skipped++
			skip(res.Lines, err)
			continue
		}
		batch = append(batch, msg)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("failed to read input: %w", err)
	}
	return res, flush()
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docidx/internal/output"
	"github.com/Aman-CERP/docidx/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	include     []string
	exclude     []string
	poll        bool
	skipInitial bool
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Keep the index in sync with a directory",
		Long: `Index every matching file under <dir> and keep the index in sync until
interrupted.

A file becomes a document whose id is its slash-separated path relative to
<dir> and whose text is its content. Changes are debounced and each batch
is published with a single commit. Include and exclude patterns are
doublestar globs ("**/*.md"); a pattern without a slash excludes any path
segment with that name.`,
		Example: `  docidx watch ./notes
  docidx watch ./docs --include "**/*.md" --exclude drafts
  docidx watch /mnt/share --poll`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, g, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Include glob (repeatable, default from config)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Exclude glob (repeatable, added to config excludes)")
	cmd.Flags().BoolVar(&opts.poll, "poll", false, "Poll the directory instead of using filesystem notifications")
	cmd.Flags().BoolVar(&opts.skipInitial, "skip-initial", false, "Do not index existing files before watching")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, g *globalOptions, root string, opts watchOptions) (err error) {
	out := output.New(cmd.OutOrStdout())

	m, cfg, err := g.openIndex(ctx)
	if err != nil {
		return err
	}
	defer closeIndex(m, &err)

	debounce, err := cfg.WatchDebounce()
	if err != nil {
		return err
	}
	include := cfg.Watch.Include
	if len(opts.include) > 0 {
		include = opts.include
	}
	exclude := append(append([]string{}, cfg.Watch.Exclude...), opts.exclude...)

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: debounce,
		Include:        include,
		Exclude:        exclude,
		ForcePolling:   opts.poll,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	syncer := watcher.NewSyncer(m, root, w.Filter(), slog.Default())

	out.Status("👀", fmt.Sprintf("Watching %s (%s)", root, w.WatcherType()))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return w.Start(egCtx, root)
	})
	eg.Go(func() error {
		if !opts.skipInitial {
			res, err := syncer.InitialSync(egCtx)
			if err != nil {
				return fmt.Errorf("initial sync failed: %w", err)
			}
			out.Successf("Indexed %d files (%d removed)", res.Upserted, res.Deleted)
		}
		return syncer.Run(egCtx, w)
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err == nil {
		out.Success("Watcher stopped")
	}
	return err
}

package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

// Index is the part of docindex.Manager the syncer drives.
type Index interface {
	AddDocumentNoCommit(ctx context.Context, doc docindex.Document) error
	DeleteDocumentNoCommit(ctx context.Context, id string) error
	Commit(ctx context.Context) error
}

// BatchResult summarises one applied batch.
type BatchResult struct {
	Upserted int
	Deleted  int
	Skipped  int
	Duration time.Duration
}

// Syncer applies file events to an index. Each batch is staged with the
// no-commit operations and published by one Commit, so a batch becomes
// visible all at once.
type Syncer struct {
	index  Index
	root   string
	filter *Filter
	logger *slog.Logger
}

// NewSyncer creates a syncer for files under root. Document ids are
// slash-separated paths relative to root.
func NewSyncer(idx Index, root string, filter *Filter, logger *slog.Logger) *Syncer {
	if filter == nil {
		filter = &Filter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{index: idx, root: root, filter: filter, logger: logger}
}

// Apply stages every event in batch and commits once. When the commit
// fails the staged operations are kept by the index, so the next batch's
// commit publishes them too.
func (s *Syncer) Apply(ctx context.Context, batch []FileEvent) (BatchResult, error) {
	start := time.Now()
	var res BatchResult

	for _, ev := range batch {
		if ev.IsDir || !s.filter.Match(ev.Path) {
			res.Skipped++
			continue
		}
		switch ev.Operation {
		case OpDelete, OpRename:
			if err := s.index.DeleteDocumentNoCommit(ctx, ev.Path); err != nil {
				return res, err
			}
			res.Deleted++
		default:
			outcome, err := s.stageFile(ctx, ev.Path)
			if err != nil {
				return res, err
			}
			switch outcome {
			case stagedDelete:
				res.Deleted++
			case stageSkipped:
				res.Skipped++
			default:
				res.Upserted++
			}
		}
	}

	if err := s.index.Commit(ctx); err != nil {
		return res, err
	}
	res.Duration = time.Since(start)

	s.logger.Info("watch_batch_committed",
		slog.Int("upserted", res.Upserted),
		slog.Int("deleted", res.Deleted),
		slog.Int("skipped", res.Skipped),
		slog.Duration("duration", res.Duration))
	return res, nil
}

type stageOutcome int

const (
	stagedUpsert stageOutcome = iota
	stagedDelete
	stageSkipped
)

// stageFile stages the current content of rel. A file that vanished
// before it could be read is staged as a delete; one that cannot be read
// is skipped and left as it was in the index.
func (s *Syncer) stageFile(ctx context.Context, rel string) (stageOutcome, error) {
	content, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return stagedDelete, s.index.DeleteDocumentNoCommit(ctx, rel)
	}
	if err != nil {
		s.logger.Warn("watch_read_failed", slog.String("path", rel), slog.String("error", err.Error()))
		return stageSkipped, nil
	}
	return stagedUpsert, s.index.AddDocumentNoCommit(ctx, docindex.Document{ID: rel, Text: string(content)})
}

// InitialSync stages every matching file under root and commits once.
func (s *Syncer) InitialSync(ctx context.Context) (BatchResult, error) {
	var batch []FileEvent
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if s.filter.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.filter.Match(rel) {
			batch = append(batch, FileEvent{Path: rel, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return s.Apply(ctx, batch)
}

// Source delivers debounced batches. HybridWatcher satisfies it.
type Source interface {
	Events() <-chan []FileEvent
	Errors() <-chan error
}

// Run applies batches from src until ctx is canceled or src closes its
// channels. Failed batches are logged and the loop continues.
func (s *Syncer) Run(ctx context.Context, src Source) error {
	events, errs := src.Events(), src.Errors()
	for events != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if _, err := s.Apply(ctx, batch); err != nil {
				s.logger.Error("watch_batch_failed",
					append([]any{slog.Int("events", len(batch))}, dxerrors.LogAttrs(err)...)...)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
	return nil
}

package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/internal/store"
)

// State is the lifecycle state of a Session.
type State int32

const (
	// StateUninitialized means Initialize has not succeeded yet.
	StateUninitialized State = iota
	// StateClean means ready with nothing staged.
	StateClean
	// StateDirty means ready with staged operations awaiting commit.
	StateDirty
	// StateClosed means Close was called. Initialize may reopen.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Ready reports whether operations other than Initialize are allowed.
func (s State) Ready() bool {
	return s == StateClean || s == StateDirty
}

// OpenFunc opens the engine for an index directory.
type OpenFunc func(ctx context.Context, dir string, backend store.Backend) (store.Engine, error)

// Options configures a Session.
type Options struct {
	// Backend selects the engine. Empty means Bleve.
	Backend store.Backend

	// LookupCacheSize is the per-reader LRU size for id lookups.
	// Zero disables the cache.
	LookupCacheSize int

	// Open overrides how the engine is opened. Defaults to store.Open.
	Open OpenFunc

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Snapshot is a reader pinned to one commit. Every Snapshot returned by
// Session.Reader must be released; the underlying reader is closed once the
// session has moved past it and its last holder has released it.
type Snapshot struct {
	store.Reader
	refs   atomic.Int64
	logger *slog.Logger
}

func newSnapshot(r store.Reader, logger *slog.Logger) *Snapshot {
	snap := &Snapshot{Reader: r, logger: logger}
	snap.refs.Store(1)
	return snap
}

// acquire takes a reference unless the snapshot is already closing.
func (s *Snapshot) acquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference.
func (s *Snapshot) Release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	if err := s.Reader.Close(); err != nil {
		s.logger.Warn("snapshot_close_failed",
			slog.Uint64("generation", s.Generation()),
			slog.String("error", err.Error()))
	}
}

// Session owns one open engine with its writer and reader.
//
// All writer access is serialised by mu. Readers never take mu: they pin
// the current snapshot and use it to completion, while a reload swaps in a
// new snapshot atomically.
type Session struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex // guards path, engine, lock and all writer use
	path   string
	engine store.Engine
	lock   *WriterLock

	current atomic.Pointer[Snapshot]
	state   atomic.Int32
	reloads atomic.Uint64
}

// NewSession creates an uninitialized session.
func NewSession(opts Options) *Session {
	if opts.Backend == "" {
		opts.Backend = store.BackendBleve
	}
	if opts.Open == nil {
		opts.Open = store.Open
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, logger: logger}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Path returns the index directory, or "" before Initialize.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Backend returns the configured engine backend.
func (s *Session) Backend() store.Backend {
	return s.opts.Backend
}

// Reloads counts reader reloads since the session was created.
func (s *Session) Reloads() uint64 {
	return s.reloads.Load()
}

// Initialize opens or creates the index in dir and establishes the writer
// and first reader. Calling it again with the same directory is a no-op; a
// different directory is rejected until Close.
func (s *Session) Initialize(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dxerrors.StorageError("invalid index path", err).WithDetail("path", dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State().Ready() {
		if s.path == abs {
			return nil
		}
		return dxerrors.StorageError("session already initialized with another directory", nil).
			WithDetail("path", s.path).
			WithDetail("requested", abs).
			WithSuggestion("close the index before opening a different directory")
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return dxerrors.StorageError("index directory is not writable", err).WithDetail("path", abs)
	}

	lock := NewWriterLock(abs)
	acquired, err := lock.TryLock()
	if err != nil {
		return dxerrors.StorageError("failed to lock index directory", err).WithDetail("path", lock.Path())
	}
	if !acquired {
		return dxerrors.StorageError("index is locked by another process", nil).
			WithDetail("path", lock.Path()).
			WithSuggestion("stop the other docidx process using this directory")
	}

	engine, err := s.opts.Open(ctx, abs, s.opts.Backend)
	if err != nil {
		_ = lock.Unlock()
		return dxerrors.Wrap(dxerrors.ErrCodeStorage, err)
	}

	reader, err := engine.OpenReader(ctx)
	if err != nil {
		_ = engine.Close()
		_ = lock.Unlock()
		return dxerrors.StorageError("failed to open reader", err).WithDetail("path", abs)
	}

	s.path = abs
	s.engine = engine
	s.lock = lock
	s.current.Store(newSnapshot(s.wrapReader(reader), s.logger))
	s.state.Store(int32(StateClean))

	s.logger.Info("index_initialized",
		slog.String("path", abs),
		slog.String("backend", string(engine.Backend())),
		slog.Uint64("generation", reader.Generation()))
	return nil
}

// Reader pins the current committed snapshot. The caller must Release it.
func (s *Session) Reader() (*Snapshot, error) {
	for {
		if !s.State().Ready() {
			return nil, dxerrors.NotInitialized()
		}
		snap := s.current.Load()
		if snap == nil {
			return nil, dxerrors.NotInitialized()
		}
		if snap.acquire() {
			return snap, nil
		}
		// lost a race with a reload; the new snapshot is already current
	}
}

// Stage runs fn against the writer without committing. If fn fails, every
// op it staged is rolled back; ops staged by earlier calls are kept.
func (s *Session) Stage(ctx context.Context, fn func(w store.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stageLocked(fn); err != nil {
		return err
	}
	s.updateStateLocked()
	return nil
}

// Apply runs fn against the writer, then commits everything staged and
// reloads the reader. A staging failure rolls back fn's ops and commits
// nothing.
func (s *Session) Apply(ctx context.Context, fn func(w store.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.State().Ready() {
		return dxerrors.NotInitialized()
	}
	if err := s.stageLocked(fn); err != nil {
		s.updateStateLocked()
		return err
	}
	return s.commitLocked(ctx)
}

// Commit publishes all staged ops as one commit and reloads the reader.
// With nothing staged it still reloads. On failure the reader is not
// reloaded and the staged ops are kept for a retry.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.State().Ready() {
		return dxerrors.NotInitialized()
	}
	return s.commitLocked(ctx)
}

// Staged reports the number of ops waiting for commit.
func (s *Session) Staged() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.State().Ready() {
		return 0
	}
	return s.engine.Writer().Staged()
}

func (s *Session) stageLocked(fn func(w store.Writer) error) error {
	if !s.State().Ready() {
		return dxerrors.NotInitialized()
	}

	w := s.engine.Writer()
	sp := w.Savepoint()
	if err := fn(w); err != nil {
		w.RollbackTo(sp)
		s.logger.Warn("stage_rolled_back",
			slog.Int("savepoint", sp),
			slog.String("error", err.Error()))
		return dxerrors.Wrap(dxerrors.ErrCodeWrite, err)
	}
	return nil
}

func (s *Session) commitLocked(ctx context.Context) error {
	w := s.engine.Writer()
	staged := w.Staged()

	id, err := w.Commit(ctx)
	if err != nil {
		s.updateStateLocked()
		s.logger.Error("commit_failed",
			append([]any{slog.Int("staged", staged)}, dxerrors.LogAttrs(err)...)...)
		return dxerrors.Wrap(dxerrors.ErrCodeWrite, err)
	}
	s.updateStateLocked()

	if err := s.reloadLocked(ctx); err != nil {
		return err
	}

	s.logger.Debug("committed",
		slog.Uint64("commit_id", id),
		slog.Int("ops", staged))
	return nil
}

// reloadLocked replaces the reader snapshot with one at the latest commit.
// On failure the previous snapshot stays current, whole and unchanged.
func (s *Session) reloadLocked(ctx context.Context) error {
	reader, err := s.engine.OpenReader(ctx)
	if err != nil {
		s.logger.Error("reload_failed", dxerrors.LogAttrs(err)...)
		return dxerrors.Wrap(dxerrors.ErrCodeRead, err)
	}
	if old := s.current.Swap(newSnapshot(s.wrapReader(reader), s.logger)); old != nil {
		old.Release()
	}
	s.reloads.Add(1)
	return nil
}

func (s *Session) wrapReader(r store.Reader) store.Reader {
	return store.WithLookupCache(r, s.opts.LookupCacheSize)
}

func (s *Session) updateStateLocked() {
	if s.engine.Writer().Staged() > 0 {
		s.state.Store(int32(StateDirty))
		return
	}
	s.state.Store(int32(StateClean))
}

// Close discards staged ops, closes the engine and releases the writer
// lock. Closing an unopened or closed session is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.State().Ready() {
		return nil
	}

	s.state.Store(int32(StateClosed))
	if old := s.current.Swap(nil); old != nil {
		old.Release()
	}

	var errs []error
	if err := s.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("index_closed", slog.String("path", s.path))

	s.engine = nil
	s.lock = nil
	s.path = ""

	if len(errs) > 0 {
		return dxerrors.StorageError("failed to close index", errs[0])
	}
	return nil
}

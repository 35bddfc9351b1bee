package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/internal/query"
	"github.com/Aman-CERP/docidx/internal/store"
	"github.com/Aman-CERP/docidx/internal/store/storetest"
)

func newTestSession(t *testing.T, opts Options) (*Session, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "index")
	s := NewSession(opts)
	require.NoError(t, s.Initialize(context.Background(), dir))
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func add(docs ...Document) func(w store.Writer) error {
	return func(w store.Writer) error {
		for _, d := range docs {
			w.DeleteTerm(d.ID)
			if err := w.AddDocument(ToFields(d)); err != nil {
				return err
			}
		}
		return nil
	}
}

func lookup(t *testing.T, s *Session, id string) (Document, bool) {
	t.Helper()
	r, err := s.Reader()
	require.NoError(t, err)
	defer r.Release()

	f, ok, err := r.Lookup(context.Background(), id)
	require.NoError(t, err)
	return FromFields(f), ok
}

func TestSession_UninitializedRejectsOperations(t *testing.T) {
	s := NewSession(Options{})
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, s.State())

	_, err := s.Reader()
	assert.ErrorIs(t, err, dxerrors.ErrNotInitialized)
	assert.ErrorIs(t, s.Commit(ctx), dxerrors.ErrNotInitialized)
	assert.ErrorIs(t, s.Stage(ctx, add(Document{ID: "a"})), dxerrors.ErrNotInitialized)
	assert.ErrorIs(t, s.Apply(ctx, add(Document{ID: "a"})), dxerrors.ErrNotInitialized)
	assert.Equal(t, 0, s.Staged())
	assert.NoError(t, s.Close())
}

func TestSession_ClosedRejectsOperations(t *testing.T) {
	ctx := context.Background()
	faults := &storetest.Faults{}
	s, _ := newTestSession(t, Options{Open: storetest.Opener(faults)})
	require.NoError(t, s.Apply(ctx, add(Document{ID: "a", Text: "alpha"})))

	// When: the session is closed
	require.NoError(t, s.Close())

	// Then: every operation reports not initialized, none panics
	_, err := s.Reader()
	assert.ErrorIs(t, err, dxerrors.ErrNotInitialized)
	assert.ErrorIs(t, s.Apply(ctx, add(Document{ID: "b"})), dxerrors.ErrNotInitialized)
	assert.ErrorIs(t, s.Apply(ctx, func(w store.Writer) error {
		w.DeleteTerm("a")
		return nil
	}), dxerrors.ErrNotInitialized)
	assert.ErrorIs(t, s.Stage(ctx, add(Document{ID: "b"})), dxerrors.ErrNotInitialized)
	assert.ErrorIs(t, s.Commit(ctx), dxerrors.ErrNotInitialized)
	assert.Equal(t, StateClosed, s.State())

	// And: the last snapshot was closed
	assert.Equal(t, 0, faults.OpenReaders())
}

func TestSession_InitializeIsIdempotentForSamePath(t *testing.T) {
	s, dir := newTestSession(t, Options{})

	require.NoError(t, s.Initialize(context.Background(), dir))

	assert.Equal(t, StateClean, s.State())
	assert.Equal(t, dir, s.Path())
	assert.FileExists(t, filepath.Join(dir, store.LockFileName))
}

func TestSession_InitializeRejectsSecondDirectory(t *testing.T) {
	s, _ := newTestSession(t, Options{})

	err := s.Initialize(context.Background(), t.TempDir())

	assert.ErrorIs(t, err, dxerrors.ErrStorage)
}

func TestSession_InitializeUnwritablePath(t *testing.T) {
	// Given: a regular file where the directory should be
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewSession(Options{})
	err := s.Initialize(context.Background(), filepath.Join(blocker, "index"))

	assert.ErrorIs(t, err, dxerrors.ErrStorage)
	assert.Equal(t, StateUninitialized, s.State())
}

func TestSession_LockContention(t *testing.T) {
	// Given: one session holding the directory
	_, dir := newTestSession(t, Options{})

	// When: a second session opens the same directory
	other := NewSession(Options{})
	err := other.Initialize(context.Background(), dir)

	// Then: it fails with a storage error and stays uninitialized
	require.Error(t, err)
	assert.ErrorIs(t, err, dxerrors.ErrStorage)
	assert.Contains(t, err.Error(), "locked")
	assert.Equal(t, StateUninitialized, other.State())
}

func TestSession_CloseReleasesLockAndAllowsReopen(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []store.Backend{store.BackendBleve, store.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			s, dir := newTestSession(t, Options{Backend: backend})
			require.NoError(t, s.Apply(ctx, add(Document{ID: "a", Text: "persisted text"})))
			require.NoError(t, s.Stage(ctx, add(Document{ID: "b", Text: "discarded"})))

			// When: closing
			require.NoError(t, s.Close())

			// Then: operations fail as uninitialized
			assert.Equal(t, StateClosed, s.State())
			_, err := s.Reader()
			assert.ErrorIs(t, err, dxerrors.ErrNotInitialized)

			// And: another session can take over and sees committed state only
			other := NewSession(Options{Backend: backend})
			require.NoError(t, other.Initialize(ctx, dir))
			defer other.Close()

			doc, ok := lookup(t, other, "a")
			require.True(t, ok)
			assert.Equal(t, "persisted text", doc.Text)
			_, ok = lookup(t, other, "b")
			assert.False(t, ok)
		})
	}
}

func TestSession_StageIsInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, Options{LookupCacheSize: 16})

	// When: staging
	require.NoError(t, s.Stage(ctx, add(Document{ID: "a", Text: "staged"})))

	// Then: dirty, and not visible
	assert.Equal(t, StateDirty, s.State())
	assert.Equal(t, 2, s.Staged())
	_, ok := lookup(t, s, "a")
	assert.False(t, ok)

	// When: committing
	reloads := s.Reloads()
	require.NoError(t, s.Commit(ctx))

	// Then: clean, reloaded once, visible
	assert.Equal(t, StateClean, s.State())
	assert.Equal(t, reloads+1, s.Reloads())
	doc, ok := lookup(t, s, "a")
	require.True(t, ok)
	assert.Equal(t, "staged", doc.Text)
}

func TestSession_EmptyCommitStillReloads(t *testing.T) {
	s, _ := newTestSession(t, Options{})
	reloads := s.Reloads()

	require.NoError(t, s.Commit(context.Background()))

	assert.Equal(t, reloads+1, s.Reloads())
	assert.Equal(t, StateClean, s.State())
}

func TestSession_ApplyStagingFailureRollsBackOnlyThatCall(t *testing.T) {
	ctx := context.Background()
	faults := &storetest.Faults{}
	s, _ := newTestSession(t, Options{Open: storetest.Opener(faults)})

	// Given: one op staged by an earlier no-commit call
	require.NoError(t, s.Stage(ctx, func(w store.Writer) error {
		w.DeleteTerm("earlier")
		return nil
	}))
	faults.Reset()

	// And: the third add of the next batch will be rejected
	faults.Set(func(f *storetest.Faults) { f.FailAddAt = 3 })
	batch := []Document{{ID: "1", Text: "one"}, {ID: "2", Text: "two"}, {ID: "3", Text: "three"}}

	// When
	err := s.Apply(ctx, add(batch...))

	// Then: write error, nothing committed, earlier op still staged
	require.Error(t, err)
	assert.ErrorIs(t, err, dxerrors.ErrWrite)
	assert.ErrorIs(t, err, storetest.ErrInjected)
	assert.Equal(t, 0, faults.Commits())
	assert.Equal(t, 1, s.Staged())
	assert.Equal(t, StateDirty, s.State())
	for _, d := range batch {
		_, ok := lookup(t, s, d.ID)
		assert.False(t, ok, d.ID)
	}
}

func TestSession_CommitFailureKeepsDirtyAndReader(t *testing.T) {
	ctx := context.Background()
	faults := &storetest.Faults{}
	s, _ := newTestSession(t, Options{Open: storetest.Opener(faults)})

	require.NoError(t, s.Stage(ctx, add(Document{ID: "a", Text: "alpha"})))
	before, err := s.Reader()
	require.NoError(t, err)
	reloads := s.Reloads()

	// When: commit fails
	faults.Set(func(f *storetest.Faults) { f.FailCommit = true })
	err = s.Commit(ctx)

	// Then: dirty, ops kept, reader untouched
	require.Error(t, err)
	assert.ErrorIs(t, err, dxerrors.ErrWrite)
	assert.Equal(t, StateDirty, s.State())
	assert.Equal(t, 2, s.Staged())
	assert.Equal(t, reloads, s.Reloads())
	after, err := s.Reader()
	require.NoError(t, err)
	assert.Same(t, before, after)
	before.Release()
	after.Release()

	// When: retrying after the fault clears
	faults.Set(func(f *storetest.Faults) { f.FailCommit = false })
	require.NoError(t, s.Commit(ctx))

	// Then: the staged document is published
	_, ok := lookup(t, s, "a")
	assert.True(t, ok)
	assert.Equal(t, StateClean, s.State())
}

func TestSession_ReloadFailureAfterCommitReportsReadError(t *testing.T) {
	ctx := context.Background()
	faults := &storetest.Faults{}
	s, _ := newTestSession(t, Options{Open: storetest.Opener(faults)})

	faults.Set(func(f *storetest.Faults) { f.FailReader = true })
	err := s.Apply(ctx, add(Document{ID: "a", Text: "alpha"}))

	assert.ErrorIs(t, err, dxerrors.ErrRead)
	assert.Equal(t, StateClean, s.State(), "commit itself succeeded")
}

func TestSession_ReloadFailureKeepsWholePreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []store.Backend{store.BackendBleve, store.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			faults := &storetest.Faults{}
			s, _ := newTestSession(t, Options{
				Backend:         backend,
				LookupCacheSize: 16,
				Open:            storetest.Opener(faults),
			})
			require.NoError(t, s.Apply(ctx, add(Document{ID: "a", Text: "old a"})))

			// Given: a cached lookup of a on the current reader
			doc, ok := lookup(t, s, "a")
			require.True(t, ok)
			require.Equal(t, "old a", doc.Text)

			// When: a commit rewrites a and adds b, but the reload fails
			faults.Set(func(f *storetest.Faults) { f.FailReader = true })
			err := s.Apply(ctx, add(Document{ID: "a", Text: "new a"}, Document{ID: "b", Text: "new b"}))
			require.ErrorIs(t, err, dxerrors.ErrRead)

			// Then: the current reader shows only the previous commit
			r, err := s.Reader()
			require.NoError(t, err)
			f, ok, err := r.Lookup(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "old a", f.Text)
			_, ok, err = r.Lookup(ctx, "b")
			require.NoError(t, err)
			assert.False(t, ok)
			n, err := r.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), n)
			q, err := query.Parse("new")
			require.NoError(t, err)
			hits, err := r.Search(ctx, q, 10)
			require.NoError(t, err)
			assert.Empty(t, hits)
			r.Release()

			// When: the fault clears and an empty commit reloads
			faults.Set(func(f *storetest.Faults) { f.FailReader = false })
			require.NoError(t, s.Commit(ctx))

			// Then: both writes are visible together
			doc, ok = lookup(t, s, "a")
			require.True(t, ok)
			assert.Equal(t, "new a", doc.Text)
			_, ok = lookup(t, s, "b")
			assert.True(t, ok)
		})
	}
}

func TestSession_InFlightReaderKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []store.Backend{store.BackendBleve, store.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			faults := &storetest.Faults{}
			s, _ := newTestSession(t, Options{Backend: backend, Open: storetest.Opener(faults)})
			require.NoError(t, s.Apply(ctx, add(Document{ID: "a", Text: "first"})))

			// Given: a reader held across two later commits
			old, err := s.Reader()
			require.NoError(t, err)
			require.NoError(t, s.Apply(ctx, add(Document{ID: "b", Text: "second"})))
			require.NoError(t, s.Apply(ctx, add(Document{ID: "a", Text: "rewritten"})))

			// Then: it still answers from its own commit
			_, ok, err := old.Lookup(ctx, "b")
			require.NoError(t, err)
			assert.False(t, ok)
			f, ok, err := old.Lookup(ctx, "a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "first", f.Text)
			n, err := old.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), n)
			q, err := query.Parse("second OR rewritten")
			require.NoError(t, err)
			hits, err := old.Search(ctx, q, 10)
			require.NoError(t, err)
			assert.Empty(t, hits)

			// And: the current reader sees both commits
			current, err := s.Reader()
			require.NoError(t, err)
			assert.NotSame(t, old, current)
			assert.Less(t, old.Generation(), current.Generation())
			n, err = current.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), n)
			hits, err = current.Search(ctx, q, 10)
			require.NoError(t, err)
			assert.Len(t, hits, 2)

			// When: both are released, only the current snapshot stays open
			old.Release()
			current.Release()
			assert.Equal(t, 1, faults.OpenReaders())
		})
	}
}

func TestSession_ConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []store.Backend{store.BackendBleve, store.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			s, _ := newTestSession(t, Options{Backend: backend, LookupCacheSize: 64})
			q, err := query.Parse("doc")
			require.NoError(t, err)

			const writers, perWriter, readers = 4, 10, 8
			g, gctx := errgroup.WithContext(ctx)

			for w := 0; w < writers; w++ {
				g.Go(func() error {
					for i := 0; i < perWriter; i++ {
						d := Document{ID: fmt.Sprintf("w%d-%d", w, i), Text: fmt.Sprintf("doc number %d", i)}
						if err := s.Apply(gctx, add(d)); err != nil {
							return err
						}
					}
					return nil
				})
			}

			for r := 0; r < readers; r++ {
				g.Go(func() error {
					for i := 0; i < 20; i++ {
						if err := searchOnce(gctx, s, q); err != nil {
							return err
						}
					}
					return nil
				})
			}

			require.NoError(t, g.Wait())

			reader, err := s.Reader()
			require.NoError(t, err)
			defer reader.Release()
			n, err := reader.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(writers*perWriter), n)
			assert.Equal(t, StateClean, s.State())
		})
	}
}

func searchOnce(ctx context.Context, s *Session, q *query.Node) error {
	reader, err := s.Reader()
	if err != nil {
		return err
	}
	defer reader.Release()

	hits, err := reader.Search(ctx, q, 100)
	if err != nil {
		return err
	}
	for j := 1; j < len(hits); j++ {
		if hits[j-1].Score < hits[j].Score {
			return fmt.Errorf("results out of order")
		}
	}
	_, _, err = reader.Lookup(ctx, "w0-0")
	return err
}

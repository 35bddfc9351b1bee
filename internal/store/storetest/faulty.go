// Package storetest provides engine wrappers for exercising failure paths.
package storetest

import (
	"context"
	"errors"
	"sync"

	"github.com/Aman-CERP/docidx/internal/store"
)

// ErrInjected is returned by every injected failure.
var ErrInjected = errors.New("injected failure")

// Faults controls which operations of a FaultyEngine fail.
type Faults struct {
	mu sync.Mutex

	// FailAddAt makes the n-th AddDocument call fail (1-based, counted from
	// the last Reset). Zero disables it.
	FailAddAt int

	// FailCommit makes every Commit fail while set.
	FailCommit bool

	// FailReader makes OpenReader fail while set.
	FailReader bool

	adds    int
	commits int
	readers int
}

// Set updates the faults under lock.
func (f *Faults) Set(fn func(f *Faults)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// Reset clears all faults and counters.
func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailAddAt, f.FailCommit, f.FailReader = 0, false, false
	f.adds, f.commits = 0, 0
}

// Commits reports how many commits reached the wrapped engine.
func (f *Faults) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

// OpenReaders reports how many readers have been opened and not closed.
func (f *Faults) OpenReaders() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readers
}

// FaultyEngine wraps a real engine and injects failures from Faults.
type FaultyEngine struct {
	store.Engine
	faults *Faults
	writer *faultyWriter
}

// Wrap returns e with failures injected according to faults.
func Wrap(e store.Engine, faults *Faults) *FaultyEngine {
	return &FaultyEngine{
		Engine: e,
		faults: faults,
		writer: &faultyWriter{Writer: e.Writer(), faults: faults},
	}
}

// Opener returns a function with the signature of store.Open whose engines
// are wrapped with faults.
func Opener(faults *Faults) func(ctx context.Context, dir string, backend store.Backend) (store.Engine, error) {
	return func(ctx context.Context, dir string, backend store.Backend) (store.Engine, error) {
		e, err := store.Open(ctx, dir, backend)
		if err != nil {
			return nil, err
		}
		return Wrap(e, faults), nil
	}
}

func (e *FaultyEngine) Writer() store.Writer { return e.writer }

func (e *FaultyEngine) OpenReader(ctx context.Context) (store.Reader, error) {
	e.faults.mu.Lock()
	fail := e.faults.FailReader
	e.faults.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}

	r, err := e.Engine.OpenReader(ctx)
	if err != nil {
		return nil, err
	}
	e.faults.mu.Lock()
	e.faults.readers++
	e.faults.mu.Unlock()
	return &countedReader{Reader: r, faults: e.faults}, nil
}

type countedReader struct {
	store.Reader
	faults *Faults
	once   sync.Once
}

func (r *countedReader) Close() error {
	r.once.Do(func() {
		r.faults.mu.Lock()
		r.faults.readers--
		r.faults.mu.Unlock()
	})
	return r.Reader.Close()
}

type faultyWriter struct {
	store.Writer
	faults *Faults
}

func (w *faultyWriter) AddDocument(f store.Fields) error {
	w.faults.mu.Lock()
	w.faults.adds++
	fail := w.faults.FailAddAt > 0 && w.faults.adds == w.faults.FailAddAt
	w.faults.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return w.Writer.AddDocument(f)
}

func (w *faultyWriter) Commit(ctx context.Context) (uint64, error) {
	w.faults.mu.Lock()
	fail := w.faults.FailCommit
	if !fail {
		w.faults.commits++
	}
	w.faults.mu.Unlock()
	if fail {
		return 0, ErrInjected
	}
	return w.Writer.Commit(ctx)
}

package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

// fakeFetcher serves queued records and records committed offsets.
type fakeFetcher struct {
	ch chan kafka.Message

	mu        sync.Mutex
	committed []int64
	commitErr error
	closed    bool
}

func newFakeFetcher(values ...string) *fakeFetcher {
	f := &fakeFetcher{ch: make(chan kafka.Message, len(values)+16)}
	for i, v := range values {
		f.ch <- kafka.Message{Offset: int64(i), Value: []byte(v)}
	}
	return f
}

func (f *fakeFetcher) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-f.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeFetcher) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFetcher) Committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func newIndex(t *testing.T) *docindex.Manager {
	t.Helper()
	m := docindex.New()
	require.NoError(t, m.Initialize(context.Background(), filepath.Join(t.TempDir(), "idx")))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func runFor(t *testing.T, c *Consumer, until func() bool) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, until, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
		return nil
	}
}

func TestConsumer_AppliesBatchesAndCommitsOffsets(t *testing.T) {
	// Given: five records including a delete and a malformed one
	m := newIndex(t)
	f := newFakeFetcher(
		`{"op":"upsert","id":"1","text":"Flutter is a UI toolkit"}`,
		`{"op":"upsert","id":"2","text":"Rust is a systems language"}`,
		`not json`,
		`{"op":"upsert","id":"3","text":"Tantivy is a search library"}`,
		`{"op":"delete","id":"1"}`,
	)
	c := NewConsumer(f, m, Options{BatchSize: 2, FlushInterval: 20 * time.Millisecond})

	// When
	err := runFor(t, c, func() bool { return len(f.Committed()) == 5 })

	// Then
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{0, 1, 2, 3, 4}, f.Committed())
	assert.True(t, f.closed)

	st := c.Stats()
	assert.Equal(t, uint64(5), st.Received)
	assert.Equal(t, uint64(1), st.Skipped)

	results, err := m.SearchDocuments(context.Background(), "Flutter OR Rust OR Tantivy", 10)
	require.NoError(t, err)
	var ids []string
	for _, r := range results {
		ids = append(ids, r.Doc.ID)
	}
	assert.ElementsMatch(t, []string{"2", "3"}, ids)
}

type failingIndex struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (f *failingIndex) AddDocumentsBatch(context.Context, []docindex.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *failingIndex) DeleteDocumentsBatch(context.Context, []string) error { return f.err }

func (f *failingIndex) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestConsumer_FailedFlushDoesNotCommitOffsets(t *testing.T) {
	// Given: an index whose commits fail with a retryable error
	f := newFakeFetcher(`{"id":"1","text":"one"}`)
	idx := &failingIndex{err: dxerrors.WriteError("commit failed", errors.New("disk full"))}
	c := NewConsumer(f, idx, Options{BatchSize: 1, FlushInterval: 10 * time.Millisecond})

	// When: the flush is retried a few times
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	require.Eventually(t, func() bool { return idx.Calls() >= 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	err := <-done

	// Then: no offset was committed and the shutdown flush reports the failure
	assert.Empty(t, f.Committed())
	assert.ErrorIs(t, err, dxerrors.ErrWrite)
}

func TestConsumer_NonRetryableFailureStopsRun(t *testing.T) {
	f := newFakeFetcher(`{"id":"1","text":"one"}`)
	idx := &failingIndex{err: dxerrors.NotInitialized()}
	c := NewConsumer(f, idx, Options{BatchSize: 1, FlushInterval: time.Second})

	err := c.Run(context.Background())

	assert.ErrorIs(t, err, dxerrors.ErrNotInitialized)
	assert.Empty(t, f.Committed())
	assert.True(t, f.closed)
}

func TestConsumer_OffsetCommitFailureKeepsRecords(t *testing.T) {
	// Given: the broker rejects offset commits at first
	m := newIndex(t)
	f := newFakeFetcher(`{"id":"1","text":"one"}`)
	f.commitErr = errors.New("coordinator unavailable")
	c := NewConsumer(f, m, Options{BatchSize: 1, FlushInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// When: the broker recovers
	time.Sleep(50 * time.Millisecond)
	f.mu.Lock()
	f.commitErr = nil
	f.mu.Unlock()

	// Then: the record is committed once the retry succeeds
	require.Eventually(t, func() bool { return len(f.Committed()) == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	_, found, err := m.GetDocumentByID(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, found)
}

package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybridWatcher_IndexesChanges(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			// Given: a watched tree and an index kept in sync with it
			root := t.TempDir()
			m := newIndex(t)
			w, err := NewHybridWatcher(Options{
				DebounceWindow: 30 * time.Millisecond,
				PollInterval:   50 * time.Millisecond,
				Include:        []string{"**/*.txt"},
				ForcePolling:   polling,
			}, nil)
			require.NoError(t, err)
			if polling {
				assert.Equal(t, "polling", w.WatcherType())
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			defer w.Stop()

			started := make(chan struct{})
			go func() {
				close(started)
				_ = w.Start(ctx, root)
			}()
			<-started
			s := NewSyncer(m, root, w.Filter(), nil)
			go func() { _ = s.Run(ctx, w) }()

			// When: a matching file appears after a short settle
			time.Sleep(150 * time.Millisecond)
			writeFile(t, root, "notes/today.txt", "watched content")

			// Then: it becomes searchable
			require.Eventually(t, func() bool {
				results, err := m.SearchDocuments(context.Background(), "watched", 10)
				return err == nil && len(results) == 1
			}, 5*time.Second, 20*time.Millisecond)
		})
	}
}

func TestHybridWatcher_InvalidPattern(t *testing.T) {
	_, err := NewHybridWatcher(Options{Include: []string{"[bad"}}, nil)

	assert.Error(t, err)
}

func TestHybridWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewHybridWatcher(DefaultOptions(), nil)
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
	_, ok := <-w.Events()
	assert.False(t, ok)
}

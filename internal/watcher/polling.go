package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by rescanning the tree on an interval.
type PollingWatcher struct {
	interval time.Duration
	filter   *Filter
	files    map[string]fileSnapshot
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	rootPath string

	mu      sync.Mutex
	stopped bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// NewPollingWatcher creates a polling watcher.
func NewPollingWatcher(interval time.Duration, filter *Filter) *PollingWatcher {
	if filter == nil {
		filter = &Filter{}
	}
	return &PollingWatcher{
		interval: interval,
		filter:   filter,
		files:    make(map[string]fileSnapshot),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start records a baseline and then polls until ctx is canceled or Stop is
// called.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	p.rootPath = absPath

	baseline, err := p.scan()
	if err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}
	p.mu.Lock()
	p.files = baseline
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			if err := p.detectChanges(); err != nil {
				select {
				case p.errors <- err:
				default:
				}
			}
		}
	}
}

// Stop closes the event and error channels. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns unbatched file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns scan errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}

// scan returns the state of every matching file under the root.
func (p *PollingWatcher) scan() (map[string]fileSnapshot, error) {
	files := make(map[string]fileSnapshot)
	err := filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(p.rootPath, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p.filter.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !p.filter.Match(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files[rel] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
		return nil
	})
	return files, err
}

func (p *PollingWatcher) detectChanges() error {
	current, err := p.scan()
	if err != nil {
		return fmt.Errorf("walk directory for changes: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for rel, snap := range current {
		prev, existed := p.files[rel]
		switch {
		case !existed:
			p.emitLocked(FileEvent{Path: rel, Operation: OpCreate, Timestamp: now})
		case prev != snap:
			p.emitLocked(FileEvent{Path: rel, Operation: OpModify, Timestamp: now})
		}
	}
	for rel := range p.files {
		if _, ok := current[rel]; !ok {
			p.emitLocked(FileEvent{Path: rel, Operation: OpDelete, Timestamp: now})
		}
	}
	p.files = current
	return nil
}

func (p *PollingWatcher) emitLocked(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("poll_event_dropped",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

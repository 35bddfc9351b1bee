// Package watcher keeps an index in step with a directory tree.
//
// File system events come from fsnotify, or from periodic scans where
// fsnotify is unavailable. They are filtered by doublestar include and
// exclude globs, coalesced by a Debouncer, and each debounced batch is
// applied to the index by a Syncer as staged operations followed by a
// single commit.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	s := watcher.NewSyncer(mgr, root, filter, logger)
//	go func() { _ = w.Start(ctx, root) }()
//	return s.Run(ctx, w)
package watcher

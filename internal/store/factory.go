package store

import (
	"context"
	"os"
	"path/filepath"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
)

// Layout names inside an index directory.
const (
	BleveDirName = "docs.bleve"
	SQLiteDBName = "docs.db"
	LockFileName = ".writer.lock"
)

// IndexPath returns where the given backend keeps its data inside dir.
func IndexPath(dir string, backend Backend) string {
	switch backend {
	case BackendSQLite:
		return filepath.Join(dir, SQLiteDBName)
	default:
		return filepath.Join(dir, BleveDirName)
	}
}

// DetectBackend reports which backend already has data in dir, or an empty
// Backend if dir holds no index.
func DetectBackend(dir string) Backend {
	if fileExists(IndexPath(dir, BackendSQLite)) {
		return BackendSQLite
	}
	if dirExists(IndexPath(dir, BackendBleve)) {
		return BackendBleve
	}
	return ""
}

// Open opens or creates an index of the requested backend in dir. The
// directory must already exist. A directory that holds only the other
// backend's data is rejected rather than silently shadowed.
func Open(ctx context.Context, dir string, backend Backend) (Engine, error) {
	if existing := DetectBackend(dir); existing != "" && existing != backend &&
		!exists(IndexPath(dir, backend)) {
		return nil, dxerrors.StorageError("index directory holds a different backend", nil).
			WithDetail("path", dir).
			WithDetail("found", string(existing)).
			WithDetail("requested", string(backend)).
			WithSuggestion("open it with --backend " + string(existing))
	}

	switch backend {
	case BackendSQLite:
		return openSQLite(ctx, IndexPath(dir, BackendSQLite))
	case BackendBleve, "":
		return openBleve(IndexPath(dir, BackendBleve))
	default:
		return nil, dxerrors.StorageError("unknown backend: "+string(backend), nil)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

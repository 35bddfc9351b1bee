package docindex

import (
	"log/slog"
	"time"

	"github.com/Aman-CERP/docidx/internal/index"
	"github.com/Aman-CERP/docidx/internal/store"
)

// Backend selects the storage engine.
type Backend = store.Backend

const (
	// BackendBleve stores the index as Bleve segments (default).
	BackendBleve = store.BackendBleve
	// BackendSQLite stores the index in a SQLite FTS5 database.
	BackendSQLite = store.BackendSQLite
)

// ParseBackend maps a configuration value such as "sqlite" to a Backend.
func ParseBackend(s string) (Backend, error) {
	return store.ParseBackend(s)
}

// Recorder receives operation metrics. internal/telemetry.Metrics
// satisfies it.
type Recorder interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
	ObserveSearch(raw string, results int, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, time.Duration, error) {}

func (nopRecorder) ObserveSearch(string, int, time.Duration) {}

// Option configures a Manager.
type Option func(*Manager)

// WithBackend selects the storage engine. Defaults to BackendBleve.
func WithBackend(b Backend) Option {
	return func(m *Manager) {
		m.sessionOpts.Backend = b
	}
}

// WithLookupCacheSize sets how many id lookups each reader snapshot caches.
// Zero disables caching.
func WithLookupCacheSize(n int) Option {
	return func(m *Manager) {
		m.sessionOpts.LookupCacheSize = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// withOpener replaces engine opening; tests use it to inject faults.
func withOpener(open index.OpenFunc) Option {
	return func(m *Manager) {
		m.sessionOpts.Open = open
	}
}

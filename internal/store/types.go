// Package store binds docidx to its full-text engines.
//
// Two backends implement the same Engine contract: Bleve (a directory of
// scorch segments) and SQLite FTS5 (a single WAL-mode database file). Both
// keep mutations in an in-memory op log until Commit, so nothing staged is
// ever visible to a Reader.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/docidx/internal/query"
)

// Backend names a storage engine.
type Backend string

const (
	// BackendBleve stores the index in <dir>/docs.bleve (default).
	BackendBleve Backend = "bleve"

	// BackendSQLite stores the index in <dir>/docs.db using FTS5.
	BackendSQLite Backend = "sqlite"
)

// ParseBackend maps a configuration value to a Backend. Empty means Bleve.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case BackendBleve, "":
		return BackendBleve, nil
	case BackendSQLite:
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("unknown backend: %s (valid options: bleve, sqlite)", s)
	}
}

// Field names of the fixed document schema.
const (
	// FieldID is the exact-match identifier field.
	FieldID = "id"
	// FieldText is the tokenized full-text field.
	FieldText = "text"
)

// Fields is the engine-side representation of a document.
type Fields struct {
	ID   string
	Text string
}

// Hit is one ranked search match.
type Hit struct {
	Score  float64
	Fields Fields
}

// Engine is an open index: one writer created at open time plus readers
// over the last commit.
type Engine interface {
	// Writer returns the engine's single writer. It is not safe for
	// concurrent use; callers serialise access.
	Writer() Writer

	// OpenReader returns a reader pinned to the most recent commit. The
	// caller must Close it.
	OpenReader(ctx context.Context) (Reader, error)

	// Backend reports which engine this is.
	Backend() Backend

	// Close releases the engine. Staged operations are discarded.
	Close() error
}

// Writer stages mutations and publishes them atomically on Commit.
type Writer interface {
	// AddDocument stages an add. An existing document with the same id is
	// replaced when the add is committed.
	AddDocument(f Fields) error

	// DeleteTerm stages deletion of the document whose id equals id.
	// Deleting an absent id is not an error.
	DeleteTerm(id string)

	// Savepoint marks the current end of the op log.
	Savepoint() int

	// RollbackTo drops every op staged after the savepoint.
	RollbackTo(sp int)

	// Staged reports the number of ops waiting for Commit.
	Staged() int

	// Commit applies every staged op as one durable commit and returns the
	// new commit id. On failure the staged ops are kept.
	Commit(ctx context.Context) (uint64, error)
}

// Reader queries one committed generation. Later commits are never visible
// through it.
type Reader interface {
	// Generation is the commit id this reader was opened at.
	Generation() uint64

	// Search returns up to limit hits ordered by descending score, then
	// ascending id.
	Search(ctx context.Context, q *query.Node, limit int) ([]Hit, error)

	// Lookup returns the document with the given id. Absence is reported
	// with ok == false, not an error.
	Lookup(ctx context.Context, id string) (f Fields, ok bool, err error)

	// Count returns the number of committed documents.
	Count(ctx context.Context) (uint64, error)

	// Close releases the pinned snapshot.
	Close() error
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/internal/query"
)

// sqliteSchema keeps documents in a plain table and mirrors text into an
// external-content FTS5 table through triggers.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id   TEXT PRIMARY KEY,
	text TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	text,
	content='documents',
	content_rowid='rowid',
	tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, text) VALUES (new.rowid, new.text);
END;

CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, text) VALUES ('delete', old.rowid, old.text);
END;

INSERT OR IGNORE INTO meta (key, value) VALUES ('commit_id', 0);
`

// sqliteEngine stores the index in one WAL-mode SQLite database.
type sqliteEngine struct {
	db       *sql.DB
	path     string
	writer   *sqliteWriter
	commitID atomic.Uint64
	closed   atomic.Bool
}

// validateSQLiteIntegrity checks an existing database before opening it.
// A missing file is valid.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// openSQLite opens or creates the database at path.
func openSQLite(ctx context.Context, path string) (*sqliteEngine, error) {
	if err := validateSQLiteIntegrity(path); err != nil {
		slog.Warn("sqlite_index_corrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, dxerrors.StorageError("existing index is corrupt", err).
			WithDetail("path", path).
			WithSuggestion("restore the database from a backup or remove it and re-add the documents")
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, dxerrors.StorageError("failed to open database", err).WithDetail("path", path)
	}

	// WAL lets readers run beside the single writer. Each open reader pins
	// one connection, so open connections are not capped.
	db.SetMaxIdleConns(runtime.NumCPU() + 1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, dxerrors.StorageError("failed to initialize schema", err).WithDetail("path", path)
	}

	e := &sqliteEngine{db: db, path: path}
	id, err := e.readCommitID(ctx)
	if err != nil {
		_ = db.Close()
		return nil, dxerrors.StorageError("failed to read commit id", err).WithDetail("path", path)
	}
	e.commitID.Store(id)
	e.writer = &sqliteWriter{engine: e}
	return e, nil
}

func (e *sqliteEngine) readCommitID(ctx context.Context) (uint64, error) {
	var id int64
	err := e.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'commit_id'`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (e *sqliteEngine) Writer() Writer { return e.writer }

func (e *sqliteEngine) Backend() Backend { return BackendSQLite }

// OpenReader starts a read transaction on a dedicated connection. Its
// first read fixes the WAL snapshot every later query of the reader sees.
func (e *sqliteEngine) OpenReader(ctx context.Context) (Reader, error) {
	if e.closed.Load() {
		return nil, dxerrors.ReadError("index is closed", nil)
	}

	tx, err := e.db.BeginTx(context.WithoutCancel(ctx), &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, dxerrors.ReadError("failed to begin read transaction", err).WithDetail("path", e.path)
	}

	var gen int64
	err = tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'commit_id'`).Scan(&gen)
	if err != nil {
		_ = tx.Rollback()
		return nil, dxerrors.ReadError("failed to read commit id", err).WithDetail("path", e.path)
	}
	return &sqliteReader{tx: tx, generation: uint64(gen)}, nil
}

func (e *sqliteEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if n := e.writer.log.len(); n > 0 {
		slog.Warn("staged_ops_discarded", slog.Int("count", n), slog.String("path", e.path))
	}
	e.writer.log.reset()
	return e.db.Close()
}

// sqliteWriter applies the op log inside one transaction on commit.
type sqliteWriter struct {
	engine *sqliteEngine
	log    opLog
}

func (w *sqliteWriter) AddDocument(f Fields) error {
	if w.engine.closed.Load() {
		return dxerrors.WriteError("index is closed", nil)
	}
	if err := w.log.add(f); err != nil {
		return dxerrors.WriteError("document rejected", err)
	}
	return nil
}

func (w *sqliteWriter) DeleteTerm(id string) { w.log.delete(id) }

func (w *sqliteWriter) Savepoint() int { return w.log.savepoint() }

func (w *sqliteWriter) RollbackTo(sp int) { w.log.rollbackTo(sp) }

func (w *sqliteWriter) Staged() int { return w.log.len() }

// Commit runs detached from ctx cancellation: once started it completes or
// rolls back on its own.
func (w *sqliteWriter) Commit(ctx context.Context) (uint64, error) {
	e := w.engine
	if e.closed.Load() {
		return 0, dxerrors.WriteError("index is closed", nil)
	}
	if w.log.len() == 0 {
		return e.commitID.Load(), nil
	}

	ctx = context.WithoutCancel(ctx)
	next := e.commitID.Load() + 1
	if err := w.apply(ctx, next); err != nil {
		return 0, dxerrors.WriteError("commit failed", err).WithDetail("path", e.path)
	}

	e.commitID.Store(next)
	w.log.reset()
	return next, nil
}

func (w *sqliteWriter) apply(ctx context.Context, next uint64) error {
	tx, err := w.engine.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx, `INSERT INTO documents(id, text) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer insertStmt.Close()

	for _, op := range resolve(w.log.snapshot()) {
		// every op replaces whatever the id held before
		if _, err := deleteStmt.ExecContext(ctx, op.docID()); err != nil {
			return fmt.Errorf("failed to delete document %s: %w", op.docID(), err)
		}
		if op.kind != opAdd {
			continue
		}
		if _, err := insertStmt.ExecContext(ctx, op.fields.ID, op.fields.Text); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", op.fields.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE meta SET value = ? WHERE key = 'commit_id'`, int64(next)); err != nil {
		return fmt.Errorf("failed to record commit id: %w", err)
	}

	return tx.Commit()
}

// sqliteReader runs every query inside one read transaction. mu
// serialises use of the transaction's connection.
type sqliteReader struct {
	mu         sync.Mutex
	tx         *sql.Tx
	generation uint64
	closed     bool
}

func (r *sqliteReader) Generation() uint64 { return r.generation }

func (r *sqliteReader) Search(ctx context.Context, q *query.Node, limit int) ([]Hit, error) {
	pruned := prune(q)
	if pruned == nil || limit < 1 {
		return []Hit{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.tx.QueryContext(ctx, `
		SELECT d.id, d.text, -bm25(documents_fts) AS score
		FROM documents_fts
		JOIN documents d ON d.rowid = documents_fts.rowid
		WHERE documents_fts MATCH ?
		ORDER BY score DESC, d.id ASC
		LIMIT ?`, toFTSMatch(pruned), limit)
	if err != nil {
		return nil, dxerrors.ReadError("search failed", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Fields.ID, &h.Fields.Text, &h.Score); err != nil {
			return nil, dxerrors.ReadError("failed to scan search result", err)
		}
		if h.Score < 0 {
			h.Score = 0
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, dxerrors.ReadError("search failed", err)
	}
	return hits, nil
}

func (r *sqliteReader) Lookup(ctx context.Context, id string) (Fields, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var text string
	err := r.tx.QueryRowContext(ctx, `SELECT text FROM documents WHERE id = ?`, id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return Fields{}, false, nil
	}
	if err != nil {
		return Fields{}, false, dxerrors.ReadError("lookup failed", err).WithDetail("id", id)
	}
	return Fields{ID: id, Text: text}, true, nil
}

func (r *sqliteReader) Count(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	if err := r.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, dxerrors.ReadError("count failed", err)
	}
	return uint64(n), nil
}

// Close ends the read transaction and returns its connection to the pool.
func (r *sqliteReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

var (
	_ Engine = (*sqliteEngine)(nil)
	_ Writer = (*sqliteWriter)(nil)
	_ Reader = (*sqliteReader)(nil)
)

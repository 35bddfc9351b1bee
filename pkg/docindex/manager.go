package docindex

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/internal/index"
	"github.com/Aman-CERP/docidx/internal/query"
	"github.com/Aman-CERP/docidx/internal/store"
)

// Document is an identifier plus searchable text. The identifier is chosen
// by the caller and is unique within an index.
type Document = index.Document

// SearchResult is a scored match. Results are ordered by descending score,
// then ascending identifier.
type SearchResult = index.SearchResult

// State is the lifecycle state of a Manager.
type State = index.State

// Lifecycle states.
const (
	StateUninitialized = index.StateUninitialized
	StateClean         = index.StateClean
	StateDirty         = index.StateDirty
	StateClosed        = index.StateClosed
)

// Stats describes the open index.
type Stats struct {
	Path       string  `json:"path"`
	Backend    Backend `json:"backend"`
	State      string  `json:"state"`
	Documents  uint64  `json:"documents"`
	Generation uint64  `json:"generation"`
	Staged     int     `json:"staged"`
}

// Manager is the document index manager. Create one with New, then call
// Initialize before any other operation.
type Manager struct {
	session     *index.Session
	sessionOpts index.Options
	logger      *slog.Logger
	recorder    Recorder
}

// New creates a Manager. No files are touched until Initialize.
func New(opts ...Option) *Manager {
	m := &Manager{
		logger:   slog.Default(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sessionOpts.Logger = m.logger
	m.session = index.NewSession(m.sessionOpts)
	return m
}

// Initialize creates the index directory if needed and opens or creates the
// index in it. It is idempotent for the same path.
func (m *Manager) Initialize(ctx context.Context, path string) (err error) {
	defer m.observe("initialize", time.Now(), &err)

	if strings.TrimSpace(path) == "" {
		return dxerrors.InvalidInput("index path is empty")
	}
	return m.session.Initialize(ctx, path)
}

// AddDocument adds doc, replacing any document with the same identifier,
// and commits. The document is visible when AddDocument returns.
func (m *Manager) AddDocument(ctx context.Context, doc Document) (err error) {
	defer m.observe("add_document", time.Now(), &err)

	if err := m.ready(); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	if err := m.session.Apply(ctx, upsert(doc)); err != nil {
		return err
	}
	m.logger.Debug("document_added", slog.String("id", doc.ID))
	return nil
}

// AddDocumentsBatch adds every document in one commit. Either all of them
// become visible together or, on error, none do.
func (m *Manager) AddDocumentsBatch(ctx context.Context, docs []Document) (err error) {
	defer m.observe("add_documents_batch", time.Now(), &err)

	if err := m.ready(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return dxerrors.InvalidInput("batch is empty")
	}
	for i, doc := range docs {
		if err := validateDocument(doc); err != nil {
			return err.WithDetail("index", strconv.Itoa(i))
		}
	}
	if err := m.session.Apply(ctx, upsert(docs...)); err != nil {
		return err
	}
	m.logger.Debug("documents_added", slog.Int("count", len(docs)))
	return nil
}

// AddDocumentNoCommit stages doc without committing. It stays invisible to
// searches and lookups until Commit.
func (m *Manager) AddDocumentNoCommit(ctx context.Context, doc Document) (err error) {
	defer m.observe("add_document_no_commit", time.Now(), &err)

	if err := m.ready(); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	return m.session.Stage(ctx, upsert(doc))
}

// DeleteDocument removes the document with the given identifier and
// commits. Deleting an identifier that does not exist succeeds.
func (m *Manager) DeleteDocument(ctx context.Context, id string) (err error) {
	defer m.observe("delete_document", time.Now(), &err)

	if err := m.ready(); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}
	if err := m.session.Apply(ctx, remove(id)); err != nil {
		return err
	}
	m.logger.Debug("document_deleted", slog.String("id", id))
	return nil
}

// DeleteDocumentsBatch removes every identifier in one commit.
func (m *Manager) DeleteDocumentsBatch(ctx context.Context, ids []string) (err error) {
	defer m.observe("delete_documents_batch", time.Now(), &err)

	if err := m.ready(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return dxerrors.InvalidInput("batch is empty")
	}
	for i, id := range ids {
		if err := validateID(id); err != nil {
			return err.WithDetail("index", strconv.Itoa(i))
		}
	}
	if err := m.session.Apply(ctx, remove(ids...)); err != nil {
		return err
	}
	m.logger.Debug("documents_deleted", slog.Int("count", len(ids)))
	return nil
}

// DeleteDocumentNoCommit stages a delete without committing.
func (m *Manager) DeleteDocumentNoCommit(ctx context.Context, id string) (err error) {
	defer m.observe("delete_document_no_commit", time.Now(), &err)

	if err := m.ready(); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return err
	}
	return m.session.Stage(ctx, remove(id))
}

// UpdateDocument replaces the text of doc.ID in a single commit. Readers
// see either the old document or the new one, never neither.
func (m *Manager) UpdateDocument(ctx context.Context, doc Document) (err error) {
	defer m.observe("update_document", time.Now(), &err)

	if err := m.ready(); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	if err := m.session.Apply(ctx, upsert(doc)); err != nil {
		return err
	}
	m.logger.Debug("document_updated", slog.String("id", doc.ID))
	return nil
}

// Commit publishes every staged operation as one commit and reloads the
// reader. With nothing staged it only reloads. If it fails nothing staged
// is lost and Commit may be retried.
func (m *Manager) Commit(ctx context.Context) (err error) {
	defer m.observe("commit", time.Now(), &err)

	return m.session.Commit(ctx)
}

// GetDocumentByID returns the committed document with the given identifier.
// found is false when there is none; that is not an error.
func (m *Manager) GetDocumentByID(ctx context.Context, id string) (doc Document, found bool, err error) {
	defer m.observe("get_document", time.Now(), &err)

	if err := m.ready(); err != nil {
		return Document{}, false, err
	}
	if err := validateID(id); err != nil {
		return Document{}, false, err
	}
	r, err := m.session.Reader()
	if err != nil {
		return Document{}, false, err
	}
	defer r.Release()

	f, found, err := r.Lookup(ctx, id)
	if err != nil {
		return Document{}, false, dxerrors.Wrap(dxerrors.ErrCodeRead, err)
	}
	if !found {
		return Document{}, false, nil
	}
	return index.FromFields(f), true, nil
}

// SearchDocuments parses raw and returns at most topK results ordered by
// descending score.
func (m *Manager) SearchDocuments(ctx context.Context, raw string, topK int) (results []SearchResult, err error) {
	start := time.Now()
	defer m.observe("search_documents", start, &err)

	if err := m.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, dxerrors.InvalidInput("query is empty")
	}
	if topK < 1 {
		return nil, dxerrors.InvalidInput("topK must be at least 1").WithDetail("top_k", strconv.Itoa(topK))
	}

	q, err := query.Parse(raw)
	if err != nil {
		return nil, err
	}
	r, err := m.session.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Release()

	hits, err := r.Search(ctx, q, topK)
	if err != nil {
		return nil, dxerrors.Wrap(dxerrors.ErrCodeRead, err)
	}
	results = index.FromHits(hits)

	m.recorder.ObserveSearch(raw, len(results), time.Since(start))
	m.logger.Debug("search_completed",
		slog.String("query", q.String()),
		slog.Int("top_k", topK),
		slog.Int("results", len(results)),
		slog.Uint64("generation", r.Generation()))
	return results, nil
}

// Stats reports the state of the open index.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	r, err := m.session.Reader()
	if err != nil {
		return Stats{}, err
	}
	defer r.Release()

	n, err := r.Count(ctx)
	if err != nil {
		return Stats{}, dxerrors.Wrap(dxerrors.ErrCodeRead, err)
	}
	return Stats{
		Path:       m.session.Path(),
		Backend:    m.session.Backend(),
		State:      m.session.State().String(),
		Documents:  n,
		Generation: r.Generation(),
		Staged:     m.session.Staged(),
	}, nil
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	return m.session.State()
}

// Close discards staged operations and releases the index. The Manager can
// be initialized again afterwards.
func (m *Manager) Close() error {
	return m.session.Close()
}

func (m *Manager) observe(op string, start time.Time, errp *error) {
	m.recorder.ObserveOperation(op, time.Since(start), *errp)
	if *errp != nil {
		m.logger.Warn("operation_failed",
			append([]any{slog.String("operation", op)}, dxerrors.LogAttrs(*errp)...)...)
	}
}

// upsert stages delete(id) before each add so identifiers stay unique.
func upsert(docs ...Document) func(w store.Writer) error {
	return func(w store.Writer) error {
		for _, d := range docs {
			w.DeleteTerm(d.ID)
			if err := w.AddDocument(index.ToFields(d)); err != nil {
				return err
			}
		}
		return nil
	}
}

func remove(ids ...string) func(w store.Writer) error {
	return func(w store.Writer) error {
		for _, id := range ids {
			w.DeleteTerm(id)
		}
		return nil
	}
}

// ready fails with NotInitialized before Initialize and after Close, ahead
// of any input validation.
func (m *Manager) ready() error {
	if !m.session.State().Ready() {
		return dxerrors.NotInitialized()
	}
	return nil
}

func validateID(id string) *dxerrors.DocError {
	if id == "" {
		return dxerrors.InvalidInput("document id is empty")
	}
	return nil
}

func validateDocument(doc Document) *dxerrors.DocError {
	return validateID(doc.ID)
}

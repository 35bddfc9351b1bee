package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/collector"
	index "github.com/blevesearch/bleve_index_api"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/internal/query"
)

const (
	// TextAnalyzerName is the analyzer applied to the text field: unicode
	// word segmentation plus lower-casing, no stemming or stop words.
	TextAnalyzerName = "docidx_text"

	// commitIDKey is the internal key holding the last commit id.
	commitIDKey = "docidx_commit_id"
)

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// bleveEngine wraps a persistent Bleve v2 index.
type bleveEngine struct {
	index    bleve.Index
	path     string
	writer   *bleveWriter
	commitID atomic.Uint64
	closed   atomic.Bool
}

// validateBleveIntegrity checks that an existing index directory has a
// parseable index_meta.json. A missing directory is valid.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// openBleve opens the index at path, creating it when absent. A corrupt
// index is reported, never cleared.
func openBleve(path string) (*bleveEngine, error) {
	if err := validateBleveIntegrity(path); err != nil {
		slog.Warn("bleve_index_corrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, dxerrors.StorageError("existing index is corrupt", err).
			WithDetail("path", path).
			WithSuggestion("restore the index directory from a backup or remove it and re-add the documents")
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		indexMapping, mapErr := newIndexMapping()
		if mapErr != nil {
			return nil, dxerrors.StorageError("failed to build index mapping", mapErr)
		}
		idx, err = bleve.New(path, indexMapping)
		if err == nil {
			slog.Debug("bleve_index_created", slog.String("path", path))
		}
	}
	if err != nil {
		return nil, dxerrors.StorageError("failed to open index", err).WithDetail("path", path)
	}

	e := &bleveEngine{index: idx, path: path}
	id, err := readCommitID(idx)
	if err != nil {
		_ = idx.Close()
		return nil, dxerrors.StorageError("failed to read commit id", err).WithDetail("path", path)
	}
	e.commitID.Store(id)
	e.writer = &bleveWriter{engine: e}
	return e, nil
}

// newIndexMapping maps the two-field schema: id as an exact keyword, text
// through TextAnalyzerName. Both are stored so hits carry the document.
func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = TextAnalyzerName

	idField := bleve.NewKeywordFieldMapping()
	idField.Store = true

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = TextAnalyzerName
	textField.Store = true

	docMapping := bleve.NewDocumentStaticMapping()
	docMapping.AddFieldMappingsAt(FieldID, idField)
	docMapping.AddFieldMappingsAt(FieldText, textField)
	indexMapping.DefaultMapping = docMapping

	return indexMapping, nil
}

// internalGetter is satisfied by both bleve.Index and index.IndexReader.
type internalGetter interface {
	GetInternal(key []byte) ([]byte, error)
}

func readCommitID(idx internalGetter) (uint64, error) {
	raw, err := idx.GetInternal([]byte(commitIDKey))
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("commit id has %d bytes, want 8", len(raw))
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (e *bleveEngine) Writer() Writer { return e.writer }

func (e *bleveEngine) Backend() Backend { return BackendBleve }

// OpenReader pins the current scorch snapshot. The commit id is read from
// the snapshot itself so the generation always matches what it shows.
func (e *bleveEngine) OpenReader(_ context.Context) (Reader, error) {
	if e.closed.Load() {
		return nil, dxerrors.ReadError("index is closed", nil)
	}

	adv, err := e.index.Advanced()
	if err != nil {
		return nil, dxerrors.ReadError("failed to access index", err).WithDetail("path", e.path)
	}
	snap, err := adv.Reader()
	if err != nil {
		return nil, dxerrors.ReadError("failed to open snapshot", err).WithDetail("path", e.path)
	}

	gen, err := readCommitID(snap)
	if err != nil {
		_ = snap.Close()
		return nil, dxerrors.ReadError("failed to read commit id", err).WithDetail("path", e.path)
	}
	return &bleveReader{snap: snap, mapping: e.index.Mapping(), generation: gen}, nil
}

func (e *bleveEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if n := e.writer.log.len(); n > 0 {
		slog.Warn("staged_ops_discarded", slog.Int("count", n), slog.String("path", e.path))
	}
	e.writer.log.reset()
	return e.index.Close()
}

// bleveWriter replays the op log into a single bleve.Batch on commit.
type bleveWriter struct {
	engine *bleveEngine
	log    opLog
}

func (w *bleveWriter) AddDocument(f Fields) error {
	if w.engine.closed.Load() {
		return dxerrors.WriteError("index is closed", nil)
	}
	if err := w.log.add(f); err != nil {
		return dxerrors.WriteError("document rejected", err)
	}
	return nil
}

func (w *bleveWriter) DeleteTerm(id string) { w.log.delete(id) }

func (w *bleveWriter) Savepoint() int { return w.log.savepoint() }

func (w *bleveWriter) RollbackTo(sp int) { w.log.rollbackTo(sp) }

func (w *bleveWriter) Staged() int { return w.log.len() }

// Commit writes all staged ops and the new commit id in one batch. Bleve
// applies a batch as a single segment introduction, so searches see all of
// it or none of it.
func (w *bleveWriter) Commit(_ context.Context) (uint64, error) {
	e := w.engine
	if e.closed.Load() {
		return 0, dxerrors.WriteError("index is closed", nil)
	}
	if w.log.len() == 0 {
		return e.commitID.Load(), nil
	}

	batch := e.index.NewBatch()
	for _, op := range resolve(w.log.snapshot()) {
		switch op.kind {
		case opAdd:
			doc := bleveDocument{ID: op.fields.ID, Text: op.fields.Text}
			if err := batch.Index(op.fields.ID, doc); err != nil {
				return 0, dxerrors.WriteError("failed to stage document", err).WithDetail("id", op.fields.ID)
			}
		case opDelete:
			batch.Delete(op.id)
		}
	}

	next := e.commitID.Load() + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	batch.SetInternal([]byte(commitIDKey), buf[:])

	if err := e.index.Batch(batch); err != nil {
		return 0, dxerrors.WriteError("commit failed", err).WithDetail("path", e.path)
	}

	e.commitID.Store(next)
	w.log.reset()
	return next, nil
}

// bleveReader queries one pinned scorch snapshot. Segments introduced by
// later commits are not part of it.
type bleveReader struct {
	snap       index.IndexReader
	mapping    mapping.IndexMapping
	generation uint64
	closeOnce  sync.Once
	closeErr   error
}

func (r *bleveReader) Generation() uint64 { return r.generation }

func (r *bleveReader) Search(ctx context.Context, q *query.Node, limit int) ([]Hit, error) {
	pruned := prune(q)
	if pruned == nil || limit < 1 {
		return []Hit{}, nil
	}

	searcher, err := toBleveQuery(pruned).Searcher(ctx, r.snap, r.mapping, search.SearcherOptions{})
	if err != nil {
		return nil, dxerrors.ReadError("search failed", err)
	}
	defer func() { _ = searcher.Close() }()

	coll := collector.NewTopNCollector(limit, 0, search.SortOrder{
		&search.SortScore{Desc: true},
		&search.SortDocID{},
	})
	if err := coll.Collect(ctx, searcher, r.snap); err != nil {
		return nil, dxerrors.ReadError("search failed", err)
	}

	matches := coll.Results()
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		f, ok, err := r.load(m.ID)
		if err != nil {
			return nil, dxerrors.ReadError("failed to load search result", err).WithDetail("id", m.ID)
		}
		if !ok {
			continue
		}
		score := m.Score
		if score < 0 {
			score = 0
		}
		hits = append(hits, Hit{Score: score, Fields: f})
	}
	return hits, nil
}

func (r *bleveReader) Lookup(_ context.Context, id string) (Fields, bool, error) {
	f, ok, err := r.load(id)
	if err != nil {
		return Fields{}, false, dxerrors.ReadError("lookup failed", err).WithDetail("id", id)
	}
	return f, ok, nil
}

// load reads the stored fields of id from the snapshot.
func (r *bleveReader) load(id string) (Fields, bool, error) {
	doc, err := r.snap.Document(id)
	if err != nil {
		return Fields{}, false, err
	}
	if doc == nil {
		return Fields{}, false, nil
	}

	f := Fields{ID: id}
	doc.VisitFields(func(field index.Field) {
		if field.Name() == FieldText {
			f.Text = string(field.Value())
		}
	})
	return f, true, nil
}

func (r *bleveReader) Count(_ context.Context) (uint64, error) {
	n, err := r.snap.DocCount()
	if err != nil {
		return 0, dxerrors.ReadError("count failed", err)
	}
	return n, nil
}

func (r *bleveReader) Close() error {
	r.closeOnce.Do(func() { r.closeErr = r.snap.Close() })
	return r.closeErr
}

var (
	_ Engine = (*bleveEngine)(nil)
	_ Writer = (*bleveWriter)(nil)
	_ Reader = (*bleveReader)(nil)
)

package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

var backends = []string{"bleve", "sqlite"}

func searchIDs(t *testing.T, out string) []string {
	t.Helper()
	var results []docindex.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results), out)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Doc.ID
	}
	return ids
}

func TestCLI_AddAndSearch(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			isolate(t)
			dir := filepath.Join(t.TempDir(), "index")
			global := []string{"--dir", dir, "--backend", backend}

			// Given: an initialized index with three documents
			out, err := execute(t, "", append(global, "init")...)
			require.NoError(t, err)
			assert.Contains(t, out, "Index ready")

			docs := [][]string{
				{"doc1", "Flutter is a UI toolkit"},
				{"doc2", "Rust is a systems language"},
				{"doc3", "Tantivy is a search engine library written in Rust"},
			}
			for _, d := range docs {
				out, err := execute(t, "", append(global, "add", d[0], d[1])...)
				require.NoError(t, err)
				assert.Contains(t, out, "Added "+d[0])
			}

			// When: searching for both terms
			out, err = execute(t, "", append(global, "search", "Rust AND Tantivy", "--json")...)

			// Then: only the document with both terms is returned
			require.NoError(t, err)
			assert.Equal(t, []string{"doc3"}, searchIDs(t, out))

			out, err = execute(t, "", append(global, "search", "Rust")...)
			require.NoError(t, err)
			assert.Contains(t, out, "2 results for \"Rust\"")
		})
	}
}

func TestCLI_AddFromStdin(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// Given: text piped on stdin
	_, err := execute(t, "piped text about gophers\n", "--dir", dir, "add", "notes", "--file", "-")
	require.NoError(t, err)

	// When: reading the document back
	out, err := execute(t, "", "--dir", dir, "get", "notes", "--json")

	// Then: the stored text is the stdin content
	require.NoError(t, err)
	var got struct {
		Found    bool              `json:"found"`
		Document docindex.Document `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Found)
	assert.Equal(t, "piped text about gophers\n", got.Document.Text)
}

func TestCLI_AddFromFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "readme.md")
	require.NoError(t, os.WriteFile(path, []byte("release notes"), 0o644))

	_, err := execute(t, "", "--dir", dir, "add", "readme", "--file", path)
	require.NoError(t, err)

	out, err := execute(t, "", "--dir", dir, "get", "readme")
	require.NoError(t, err)
	assert.Contains(t, out, "readme")
	assert.Contains(t, out, "release notes")
}

func TestCLI_AddRejectsTextAndFile(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "--dir", t.TempDir(), "add", "doc1", "inline", "--file", "x.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestCLI_UpdateReplacesText(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// Given: a document
	_, err := execute(t, "", "--dir", dir, "add", "doc1", "old words")
	require.NoError(t, err)

	// When: updating it
	out, err := execute(t, "", "--dir", dir, "update", "doc1", "new", "words")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated doc1")

	// Then: only the new text matches
	out, err = execute(t, "", "--dir", dir, "search", "old", "--json")
	require.NoError(t, err)
	assert.Empty(t, searchIDs(t, out))

	out, err = execute(t, "", "--dir", dir, "search", "new", "--json")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1"}, searchIDs(t, out))
}

func TestCLI_DeleteAndStats(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// Given: three documents
	for _, id := range []string{"a", "b", "c"} {
		_, err := execute(t, "", "--dir", dir, "add", id, "text for "+id)
		require.NoError(t, err)
	}

	// When: deleting two of them and an unknown id
	out, err := execute(t, "", "--dir", dir, "delete", "a", "b", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 3 documents")

	// Then: one document remains
	out, err = execute(t, "", "--dir", dir, "stats", "--json")
	require.NoError(t, err)
	var st docindex.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, uint64(1), st.Documents)
	assert.Equal(t, docindex.BackendBleve, st.Backend)
	assert.Equal(t, 0, st.Staged)

	out, err = execute(t, "", "--dir", dir, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "documents:")
}

func TestCLI_GetMissingDocument(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// Given: an empty index
	// When: getting an unknown id
	out, err := execute(t, "", "--dir", dir, "get", "nope")

	// Then: absence is reported without an error
	require.NoError(t, err)
	assert.Contains(t, out, "Document nope not found")

	out, err = execute(t, "", "--dir", dir, "get", "nope", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"found": false}`, out)
}

func TestCLI_MalformedQuery(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "--dir", t.TempDir(), "search", "(rust AND")

	require.Error(t, err)
	assert.ErrorIs(t, err, dxerrors.ErrQueryParse)
}

func TestCLI_SearchTopK(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		_, err := execute(t, "", "--dir", dir, "add", "doc"+strings.Repeat("x", i), "common term")
		require.NoError(t, err)
	}

	out, err := execute(t, "", "--dir", dir, "search", "common", "--top-k", "2", "--json")

	require.NoError(t, err)
	assert.Len(t, searchIDs(t, out), 2)
}

func TestCLI_BackendMismatchIsStorageError(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	// Given: a SQLite index
	_, err := execute(t, "", "--dir", dir, "--backend", "sqlite", "init")
	require.NoError(t, err)

	// When: opening it as Bleve
	_, err = execute(t, "", "--dir", dir, "--backend", "bleve", "stats")

	// Then: it is rejected
	require.Error(t, err)
	assert.ErrorIs(t, err, dxerrors.ErrStorage)
}

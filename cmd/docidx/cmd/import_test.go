package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docidx/pkg/docindex"
)

const sampleJSONL = `{"id": "doc1", "text": "Flutter is a UI toolkit"}
{"id": "doc2", "text": "Rust is a systems language"}

not json
{"op": "upsert", "id": "doc3", "text": "Tantivy is written in Rust"}
{"op": "delete", "id": "doc1"}
{"op": "rename", "id": "doc4"}
`

func TestImportCmd_AppliesFileInBatches(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSONL), 0o644))

	// Given: a JSONL file with upserts, a delete and two bad lines
	// When: importing it two lines per batch
	out, err := execute(t, "", "--dir", dir, "import", path, "--batch-size", "2", "--progress=false")

	// Then: good lines are applied and bad lines are reported
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 documents, deleted 1 (2 batches)")
	assert.Contains(t, out, "Skipped 2 malformed lines")

	out, err = execute(t, "", "--dir", dir, "search", "Rust OR Flutter", "--json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc2", "doc3"}, searchIDs(t, out))
}

func TestImportCmd_ReadsStdin(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	out, err := execute(t, `{"id":"a","text":"alpha"}`+"\n", "--dir", dir, "import", "-", "--progress=false")

	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 documents")
}

func TestImportCmd_RejectsBadBatchSize(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "--dir", t.TempDir(), "import", "-", "--batch-size", "0")

	require.Error(t, err)
}

func TestImportLines_LastLinePerIDWinsWithinBatch(t *testing.T) {
	// Given: an index and input that changes one id three times
	m := docindex.New()
	require.NoError(t, m.Initialize(context.Background(), t.TempDir()))
	t.Cleanup(func() { _ = m.Close() })

	input := strings.Join([]string{
		`{"id":"x","text":"first"}`,
		`{"op":"delete","id":"x"}`,
		`{"id":"x","text":"third"}`,
	}, "\n")

	// When: importing in a single batch
	var skipped []int
	res, err := importLines(context.Background(), m, strings.NewReader(input), 10, func(line int, _ error) {
		skipped = append(skipped, line)
	})

	// Then: the final upsert wins
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, importResult{Lines: 3, Upserted: 1, Batches: 1}, res)

	doc, found, err := m.GetDocumentByID(context.Background(), "x")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "third", doc.Text)
}

func TestImportLines_ReportsSkippedLineNumbers(t *testing.T) {
	m := docindex.New()
	require.NoError(t, m.Initialize(context.Background(), t.TempDir()))
	t.Cleanup(func() { _ = m.Close() })

	var skipped []int
	res, err := importLines(context.Background(), m, strings.NewReader("{}\n\n{bad\n"), 10, func(line int, _ error) {
		skipped = append(skipped, line)
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, skipped)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.Batches)
}

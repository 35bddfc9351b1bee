package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docidx/pkg/docindex"
)

func TestIndexStateFunc_SamplesOpenIndex(t *testing.T) {
	// Given: an open index with one committed and one staged document
	ctx := context.Background()
	m := docindex.New()
	require.NoError(t, m.Initialize(ctx, t.TempDir()))
	require.NoError(t, m.AddDocument(ctx, docindex.Document{ID: "a", Text: "alpha"}))
	require.NoError(t, m.AddDocumentNoCommit(ctx, docindex.Document{ID: "b", Text: "beta"}))

	sample := indexStateFunc(m)

	// When: sampling
	st, ok := sample()

	// Then: committed and staged counts are reported
	require.True(t, ok)
	assert.Equal(t, uint64(1), st.Documents)
	assert.Positive(t, st.Staged)
	assert.Positive(t, st.Generation)

	// And: a closed index is skipped
	require.NoError(t, m.Close())
	_, ok = sample()
	assert.False(t, ok)
}

func TestServeCmd_RejectsUnknownTransport(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "--dir", t.TempDir(), "serve", "--transport", "http")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport")
}

func TestIngestCmd_RequiresBrokers(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "--dir", t.TempDir(), "ingest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Kafka brokers")
}

func TestTUICmd_RequiresTerminal(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "--dir", t.TempDir(), "tui")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a terminal")
}

package integration

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docidx/internal/config"
	docmcp "github.com/Aman-CERP/docidx/internal/mcp"
	"github.com/Aman-CERP/docidx/internal/telemetry"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

// connect starts a docidx MCP server over in-memory transports and
// returns a connected client session.
func connect(t *testing.T, backend docindex.Backend) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	metrics := telemetry.New(prometheus.NewRegistry())
	m := docindex.New(docindex.WithBackend(backend), docindex.WithRecorder(metrics))
	require.NoError(t, m.Initialize(ctx, filepath.Join(t.TempDir(), "index")))
	t.Cleanup(func() { _ = m.Close() })

	srv, err := docmcp.NewServer(m, config.NewConfig(), nil)
	require.NoError(t, err)
	srv.SetQueryHistory(metrics)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "docidx-test", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

// call invokes a tool and decodes its structured result into out.
func call(t *testing.T, s *mcp.ClientSession, name string, args any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if out != nil && !res.IsError {
		data, err := json.Marshal(res.StructuredContent)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out))
	}
	return res
}

func resultIDs(out docmcp.SearchOutput) []string {
	ids := make([]string, len(out.Results))
	for i, r := range out.Results {
		ids[i] = r.ID
	}
	return ids
}

func TestMCPSession_DocumentLifecycle(t *testing.T) {
	for _, backend := range []docindex.Backend{docindex.BackendBleve, docindex.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			s := connect(t, backend)

			// Given: the tool list
			tools, err := s.ListTools(context.Background(), nil)
			require.NoError(t, err)
			assert.Len(t, tools.Tools, 11)

			// When: adding three documents in one call
			var added docmcp.MutationOutput
			res := call(t, s, "add_documents", map[string]any{"documents": []map[string]string{
				{"id": "1", "text": "Flutter is a UI toolkit"},
				{"id": "2", "text": "Rust is a systems language"},
				{"id": "3", "text": "Tantivy is a search engine library written in Rust"},
			}}, &added)
			require.False(t, res.IsError)
			assert.True(t, added.Committed)
			assert.Equal(t, 3, added.Count)

			// Then: searches see them
			var found docmcp.SearchOutput
			call(t, s, "search_documents", map[string]any{"query": "Rust AND Tantivy"}, &found)
			assert.Equal(t, []string{"3"}, resultIDs(found))

			call(t, s, "search_documents", map[string]any{"query": "Rust"}, &found)
			assert.ElementsMatch(t, []string{"2", "3"}, resultIDs(found))

			// And: a deleted document disappears
			call(t, s, "delete_document", map[string]any{"id": "3"}, nil)
			call(t, s, "search_documents", map[string]any{"query": "Tantivy"}, &found)
			assert.Empty(t, found.Results)

			var got docmcp.GetDocumentOutput
			call(t, s, "get_document", map[string]any{"id": "1"}, &got)
			require.True(t, got.Found)
			assert.Equal(t, "Flutter is a UI toolkit", got.Document.Text)
		})
	}
}

func TestMCPSession_StagedOperationsNeedCommit(t *testing.T) {
	s := connect(t, docindex.BackendBleve)

	// Given: a staged document
	var staged docmcp.MutationOutput
	call(t, s, "stage_document", map[string]any{"id": "a", "text": "staged words"}, &staged)
	assert.False(t, staged.Committed)
	assert.Positive(t, staged.Staged)

	// When: searching before the commit
	var found docmcp.SearchOutput
	call(t, s, "search_documents", map[string]any{"query": "staged"}, &found)

	// Then: nothing is visible until commit
	assert.Empty(t, found.Results)

	var committed docmcp.MutationOutput
	call(t, s, "commit", map[string]any{}, &committed)
	assert.True(t, committed.Committed)
	assert.Zero(t, committed.Staged)

	call(t, s, "search_documents", map[string]any{"query": "staged"}, &found)
	assert.Equal(t, []string{"a"}, resultIDs(found))

	var status docmcp.IndexStatusOutput
	call(t, s, "index_status", map[string]any{}, &status)
	assert.Equal(t, uint64(1), status.Documents)
	assert.Equal(t, "bleve", status.Backend)
}

func TestMCPSession_MalformedQueryIsAnError(t *testing.T) {
	s := connect(t, docindex.BackendBleve)

	// When: sending an unbalanced query
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_documents",
		Arguments: map[string]any{"query": "(rust AND"},
	})

	// Then: the call fails, either as a protocol error or a tool error
	if err == nil {
		assert.True(t, res.IsError)
	}
}

func TestMCPSession_Resources(t *testing.T) {
	s := connect(t, docindex.BackendBleve)
	call(t, s, "add_document", map[string]any{"id": "x", "text": "gopher"}, nil)
	call(t, s, "search_documents", map[string]any{"query": "gopher"}, nil)
	call(t, s, "search_documents", map[string]any{"query": "nothing"}, nil)

	// When: reading the recent queries resource
	res, err := s.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: docmcp.RecentQueriesURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	// Then: both searches are listed and one returned nothing
	var recent docmcp.RecentQueriesOutput
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &recent))
	assert.Equal(t, 2, recent.Total)
	assert.InDelta(t, 50.0, recent.ZeroResultPct, 0.01)

	res, err = s.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: docmcp.StatusURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, `"documents": 1`)
}

package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docidx/internal/config"
	"github.com/Aman-CERP/docidx/pkg/docindex"
	"github.com/Aman-CERP/docidx/pkg/version"
)

// Index is the part of docindex.Manager the server exposes.
type Index interface {
	AddDocument(ctx context.Context, doc docindex.Document) error
	AddDocumentsBatch(ctx context.Context, docs []docindex.Document) error
	AddDocumentNoCommit(ctx context.Context, doc docindex.Document) error
	DeleteDocument(ctx context.Context, id string) error
	DeleteDocumentsBatch(ctx context.Context, ids []string) error
	DeleteDocumentNoCommit(ctx context.Context, id string) error
	UpdateDocument(ctx context.Context, doc docindex.Document) error
	Commit(ctx context.Context) error
	GetDocumentByID(ctx context.Context, id string) (docindex.Document, bool, error)
	SearchDocuments(ctx context.Context, raw string, topK int) ([]docindex.SearchResult, error)
	Stats(ctx context.Context) (docindex.Stats, error)
}

var _ Index = (*docindex.Manager)(nil)

// Server is the MCP server for docidx.
// It exposes an open index to AI clients as tools and resources.
type Server struct {
	mcp    *mcp.Server
	index  Index
	config *config.Config
	logger *slog.Logger

	history QueryHistory

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{"add_document", "Add one document and commit. Replaces any document with the same id. Visible to searches when the call returns."},
	{"add_documents", "Add several documents in one atomic commit. Either all become visible or none do."},
	{"stage_document", "Stage a document add without committing. Invisible until the commit tool is called."},
	{"stage_delete", "Stage a delete without committing. The document stays visible until the commit tool is called."},
	{"commit", "Publish every staged operation as one atomic commit."},
	{"update_document", "Replace the text of an existing id in one commit. Readers never observe the document missing."},
	{"delete_document", "Delete one document by id and commit. Deleting an unknown id succeeds."},
	{"delete_documents", "Delete several ids in one atomic commit."},
	{"get_document", "Fetch a committed document by id."},
	{"search_documents", "Full-text search. Supports terms, \"phrases\", prefix*, AND, OR, NOT and parentheses; adjacent terms are ORed. Results are ordered by descending score."},
	{"index_status", "Report index path, backend, lifecycle state, document count, commit generation and staged operations."},
}

// NewServer creates a new MCP server over idx.
func NewServer(idx Index, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if idx == nil {
		return nil, errors.New("index is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		index:  idx,
		config: cfg,
		logger: logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Name,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerStatusResource()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

func (s *Server) registerTools() {
	desc := make(map[string]string, len(toolInfos))
	for _, ti := range toolInfos {
		desc[ti.Name] = ti.Description
	}

	addTool(s, "add_document", desc, s.handleAddDocument)
	addTool(s, "add_documents", desc, s.handleAddDocuments)
	addTool(s, "stage_document", desc, s.handleStageDocument)
	addTool(s, "stage_delete", desc, s.handleStageDelete)
	addTool(s, "commit", desc, s.handleCommit)
	addTool(s, "update_document", desc, s.handleUpdateDocument)
	addTool(s, "delete_document", desc, s.handleDeleteDocument)
	addTool(s, "delete_documents", desc, s.handleDeleteDocuments)
	addTool(s, "get_document", desc, s.handleGetDocument)
	addTool(s, "search_documents", desc, s.handleSearch)
	addTool(s, "index_status", desc, s.handleIndexStatus)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(toolInfos)))
}

// addTool registers h as an SDK tool handler, with request logging and
// error mapping.
func addTool[In, Out any](s *Server, name string, desc map[string]string, h func(context.Context, In) (Out, error)) {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: name, Description: desc[name]},
		func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
			reqID := generateRequestID()
			start := time.Now()

			out, err := h(ctx, in)
			if err != nil {
				mapped := MapError(err)
				s.logger.Warn("tool_failed",
					slog.String("tool", name),
					slog.String("request_id", reqID),
					slog.Int("code", mapped.Code),
					slog.String("error", err.Error()))
				var zero Out
				return nil, zero, mapped
			}

			s.logger.Debug("tool_completed",
				slog.String("tool", name),
				slog.String("request_id", reqID),
				slog.Duration("duration", time.Since(start)))
			return nil, out, nil
		})
}

func (s *Server) handleAddDocument(ctx context.Context, in DocumentInput) (MutationOutput, error) {
	if err := s.index.AddDocument(ctx, in.document()); err != nil {
		return MutationOutput{}, err
	}
	return s.mutation(ctx, true, 1), nil
}

func (s *Server) handleAddDocuments(ctx context.Context, in AddDocumentsInput) (MutationOutput, error) {
	if len(in.Documents) == 0 {
		return MutationOutput{}, NewInvalidParamsError("documents parameter is required")
	}
	docs := make([]docindex.Document, len(in.Documents))
	for i, d := range in.Documents {
		docs[i] = d.document()
	}
	if err := s.index.AddDocumentsBatch(ctx, docs); err != nil {
		return MutationOutput{}, err
	}
	return s.mutation(ctx, true, len(docs)), nil
}

func (s *Server) handleStageDocument(ctx context.Context, in DocumentInput) (MutationOutput, error) {
	if err := s.index.AddDocumentNoCommit(ctx, in.document()); err != nil {
		return MutationOutput{}, err
	}
	return s.mutation(ctx, false, 1), nil
}

func (s *Server) handleStageDelete(ctx context.Context, in IDInput) (MutationOutput, error) {
	if err := s.index.DeleteDocumentNoCommit(ctx, in.ID); err != nil {
		return MutationOutput{}, err
	}
	return s.mutation(ctx, false, 1), nil
}

func (s *Server) handleCommit(ctx context.Context, _ CommitInput) (MutationOutput, error) {
	staged := s.mutation(ctx, false, 0).Staged
	if err := s.index.Commit(ctx); err != nil {
		return MutationOutput{}, err
	}
	return s.mutation(ctx, true, staged), nil
}

func (s *Server) handleUpdateDocument(ctx context.Context, in DocumentInput) (MutationOutput, error) {
	if err := s.index.UpdateDocument(ctx, in.document()); err != nil {
		return MutationOutput{}, err
	}
	return s.mutation(ctx, true, 1), nil
}

func (s *Server) handleDeleteDocument(ctx context.Context, in IDInput) (MutationOutput, error) {
	if err := s.index.DeleteDocument(ctx, in.ID); err != nil {
		return MutationOutput{}, err
	}
	return s.mutation(ctx, true, 1), nil
}

func (s *Server) handleDeleteDocuments(ctx context.Context, in IDsInput) (MutationOutput, error) {
	if len(in.IDs) == 0 {
		return MutationOutput{}, NewInvalidParamsError("ids parameter is required")
	}
	if err := s.index.DeleteDocumentsBatch(ctx, in.IDs); err != nil {
		return MutationOutput{}, err
	}
	return s.mutation(ctx, true, len(in.IDs)), nil
}

func (s *Server) handleGetDocument(ctx context.Context, in IDInput) (GetDocumentOutput, error) {
	doc, found, err := s.index.GetDocumentByID(ctx, in.ID)
	if err != nil {
		return GetDocumentOutput{}, err
	}
	if !found {
		return GetDocumentOutput{Found: false}, nil
	}
	return GetDocumentOutput{Found: true, Document: &DocumentInput{ID: doc.ID, Text: doc.Text}}, nil
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) (SearchOutput, error) {
	if in.Query == "" {
		return SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	results, err := s.index.SearchDocuments(ctx, in.Query, s.config.ClampTopK(in.TopK))
	if err != nil {
		return SearchOutput{}, err
	}

	out := SearchOutput{
		Query:   in.Query,
		Results: make([]SearchResultOutput, 0, len(results)),
	}
	for _, r := range results {
		out.Results = append(out.Results, toSearchResultOutput(r))
	}
	return out, nil
}

func (s *Server) handleIndexStatus(ctx context.Context, _ IndexStatusInput) (*IndexStatusOutput, error) {
	st, err := s.index.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return toIndexStatusOutput(st), nil
}

// mutation builds the acknowledgement for a successful write. The staged
// count is best effort.
func (s *Server) mutation(ctx context.Context, committed bool, count int) MutationOutput {
	out := MutationOutput{Committed: committed, Count: count}
	if st, err := s.index.Stats(ctx); err == nil {
		out.Staged = st.Staged
	}
	return out
}

// Serve starts the server with the specified transport and blocks until ctx
// is canceled or the client disconnects.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

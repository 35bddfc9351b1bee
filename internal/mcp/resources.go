package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docidx/internal/telemetry"
)

// Resource URIs.
const (
	StatusURI        = "docidx://index/status"
	RecentQueriesURI = "docidx://queries/recent"
)

// QueryHistory supplies recently executed searches.
// telemetry.Metrics satisfies it.
type QueryHistory interface {
	RecentQueries() []telemetry.QueryEvent
}

// RecentQueriesOutput is the body of the recent-queries resource.
type RecentQueriesOutput struct {
	Total         int                    `json:"total"`
	ZeroResultPct float64                `json:"zero_result_pct"`
	Queries       []telemetry.QueryEvent `json:"queries"`
}

// SetQueryHistory sets the query history source and registers the
// recent-queries resource.
func (s *Server) SetQueryHistory(h QueryHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = h

	if h != nil {
		s.mcp.AddResource(
			&mcp.Resource{
				Name:        "recent_queries",
				URI:         RecentQueriesURI,
				Description: "Recent searches with result counts and latency",
				MIMEType:    "application/json",
			},
			func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
				return s.readRecentQueries(ctx)
			},
		)
	}
}

func (s *Server) registerStatusResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "index_status",
			URI:         StatusURI,
			Description: "Current index status",
			MIMEType:    "application/json",
		},
		func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readStatus(ctx)
		},
	)
}

func (s *Server) readStatus(ctx context.Context) (*mcp.ReadResourceResult, error) {
	st, err := s.index.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return jsonResource(StatusURI, toIndexStatusOutput(st))
}

func (s *Server) readRecentQueries(_ context.Context) (*mcp.ReadResourceResult, error) {
	s.mu.RLock()
	h := s.history
	s.mu.RUnlock()

	if h == nil {
		return nil, NewInvalidParamsError("query history not available")
	}

	queries := h.RecentQueries()
	out := RecentQueriesOutput{Total: len(queries), Queries: queries}
	if len(queries) > 0 {
		zero := 0
		for _, q := range queries {
			if q.IsZeroResult() {
				zero++
			}
		}
		out.ZeroResultPct = float64(zero) * 100 / float64(len(queries))
	}
	return jsonResource(RecentQueriesURI, out)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(content),
			},
		},
	}, nil
}

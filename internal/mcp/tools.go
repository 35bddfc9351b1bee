package mcp

import "github.com/Aman-CERP/docidx/pkg/docindex"

// DocumentInput is a document as sent by clients.
type DocumentInput struct {
	ID   string `json:"id" jsonschema:"caller-chosen unique document identifier"`
	Text string `json:"text" jsonschema:"searchable document text"`
}

func (d DocumentInput) document() docindex.Document {
	return docindex.Document{ID: d.ID, Text: d.Text}
}

// AddDocumentsInput defines the input schema for the add_documents tool.
type AddDocumentsInput struct {
	Documents []DocumentInput `json:"documents" jsonschema:"documents to add in one atomic commit"`
}

// IDInput identifies a single document.
type IDInput struct {
	ID string `json:"id" jsonschema:"document identifier"`
}

// IDsInput identifies several documents.
type IDsInput struct {
	IDs []string `json:"ids" jsonschema:"document identifiers to delete in one atomic commit"`
}

// CommitInput defines the input schema for the commit tool (no parameters).
type CommitInput struct{}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// SearchInput defines the input schema for the search_documents tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"query using terms, \"phrases\", prefix*, AND, OR, NOT and parentheses"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of results, default from server config"`
}

// MutationOutput acknowledges a write.
type MutationOutput struct {
	Committed bool `json:"committed" jsonschema:"true when the change is visible to searches"`
	Count     int  `json:"count" jsonschema:"number of documents affected"`
	Staged    int  `json:"staged" jsonschema:"operations still waiting for commit"`
}

// GetDocumentOutput defines the output schema for the get_document tool.
type GetDocumentOutput struct {
	Found    bool           `json:"found"`
	Document *DocumentInput `json:"document,omitempty"`
}

// SearchOutput defines the output schema for the search_documents tool.
type SearchOutput struct {
	Query   string               `json:"query"`
	Results []SearchResultOutput `json:"results" jsonschema:"matches ordered by descending score"`
}

// SearchResultOutput is a single scored match.
type SearchResultOutput struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score" jsonschema:"engine relevance score, higher is better"`
}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Path       string `json:"path"`
	Backend    string `json:"backend"`
	State      string `json:"state"`
	Documents  uint64 `json:"documents"`
	Generation uint64 `json:"generation"`
	Staged     int    `json:"staged"`
}

func toSearchResultOutput(r docindex.SearchResult) SearchResultOutput {
	return SearchResultOutput{ID: r.Doc.ID, Text: r.Doc.Text, Score: r.Score}
}

func toIndexStatusOutput(st docindex.Stats) *IndexStatusOutput {
	return &IndexStatusOutput{
		Path:       st.Path,
		Backend:    string(st.Backend),
		State:      st.State,
		Documents:  st.Documents,
		Generation: st.Generation,
		Staged:     st.Staged,
	}
}

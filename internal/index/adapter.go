// Package index owns the open index of a process: one engine, its single
// writer, and the current reader snapshot.
package index

import (
	"github.com/Aman-CERP/docidx/internal/store"
)

// Document is the fixed two-field document: a caller-supplied identifier
// and its full text.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SearchResult pairs a document with its relevance score. Higher scores are
// more relevant; the scale is engine-defined.
type SearchResult struct {
	Score float64  `json:"score"`
	Doc   Document `json:"doc"`
}

// ToFields maps a Document onto the engine schema.
func ToFields(d Document) store.Fields {
	return store.Fields{ID: d.ID, Text: d.Text}
}

// FromFields maps engine fields back to a Document.
func FromFields(f store.Fields) Document {
	return Document{ID: f.ID, Text: f.Text}
}

// FromHits maps ranked engine hits to search results, keeping their order.
func FromHits(hits []store.Hit) []SearchResult {
	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{Score: h.Score, Doc: FromFields(h.Fields)}
	}
	return results
}

package ui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
	"github.com/Aman-CERP/docidx/pkg/docindex"
)

type stubSearcher struct {
	results []docindex.SearchResult
	err     error
	gotTopK int
	gotRaw  string
}

func (s *stubSearcher) SearchDocuments(_ context.Context, raw string, topK int) ([]docindex.SearchResult, error) {
	s.gotRaw, s.gotTopK = raw, topK
	return s.results, s.err
}

func typeQuery(m SearchModel, q string) SearchModel {
	for _, r := range q {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(SearchModel)
	}
	return m
}

func TestSearchModel_EnterRunsSearch(t *testing.T) {
	// Given
	s := &stubSearcher{results: []docindex.SearchResult{
		{Score: 1.5, Doc: docindex.Document{ID: "2", Text: "Rust is a systems language"}},
		{Score: 0.7, Doc: docindex.Document{ID: "3", Text: "Tantivy is a search library"}},
	}}
	m := NewSearchModel(context.Background(), s, 5, NoColorStyles(), "/tmp/idx")
	m = typeQuery(m, "rust")

	// When: Enter is pressed
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(SearchModel)
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "searching")

	// And: the search completes
	next, _ = m.Update(m.searchCmd("rust")())
	m = next.(SearchModel)

	// Then
	assert.Equal(t, "rust", s.gotRaw)
	assert.Equal(t, 5, s.gotTopK)
	require.Len(t, m.Results(), 2)
	view := m.View()
	assert.Contains(t, view, "2 result(s)")
	assert.Contains(t, view, "Rust is a systems language")
	assert.Contains(t, view, "1.5000")
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", sel.Doc.ID)
}

func TestSearchModel_SelectionMoves(t *testing.T) {
	m := NewSearchModel(context.Background(), &stubSearcher{}, 5, NoColorStyles(), "")
	next, _ := m.Update(resultsMsg{query: "x", results: []docindex.SearchResult{
		{Doc: docindex.Document{ID: "a"}}, {Doc: docindex.Document{ID: "b"}},
	}})
	m = next.(SearchModel)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(SearchModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(SearchModel)
	sel, _ := m.Selected()
	assert.Equal(t, "b", sel.Doc.ID)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(SearchModel)
	sel, _ = m.Selected()
	assert.Equal(t, "a", sel.Doc.ID)
}

func TestSearchModel_EmptyQueryDoesNothing(t *testing.T) {
	m := NewSearchModel(context.Background(), &stubSearcher{}, 5, NoColorStyles(), "")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
}

func TestSearchModel_ShowsParseErrorWithOffset(t *testing.T) {
	m := NewSearchModel(context.Background(), &stubSearcher{}, 5, NoColorStyles(), "")

	next, _ := m.Update(resultsMsg{query: "(a", err: dxerrors.QueryParseError("missing closing parenthesis", 2)})
	m = next.(SearchModel)

	assert.Contains(t, m.View(), "[ERR_402_QUERY_PARSE] missing closing parenthesis (at offset 2)")
}

func TestSearchModel_PlainErrorIsShown(t *testing.T) {
	m := NewSearchModel(context.Background(), &stubSearcher{}, 5, NoColorStyles(), "")

	next, _ := m.Update(resultsMsg{query: "a", err: errors.New("boom")})

	assert.Contains(t, next.(SearchModel).View(), "boom")
}

func TestSearchModel_EscQuits(t *testing.T) {
	m := NewSearchModel(context.Background(), &stubSearcher{}, 5, NoColorStyles(), "")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

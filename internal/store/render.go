package store

import (
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/docidx/internal/query"
)

// prune drops leaves that cannot produce a token, such as "-" or "+++",
// and clauses made only of negations. It returns nil when the whole tree
// can match nothing. Both engines evaluate the pruned tree, so they agree
// on such input.
func prune(n *query.Node) *query.Node {
	if n == nil || n.Kind == query.KindNot {
		return nil
	}
	if n.IsLeaf() {
		if !hasTokenChars(n.Value) {
			return nil
		}
		return n
	}

	positive, negative := n.Split()
	kept := make([]*query.Node, 0, len(n.Children))
	for _, c := range positive {
		p := prune(c)
		if p == nil {
			if n.Kind == query.KindAnd {
				return nil
			}
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return nil
	}
	for _, c := range negative {
		if p := prune(c); p != nil {
			kept = append(kept, &query.Node{Kind: query.KindNot, Children: []*query.Node{p}, Offset: c.Offset})
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &query.Node{Kind: n.Kind, Children: kept, Offset: n.Offset}
}

func hasTokenChars(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// toBleveQuery renders a pruned tree against the text field.
func toBleveQuery(n *query.Node) blevequery.Query {
	switch n.Kind {
	case query.KindTerm:
		q := bleve.NewMatchQuery(n.Value)
		q.SetField(FieldText)
		q.SetOperator(blevequery.MatchQueryOperatorAnd)
		return q
	case query.KindPrefix:
		// prefix queries bypass the analyzer
		q := bleve.NewPrefixQuery(strings.ToLower(n.Value))
		q.SetField(FieldText)
		return q
	case query.KindPhrase:
		q := bleve.NewMatchPhraseQuery(n.Value)
		q.SetField(FieldText)
		return q
	}

	positive, negative := n.Split()
	clauses := make([]blevequery.Query, 0, len(positive))
	for _, c := range positive {
		clauses = append(clauses, toBleveQuery(c))
	}

	var combined blevequery.Query
	if n.Kind == query.KindAnd {
		combined = bleve.NewConjunctionQuery(clauses...)
	} else {
		combined = bleve.NewDisjunctionQuery(clauses...)
	}
	if len(negative) == 0 {
		return combined
	}

	b := bleve.NewBooleanQuery()
	b.AddMust(combined)
	for _, c := range negative {
		b.AddMustNot(toBleveQuery(c))
	}
	return b
}

// toFTSMatch renders a pruned tree as an FTS5 MATCH expression. Every leaf
// is emitted as a quoted string so FTS5 tokenizes it with the table's
// tokenizer and no user text is read as syntax.
func toFTSMatch(n *query.Node) string {
	switch n.Kind {
	case query.KindTerm, query.KindPhrase:
		return ftsQuote(n.Value)
	case query.KindPrefix:
		return ftsQuote(n.Value) + " *"
	}

	positive, negative := n.Split()
	op := " OR "
	if n.Kind == query.KindAnd {
		op = " AND "
	}
	parts := make([]string, 0, len(positive))
	for _, c := range positive {
		parts = append(parts, toFTSMatch(c))
	}
	expr := "(" + strings.Join(parts, op) + ")"
	for _, c := range negative {
		expr = "(" + expr + " NOT " + toFTSMatch(c) + ")"
	}
	return expr
}

func ftsQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

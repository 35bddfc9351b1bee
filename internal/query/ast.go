// Package query parses docidx search strings into an engine-neutral tree.
//
// Grammar, lowest precedence first:
//
//	or    := and { ["OR"] and }      juxtaposition means OR
//	and   := unary { "AND" unary }
//	unary := "NOT" unary | primary
//	primary := TERM | PREFIX* | "phrase words" | "(" or ")"
//
// Operators are recognised only in upper case. Inside any AND or OR group a
// negated clause excludes its matches from the whole group, so every group
// needs at least one positive clause.
package query

import (
	"strings"
)

// Kind identifies a node in the query tree.
type Kind int

const (
	// KindTerm matches a single word in the text field.
	KindTerm Kind = iota
	// KindPrefix matches words starting with Value.
	KindPrefix
	// KindPhrase matches the words of Value in sequence.
	KindPhrase
	// KindAnd requires every positive child.
	KindAnd
	// KindOr requires at least one positive child.
	KindOr
	// KindNot negates its single child. It only appears inside KindAnd or KindOr.
	KindNot
)

func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "term"
	case KindPrefix:
		return "prefix"
	case KindPhrase:
		return "phrase"
	case KindAnd:
		return "and"
	case KindOr:
		return "or"
	case KindNot:
		return "not"
	default:
		return "unknown"
	}
}

// Node is one clause of a parsed query.
type Node struct {
	Kind Kind

	// Value holds the word, prefix or phrase text for leaf nodes.
	Value string

	// Children holds the operands of KindAnd, KindOr and KindNot.
	Children []*Node

	// Offset is the byte position of the clause in the raw query.
	Offset int
}

// IsLeaf reports whether n matches text directly.
func (n *Node) IsLeaf() bool {
	return n.Kind == KindTerm || n.Kind == KindPrefix || n.Kind == KindPhrase
}

// Split separates the children of a group into positive and negated
// clauses. Negated clauses are returned unwrapped.
func (n *Node) Split() (positive, negative []*Node) {
	for _, c := range n.Children {
		if c.Kind == KindNot {
			negative = append(negative, c.Children[0])
			continue
		}
		positive = append(positive, c)
	}
	return positive, negative
}

// String renders the tree in a canonical, fully parenthesised form.
// It is used in logs and tests.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.Kind {
	case KindTerm:
		sb.WriteString(n.Value)
	case KindPrefix:
		sb.WriteString(n.Value)
		sb.WriteByte('*')
	case KindPhrase:
		sb.WriteByte('"')
		sb.WriteString(n.Value)
		sb.WriteByte('"')
	case KindNot:
		sb.WriteString("NOT ")
		n.Children[0].write(sb)
	case KindAnd, KindOr:
		op := " OR "
		if n.Kind == KindAnd {
			op = " AND "
		}
		sb.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteString(op)
			}
			c.write(sb)
		}
		sb.WriteByte(')')
	}
}

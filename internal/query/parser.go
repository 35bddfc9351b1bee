package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
)

type tokenType int

const (
	tokWord tokenType = iota
	tokPhrase
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	typ    tokenType
	text   string
	offset int
}

// Parse parses a raw query string. Malformed input yields a
// QueryParseError carrying the byte offset of the problem.
func Parse(raw string) (*Node, error) {
	toks, err := lex(raw)
	if err != nil {
		return nil, err
	}
	if len(toks) == 1 {
		return nil, dxerrors.QueryParseError("empty query", 0)
	}

	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.typ != tokEOF {
		return nil, dxerrors.QueryParseError("unexpected "+describe(t), t.offset)
	}
	if err := validate(node); err != nil {
		return nil, err
	}
	return node, nil
}

func lex(raw string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(raw) {
		r, size := utf8.DecodeRuneInString(raw[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			toks = append(toks, token{typ: tokLParen, text: "(", offset: i})
			i++
		case r == ')':
			toks = append(toks, token{typ: tokRParen, text: ")", offset: i})
			i++
		case r == '"':
			end := strings.IndexByte(raw[i+1:], '"')
			if end < 0 {
				return nil, dxerrors.QueryParseError("unterminated phrase", i)
			}
			text := strings.Join(strings.Fields(raw[i+1:i+1+end]), " ")
			if text == "" {
				return nil, dxerrors.QueryParseError("empty phrase", i)
			}
			toks = append(toks, token{typ: tokPhrase, text: text, offset: i})
			i += end + 2
		default:
			start := i
			for i < len(raw) {
				r, size := utf8.DecodeRuneInString(raw[i:])
				if unicode.IsSpace(r) || r == '(' || r == ')' || r == '"' {
					break
				}
				i += size
			}
			word := raw[start:i]
			switch word {
			case "AND":
				toks = append(toks, token{typ: tokAnd, text: word, offset: start})
			case "OR":
				toks = append(toks, token{typ: tokOr, text: word, offset: start})
			case "NOT":
				toks = append(toks, token{typ: tokNot, text: word, offset: start})
			default:
				toks = append(toks, token{typ: tokWord, text: word, offset: start})
			}
		}
	}
	return append(toks, token{typ: tokEOF, offset: len(raw)}), nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

// startsClause reports whether t can begin an operand, which is what makes
// juxtaposition an implicit OR.
func startsClause(t token) bool {
	switch t.typ {
	case tokWord, tokPhrase, tokNot, tokLParen:
		return true
	default:
		return false
	}
}

func (p *parser) parseOr() (*Node, error) {
	first := p.peek()
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []*Node{left}
	for {
		t := p.peek()
		if t.typ == tokOr {
			p.next()
		} else if !startsClause(t) {
			break
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	return group(KindOr, children, first.offset), nil
}

func (p *parser) parseAnd() (*Node, error) {
	first := p.peek()
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []*Node{left}
	for p.peek().typ == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	return group(KindAnd, children, first.offset), nil
}

func (p *parser) parseUnary() (*Node, error) {
	t := p.peek()
	if t.typ != tokNot {
		return p.parsePrimary()
	}
	p.next()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Node{Kind: KindNot, Children: []*Node{operand}, Offset: t.offset}, nil
}

func (p *parser) parsePrimary() (*Node, error) {
	t := p.next()
	switch t.typ {
	case tokWord:
		return leaf(t)
	case tokPhrase:
		return &Node{Kind: KindPhrase, Value: t.text, Offset: t.offset}, nil
	case tokLParen:
		if p.peek().typ == tokRParen {
			return nil, dxerrors.QueryParseError("empty group", t.offset)
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.typ != tokRParen {
			return nil, dxerrors.QueryParseError("unbalanced parenthesis", t.offset)
		}
		return inner, nil
	case tokEOF:
		return nil, dxerrors.QueryParseError("expected a term at end of query", t.offset)
	default:
		return nil, dxerrors.QueryParseError("unexpected "+describe(t), t.offset)
	}
}

func leaf(t token) (*Node, error) {
	if !strings.HasSuffix(t.text, "*") {
		return &Node{Kind: KindTerm, Value: t.text, Offset: t.offset}, nil
	}
	prefix := strings.TrimRight(t.text, "*")
	if prefix == "" {
		return nil, dxerrors.QueryParseError("prefix query needs at least one character before *", t.offset)
	}
	return &Node{Kind: KindPrefix, Value: prefix, Offset: t.offset}, nil
}

// group builds an AND or OR node, collapsing single children and flattening
// nested groups of the same kind.
func group(kind Kind, children []*Node, offset int) *Node {
	if len(children) == 1 {
		return children[0]
	}
	flat := make([]*Node, 0, len(children))
	for _, c := range children {
		if c.Kind == kind {
			flat = append(flat, c.Children...)
			continue
		}
		flat = append(flat, c)
	}
	return &Node{Kind: kind, Children: flat, Offset: offset}
}

// validate rejects a negated negation. Clauses made only of negations are
// well-formed; they match nothing.
func validate(n *Node) error {
	switch n.Kind {
	case KindNot:
		c := n.Children[0]
		if c.Kind == KindNot {
			return dxerrors.QueryParseError("double negation is not supported", c.Offset)
		}
		return validate(c)
	case KindAnd, KindOr:
		for _, c := range n.Children {
			if err := validate(c); err != nil {
				return err
			}
		}
	}
	return nil
}

func describe(t token) string {
	switch t.typ {
	case tokAnd, tokOr, tokNot:
		return "operator " + t.text
	case tokRParen:
		return "closing parenthesis"
	case tokLParen:
		return "opening parenthesis"
	case tokEOF:
		return "end of query"
	default:
		return "token " + t.text
	}
}

// Terms returns the positive leaf values of n in order.
func Terms(n *Node) []string {
	var out []string
	var walk func(*Node)
	walk = func(n *Node) {
		switch n.Kind {
		case KindNot:
			return
		case KindTerm, KindPrefix, KindPhrase:
			out = append(out, n.Value)
		default:
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

package edn

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

var closers = map[string]string{"(": ")", "[": "]", "{": "}", "#{": "}"}

// Parser parses EDN tokens into Nodes.
type Parser struct {
	lexer *Lexer
}

// NewParser creates a new parser
func NewParser(lexer *Lexer) *Parser {
	return &Parser{lexer: lexer}
}

// Parse reads exactly one value from input.
func Parse(input string) (Node, error) {
	p := NewParser(NewLexer(input))
	n, err := p.Parse()
	if err != nil {
		return Node{}, err
	}
	tok, err := p.lexer.Peek()
	if err != nil {
		return Node{}, err
	}
	if tok.Type != TokenEOF {
		return Node{}, errors.Newf("trailing input at %s", tok.Pos)
	}
	return n, nil
}

// Parse reads the next value, skipping discarded forms.
func (p *Parser) Parse() (Node, error) {
	for {
		n, ok, err := p.read()
		if err != nil || ok {
			return n, err
		}
	}
}

// ParseAll reads all values until EOF
func (p *Parser) ParseAll() ([]Node, error) {
	var nodes []Node
	for {
		tok, err := p.lexer.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenEOF {
			return nodes, nil
		}
		n, ok, err := p.read()
		if err != nil {
			return nil, err
		}
		if ok {
			nodes = append(nodes, n)
		}
	}
}

// read returns one form. ok is false for a discarded (#_) form.
func (p *Parser) read() (n Node, ok bool, err error) {
	tok, err := p.lexer.Next()
	if err != nil {
		return Node{}, false, err
	}
	switch tok.Type {
	case TokenEOF:
		return Node{}, false, errors.Newf("unexpected end of input at %s", tok.Pos)
	case TokenClose:
		return Node{}, false, errors.Newf("unexpected %q at %s", tok.Value, tok.Pos)
	case TokenString:
		return Node{Type: NodeString, Value: tok.Value, Pos: tok.Pos}, true, nil
	case TokenOpen:
		n, err := p.readCollection(tok)
		return n, err == nil, err
	}

	if tok.Value == "#_" {
		if _, err := p.Parse(); err != nil {
			return Node{}, false, err
		}
		return Node{}, false, nil
	}
	n, err = classify(tok)
	return n, err == nil, err
}

func (p *Parser) readCollection(open Token) (Node, error) {
	n := Node{Pos: open.Pos}
	switch open.Value {
	case "(":
		n.Type = NodeList
	case "[":
		n.Type = NodeVector
	case "{":
		n.Type = NodeMap
	case "#{":
		n.Type = NodeSet
	}
	closer := closers[open.Value]

	for {
		tok, err := p.lexer.Peek()
		if err != nil {
			return Node{}, err
		}
		switch tok.Type {
		case TokenEOF:
			return Node{}, errors.Newf("unterminated %s starting at %s", n.Type, open.Pos)
		case TokenClose:
			if tok.Value != closer {
				return Node{}, errors.Newf("mismatched %q at %s closing %s starting at %s", tok.Value, tok.Pos, n.Type, open.Pos)
			}
			_, _ = p.lexer.Next()
			if n.Type == NodeMap && len(n.Nodes)%2 != 0 {
				return Node{}, errors.Newf("map starting at %s has a key without a value", open.Pos)
			}
			return n, nil
		}
		child, ok, err := p.read()
		if err != nil {
			return Node{}, err
		}
		if ok {
			n.Nodes = append(n.Nodes, child)
		}
	}
}

// classify turns an atom token into a scalar node.
func classify(tok Token) (Node, error) {
	v := tok.Value
	n := Node{Value: v, Pos: tok.Pos}
	switch {
	case v == "nil":
		n.Type = NodeNil
	case v == "true" || v == "false":
		n.Type = NodeBool
	case strings.HasPrefix(v, ":"):
		if len(v) == 1 || !validSymbol(v[1:]) {
			return Node{}, errors.Newf("invalid keyword %s at %s", v, tok.Pos)
		}
		n.Type = NodeKeyword
	case isInt(v):
		n.Type = NodeInt
	case isFloat(v):
		n.Type = NodeFloat
	case validSymbol(v) && !startsNumeric(v):
		n.Type = NodeSymbol
	default:
		return Node{}, errors.Newf("invalid token %s at %s", v, tok.Pos)
	}
	return n, nil
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSuffix(s, "N"), 10, 64)
	return err == nil
}

func isFloat(s string) bool {
	s = strings.TrimSuffix(s, "M")
	if s == "" || strings.ContainsAny(s, "xXpP_") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil && startsNumeric(s)
}

// startsNumeric reports whether s begins like a number: a digit, or a sign
// followed by a digit.
func startsNumeric(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func validSymbol(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(".*+!-_?$%&=<>/#'", r) {
			continue
		}
		return false
	}
	return true
}

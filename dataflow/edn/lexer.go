// Package edn reads the subset of EDN used by topology files: nil, booleans,
// numbers, strings, keywords, symbols, lists, vectors, maps and sets, with
// line comments and #_ discards.
package edn

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// TokenType represents the type of EDN token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenString
	TokenAtom
	TokenOpen  // ( [ { or #{
	TokenClose // ) ] }
)

// Pos is a 1-based line and column.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token represents a lexical token in EDN
type Token struct {
	Type  TokenType
	Value string
	Pos   Pos
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF@" + t.Pos.String()
	case TokenString:
		return fmt.Sprintf("%q@%s", t.Value, t.Pos)
	default:
		return t.Value + "@" + t.Pos.String()
	}
}

// Lexer produces tokens on demand.
type Lexer struct {
	input  string
	pos    int
	line   int
	col    int
	peeked *Token
}

// NewLexer creates a new lexer for the given input
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1}
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (Token, error) {
	if l.peeked == nil {
		tok, err := l.scan()
		if err != nil {
			return Token{}, err
		}
		l.peeked = &tok
	}
	return *l.peeked, nil
}

// Next consumes and returns the next token.
func (l *Lexer) Next() (Token, error) {
	tok, err := l.Peek()
	l.peeked = nil
	return tok, err
}

func (l *Lexer) scan() (Token, error) {
	l.skipWhitespaceAndComments()
	start := Pos{Line: l.line, Col: l.col}
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: start}, nil
	}

	switch ch := l.input[l.pos]; {
	case ch == '"':
		s, err := l.readString(start)
		return Token{Type: TokenString, Value: s, Pos: start}, err
	case ch == '(' || ch == '[' || ch == '{':
		l.advance()
		return Token{Type: TokenOpen, Value: string(ch), Pos: start}, nil
	case ch == ')' || ch == ']' || ch == '}':
		l.advance()
		return Token{Type: TokenClose, Value: string(ch), Pos: start}, nil
	case strings.HasPrefix(l.input[l.pos:], "#{"):
		l.advance()
		l.advance()
		return Token{Type: TokenOpen, Value: "#{", Pos: start}, nil
	case strings.HasPrefix(l.input[l.pos:], "#_"):
		l.advance()
		l.advance()
		return Token{Type: TokenAtom, Value: "#_", Pos: start}, nil
	}

	atom := l.readAtom()
	if atom == "" {
		return Token{}, errors.Newf("unexpected character %q at %s", l.input[l.pos], start)
	}
	return Token{Type: TokenAtom, Value: atom, Pos: start}, nil
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case unicode.IsSpace(rune(ch)) || ch == ',':
			l.advance()
		case ch == ';':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readString(start Pos) (string, error) {
	var sb strings.Builder
	l.advance() // opening quote
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		l.advance()
		switch ch {
		case '"':
			return sb.String(), nil
		case '\\':
			if l.pos >= len(l.input) {
				return "", errors.Newf("unterminated string starting at %s", start)
			}
			esc := l.input[l.pos]
			l.advance()
			switch esc {
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 'n':
				sb.WriteByte('\n')
			case '\\', '"':
				sb.WriteByte(esc)
			default:
				return "", errors.Newf("invalid escape \\%c in string starting at %s", esc, start)
			}
		default:
			sb.WriteByte(ch)
		}
	}
	return "", errors.Newf("unterminated string starting at %s", start)
}

func (l *Lexer) readAtom() string {
	begin := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if isDelimiter(ch) || unicode.IsSpace(rune(ch)) || ch == ',' {
			break
		}
		l.advance()
	}
	return l.input[begin:l.pos]
}

func isDelimiter(ch byte) bool {
	return strings.IndexByte(`()[]{}";`, ch) >= 0
}

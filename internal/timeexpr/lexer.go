package timeexpr

import (
	"strconv"
	"strings"
)

// TokenKind identifies a lexical token.
type TokenKind int

// Token kinds.
const (
	TokenPlus TokenKind = iota
	TokenMinus
	TokenNumber
	TokenAnchor
	TokenUnit
	TokenInvalid
)

func (k TokenKind) String() string {
	switch k {
	case TokenPlus:
		return "plus"
	case TokenMinus:
		return "minus"
	case TokenNumber:
		return "number"
	case TokenAnchor:
		return "anchor"
	case TokenUnit:
		return "unit"
	default:
		return "invalid"
	}
}

// maxDigits is the longest digit run read as one number.
const maxDigits = 9

// Token is one lexical element of an expression.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int

	Value  int64  // TokenNumber
	Anchor Anchor // TokenAnchor
	Unit   Unit   // TokenUnit
}

// keywords are tried in this order at every position.
var keywords = []struct {
	text   string
	anchor Anchor
}{
	{"sunrise", AnchorSunrise},
	{"noon", AnchorNoon},
	{"sunset", AnchorSunset},
}

// Lexer splits an expression into tokens. It stops after a unit or an
// invalid token.
type Lexer struct {
	src  string
	pos  int
	done bool
}

// NewLexer returns a Lexer over s.
func NewLexer(s string) *Lexer {
	return &Lexer{src: s}
}

// Next returns the next token. The second result is false once the input
// is exhausted or lexing has stopped.
func (l *Lexer) Next() (Token, bool) {
	if l.done || l.pos >= len(l.src) {
		l.done = true
		return Token{}, false
	}

	start := l.pos
	rest := l.src[start:]

	switch c := rest[0]; {
	case c == '+':
		l.pos++
		return Token{Kind: TokenPlus, Text: "+", Offset: start}, true
	case c == '-':
		l.pos++
		return Token{Kind: TokenMinus, Text: "-", Offset: start}, true
	case isDigit(c):
		n := 0
		for n < maxDigits && n < len(rest) && isDigit(rest[n]) {
			n++
		}
		l.pos += n
		// At most nine digits always fit an int64.
		v, _ := strconv.ParseInt(rest[:n], 10, 64)
		return Token{Kind: TokenNumber, Text: rest[:n], Offset: start, Value: v}, true
	}

	for _, kw := range keywords {
		if len(rest) >= len(kw.text) && strings.EqualFold(rest[:len(kw.text)], kw.text) {
			l.pos += len(kw.text)
			return Token{Kind: TokenAnchor, Text: rest[:len(kw.text)], Offset: start, Anchor: kw.anchor}, true
		}
	}

	// A unit must be the whole remainder.
	l.done = true
	switch {
	case strings.EqualFold(rest, "h"):
		l.pos = len(l.src)
		return Token{Kind: TokenUnit, Text: rest, Offset: start, Unit: UnitHour}, true
	case strings.EqualFold(rest, "m"):
		l.pos = len(l.src)
		return Token{Kind: TokenUnit, Text: rest, Offset: start, Unit: UnitMinute}, true
	}

	return Token{Kind: TokenInvalid, Text: rest, Offset: start}, true
}

// Tokenize returns every token of s, ending with the unit or invalid token
// that stopped lexing, if any.
func Tokenize(s string) []Token {
	l := NewLexer(s)
	var tokens []Token
	for {
		tok, ok := l.Next()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

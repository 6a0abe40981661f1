package qparser

import (
	"fmt"
	"strings"
	"unicode"
)

// Token represents a lexical token
type Token struct {
	Kind  TokenKind
	Value string
	// Pos and End are rune offsets of the token text in the input.
	Pos int
	End int
}

// TokenKind is the type of token
type TokenKind int

const (
	TokWord TokenKind = iota
	TokWildcard
	TokPhrase
	TokField
	TokPlus
	TokMinus
	TokAnd
	TokOr
	TokNot
	TokLParen
	TokRParen
	TokEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokWord:
		return "Word"
	case TokWildcard:
		return "Wildcard"
	case TokPhrase:
		return "Phrase"
	case TokField:
		return "Field"
	case TokPlus:
		return "Plus"
	case TokMinus:
		return "Minus"
	case TokAnd:
		return "And"
	case TokOr:
		return "Or"
	case TokNot:
		return "Not"
	case TokLParen:
		return "LParen"
	case TokRParen:
		return "RParen"
	case TokEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

func (t Token) String() string {
	if t.Value == "" {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Value)
}

// SyntaxError reports a malformed query string.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("query syntax error at %d: %s", e.Pos, e.Msg)
}

// Lexer tokenizes a query string
type Lexer struct {
	input []rune
	pos   int
}

// NewLexer creates a new lexer for the input string
func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// Lex tokenizes the entire input
func Lex(input string) ([]Token, error) {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok, err := lexer.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			break
		}
	}

	return tokens, nil
}

// Next returns the next token
func (l *Lexer) Next() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			return Token{Kind: TokEOF, Pos: l.pos, End: l.pos}, nil
		}
		// stray separators between tokens
		if ch := l.input[l.pos]; ch == ':' || ((ch == '+' || ch == '-') && !l.startsWord(1)) {
			l.pos++
			continue
		}
		break
	}

	start := l.pos
	switch ch := l.input[l.pos]; ch {
	case '(':
		l.pos++
		return Token{Kind: TokLParen, Pos: start, End: l.pos}, nil
	case ')':
		l.pos++
		return Token{Kind: TokRParen, Pos: start, End: l.pos}, nil
	case '+':
		l.pos++
		return Token{Kind: TokPlus, Pos: start, End: l.pos}, nil
	case '-':
		l.pos++
		return Token{Kind: TokMinus, Pos: start, End: l.pos}, nil
	case '"':
		return l.scanPhrase()
	}
	return l.scanWord(), nil
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

// startsWord reports whether a word, phrase or group begins offset runes
// ahead.
func (l *Lexer) startsWord(offset int) bool {
	pos := l.pos + offset
	if pos >= len(l.input) {
		return false
	}
	ch := l.input[pos]
	return !unicode.IsSpace(ch) && ch != ')' && ch != ':'
}

func (l *Lexer) scanPhrase() (Token, error) {
	start := l.pos
	l.pos++ // consume opening quote
	var sb strings.Builder

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '"' {
			l.pos++ // consume closing quote
			return Token{Kind: TokPhrase, Value: sb.String(), Pos: start + 1, End: l.pos - 1}, nil
		}
		if ch == '\\' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '"' {
			l.pos++
			ch = '"'
		}
		sb.WriteRune(ch)
		l.pos++
	}

	return Token{}, &SyntaxError{Pos: start, Msg: "unterminated phrase"}
}

func (l *Lexer) scanWord() Token {
	start := l.pos
	for l.pos < len(l.input) && isWordChar(l.input[l.pos]) {
		l.pos++
	}
	value := string(l.input[start:l.pos])

	// field qualifier: the colon must follow the name directly
	if l.pos < len(l.input) && l.input[l.pos] == ':' && value != "" {
		l.pos++
		return Token{Kind: TokField, Value: value, Pos: start, End: l.pos - 1}
	}

	// Check for keywords
	switch value {
	case "AND":
		return Token{Kind: TokAnd, Pos: start, End: l.pos}
	case "OR":
		return Token{Kind: TokOr, Pos: start, End: l.pos}
	case "NOT":
		return Token{Kind: TokNot, Pos: start, End: l.pos}
	}

	if trimmed := strings.TrimRight(value, "*"); trimmed != value {
		return Token{Kind: TokWildcard, Value: trimmed, Pos: start, End: start + len([]rune(trimmed))}
	}
	return Token{Kind: TokWord, Value: value, Pos: start, End: l.pos}
}

func isWordChar(ch rune) bool {
	switch ch {
	case '(', ')', '"', ':':
		return false
	}
	return !unicode.IsSpace(ch)
}

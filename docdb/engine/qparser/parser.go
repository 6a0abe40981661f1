// Package qparser turns user query strings into engine queries: words,
// quoted phrases, trailing wildcards, field qualifiers, +required and
// -excluded terms, AND/OR/NOT with parentheses, and an implicit default
// operator between adjacent terms.
package qparser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/textutil"
)

// Operator combines adjacent terms that have no explicit operator.
type Operator int

const (
	OpOr Operator = iota
	OpAnd
)

func (o Operator) String() string {
	if o == OpAnd {
		return "and"
	}
	return "or"
}

// ParseOperator accepts "and" or "or" in any case; "" selects OpOr.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "or":
		return OpOr, nil
	case "and":
		return OpAnd, nil
	}
	return OpOr, fmt.Errorf("unknown default operator %q", s)
}

type field struct {
	prefixes []string
	boolean  bool
}

// Parser holds the prefix registry and the text hooks. Configure it before
// use; Parse itself keeps no state and may run concurrently.
type Parser struct {
	DefaultOp Operator
	// Tokenize splits a word or phrase into terms. Defaults to
	// textutil.Tokenize.
	Tokenize func(string) []string
	// Stop reports whether a term is a stopword. Nil keeps every word.
	Stop func(string) bool
	// NormalizeField maps a qualifier to its registry key. Defaults to
	// strings.ToLower.
	NormalizeField func(string) string

	fields map[string]*field
}

func New() *Parser {
	return &Parser{fields: make(map[string]*field)}
}

// AddPrefix maps a free-text field to a term prefix. A field can map to
// several prefixes; its terms are then searched under each of them. The
// empty field name holds the prefixes of unqualified words.
func (p *Parser) AddPrefix(name, prefix string) error {
	return p.add(name, prefix, false)
}

// AddBooleanPrefix maps a filter field to a term prefix. Its terms match
// without weight.
func (p *Parser) AddBooleanPrefix(name, prefix string) error {
	return p.add(name, prefix, true)
}

func (p *Parser) add(name, prefix string, boolean bool) error {
	key := p.fieldKey(name)
	f, ok := p.fields[key]
	if !ok {
		f = &field{boolean: boolean}
		p.fields[key] = f
	}
	if f.boolean != boolean {
		return fmt.Errorf("field %q cannot be both free-text and boolean", name)
	}
	for _, existing := range f.prefixes {
		if existing == prefix {
			return nil
		}
	}
	f.prefixes = append(f.prefixes, prefix)
	return nil
}

// Fields returns the registered field names, sorted.
func (p *Parser) Fields() []string {
	out := make([]string, 0, len(p.fields))
	for name := range p.fields {
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (p *Parser) fieldKey(name string) string {
	if name == "" {
		return ""
	}
	if p.NormalizeField != nil {
		return p.NormalizeField(name)
	}
	return strings.ToLower(name)
}

func (p *Parser) tokenize(s string) []string {
	if p.Tokenize != nil {
		return p.Tokenize(s)
	}
	return textutil.Tokenize(s)
}

// Word is a free-text word of the query and its rune span in the input.
type Word struct {
	Text  string
	Start int
	End   int
}

// Result is a parsed query.
type Result struct {
	// Query is nil when the input holds no searchable term.
	Query *engine.Query
	// Stopped lists the stopwords left out of the query.
	Stopped []string
	// Words lists the unqualified and free-text qualified words, in input
	// order, for spelling correction.
	Words []Word
}

// Parse parses a query string
func (p *Parser) Parse(input string) (*Result, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}

	ps := &parser{cfg: p, tokens: tokens, res: &Result{}}
	if ps.match(TokEOF) {
		return ps.res, nil
	}
	q, err := ps.parseQuery()
	if err != nil {
		return nil, err
	}
	if !ps.match(TokEOF) {
		return nil, ps.errorf("unexpected %v", ps.current())
	}
	ps.res.Query = q
	return ps.res, nil
}

type parser struct {
	cfg    *Parser
	tokens []Token
	pos    int
	res    *Result
	// field is the qualifier of the enclosing field:(group), nil outside.
	field *field
}

func (p *parser) parseQuery() (*engine.Query, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (*engine.Query, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.match(TokOr) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = engine.Or(left, right)
	}

	return left, nil
}

// parseAnd handles AND, NOT and AND NOT, which bind tighter than OR and
// associate to the left.
func (p *parser) parseAnd() (*engine.Query, error) {
	var left *engine.Query
	if p.match(TokNot) {
		p.advance()
		right, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		left = engine.AndNot(engine.MatchAll(), right)
	} else {
		var err error
		if left, err = p.parseSeq(); err != nil {
			return nil, err
		}
	}

	for p.match(TokAnd) || p.match(TokNot) {
		negate := p.match(TokNot)
		p.advance()
		if !negate && p.match(TokNot) {
			negate = true
			p.advance()
		}
		right, err := p.parseSeq()
		if err != nil {
			return nil, err
		}
		if negate {
			left = engine.AndNot(left, right)
		} else {
			left = engine.And(left, right)
		}
	}

	return left, nil
}

// parseSeq parses adjacent terms joined by the default operator, with
// +required and -excluded terms.
func (p *parser) parseSeq() (*engine.Query, error) {
	var required, optional, excluded []*engine.Query
	items := 0
	for !p.atSeqEnd() {
		sign := TokEOF
		if p.match(TokPlus) || p.match(TokMinus) {
			sign = p.current().Kind
			p.advance()
		}
		q, err := p.parsePrimary(sign == TokEOF)
		if err != nil {
			return nil, err
		}
		items++
		switch sign {
		case TokPlus:
			required = append(required, q)
		case TokMinus:
			excluded = append(excluded, q)
		default:
			optional = append(optional, q)
		}
	}
	if items == 0 {
		if p.match(TokEOF) {
			return nil, p.errorf("unexpected end of query")
		}
		return nil, p.errorf("expected term, got %v", p.current())
	}

	var opt *engine.Query
	if p.cfg.DefaultOp == OpAnd {
		opt = engine.And(optional...)
	} else {
		opt = engine.Or(optional...)
	}
	excl := engine.Or(excluded...)

	var q *engine.Query
	switch req := engine.And(required...); {
	case req != nil:
		q = engine.AndMaybe(req, opt)
	case opt != nil:
		q = opt
	case excl != nil:
		q = engine.MatchAll()
	}
	return engine.AndNot(q, excl), nil
}

func (p *parser) atSeqEnd() bool {
	switch p.current().Kind {
	case TokEOF, TokRParen, TokAnd, TokOr, TokNot:
		return true
	}
	return false
}

func (p *parser) parsePrimary(stoppable bool) (*engine.Query, error) {
	tok := p.current()
	switch tok.Kind {
	case TokLParen:
		p.advance()
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(tok); err != nil {
			return nil, err
		}
		return q, nil

	case TokField:
		p.advance()
		f := p.cfg.fields[p.cfg.fieldKey(tok.Value)]
		if f == nil {
			// not a known qualifier: the name is an ordinary word
			return p.word(p.field, tok, stoppable), nil
		}
		return p.parseFieldValue(tok, f)

	case TokWord, TokWildcard:
		p.advance()
		return p.word(p.field, tok, stoppable), nil

	case TokPhrase:
		p.advance()
		return p.phrase(p.field, tok.Value), nil

	case TokEOF:
		return nil, p.errorf("unexpected end of query")
	}
	return nil, p.errorf("expected term, got %v", tok)
}

func (p *parser) parseFieldValue(name Token, f *field) (*engine.Query, error) {
	tok := p.current()
	switch tok.Kind {
	case TokWord, TokWildcard:
		p.advance()
		return p.word(f, tok, false), nil
	case TokPhrase:
		p.advance()
		return p.phrase(f, tok.Value), nil
	case TokLParen:
		p.advance()
		saved := p.field
		p.field = f
		q, err := p.parseQuery()
		p.field = saved
		if err != nil {
			return nil, err
		}
		if err := p.expectRParen(tok); err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, p.errorf("expected value after '%s:'", name.Value)
}

func (p *parser) expectRParen(open Token) error {
	if !p.match(TokRParen) {
		return &SyntaxError{Pos: open.Pos, Msg: "missing closing parenthesis"}
	}
	p.advance()
	return nil
}

// prefixes returns the term prefixes of f, nil meaning unqualified text.
func (p *parser) prefixes(f *field) ([]string, bool) {
	if f == nil {
		f = p.cfg.fields[""]
	}
	if f == nil || len(f.prefixes) == 0 {
		return []string{""}, false
	}
	return f.prefixes, f.boolean
}

func (p *parser) word(f *field, tok Token, stoppable bool) *engine.Query {
	terms := p.cfg.tokenize(tok.Value)
	if len(terms) == 0 {
		return nil
	}
	prefixes, boolean := p.prefixes(f)
	wildcard := tok.Kind == TokWildcard

	if !boolean && !wildcard {
		p.res.Words = append(p.res.Words, Word{Text: tok.Value, Start: tok.Pos, End: tok.End})
	}
	if stoppable && !wildcard && len(terms) == 1 && p.cfg.Stop != nil && p.cfg.Stop(terms[0]) {
		p.res.Stopped = append(p.res.Stopped, terms[0])
		return nil
	}

	alternatives := make([]*engine.Query, 0, len(prefixes))
	for _, prefix := range prefixes {
		var q *engine.Query
		switch {
		case wildcard:
			last := len(terms) - 1
			parts := make([]*engine.Query, 0, len(terms))
			for _, t := range terms[:last] {
				parts = append(parts, engine.Term(prefix+t))
			}
			parts = append(parts, engine.Wildcard(prefix+terms[last]))
			q = engine.And(parts...)
		case len(terms) == 1:
			q = engine.Term(prefix + terms[0])
		default:
			q = positional(prefix, terms)
		}
		alternatives = append(alternatives, q)
	}
	return weighted(engine.Or(alternatives...), boolean)
}

func (p *parser) phrase(f *field, text string) *engine.Query {
	terms := p.cfg.tokenize(text)
	if len(terms) == 0 {
		return nil
	}
	prefixes, boolean := p.prefixes(f)
	alternatives := make([]*engine.Query, 0, len(prefixes))
	for _, prefix := range prefixes {
		alternatives = append(alternatives, positional(prefix, terms))
	}
	return weighted(engine.Or(alternatives...), boolean)
}

func positional(prefix string, terms []string) *engine.Query {
	subs := make([]*engine.Query, len(terms))
	for i, t := range terms {
		subs[i] = engine.Term(prefix + t)
	}
	return engine.Phrase(0, subs...)
}

func weighted(q *engine.Query, boolean bool) *engine.Query {
	if boolean {
		return engine.ScaleWeight(q, 0)
	}
	return q
}

func (p *parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Kind: TokEOF}
}

func (p *parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *parser) match(kind TokenKind) bool {
	return p.current().Kind == kind
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.current().Pos, Msg: fmt.Sprintf(format, args...)}
}

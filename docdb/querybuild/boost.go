package querybuild

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/ministore/docdb/docdb/encoder"
	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/textutil"
)

// BoostTerm is one weighted term of a boost expression.
type BoostTerm struct {
	Index  string
	Factor float64
	Term   string
}

// ParseBoost reads a boost expression: clauses "index:factor*term" or
// "index:(factor*term factor*term ...)" separated by spaces. A term in
// brackets is a whole value.
func ParseBoost(expr string) ([]BoostTerm, error) {
	var out []BoostTerm
	s := strings.TrimSpace(expr)
	for s != "" {
		colon := strings.IndexByte(s, ':')
		if colon <= 0 {
			return nil, errs.Newf(errs.ErrBoostSyntax, "boost %q: expected index:factor*term", expr)
		}
		index := strings.TrimSpace(s[:colon])
		if strings.IndexFunc(index, unicode.IsSpace) >= 0 {
			return nil, errs.Newf(errs.ErrBoostSyntax, "boost %q: bad index name %q", expr, index)
		}
		s = strings.TrimLeft(s[colon+1:], " \t")

		var body string
		if strings.HasPrefix(s, "(") {
			end := strings.IndexByte(s, ')')
			if end < 0 {
				return nil, errs.Newf(errs.ErrBoostSyntax, "boost %q: missing closing parenthesis", expr)
			}
			body, s = s[1:end], s[end+1:]
		} else {
			body, s = cutItem(s)
		}

		for rest := strings.TrimSpace(body); rest != ""; rest = strings.TrimSpace(rest) {
			var item string
			item, rest = cutItem(rest)
			factor, term, ok := strings.Cut(item, "*")
			if !ok || term == "" {
				return nil, errs.Newf(errs.ErrBoostSyntax, "boost %q: expected factor*term, got %q", expr, item)
			}
			f, err := strconv.ParseFloat(factor, 64)
			if err != nil || f < 0 {
				return nil, errs.Newf(errs.ErrBoostSyntax, "boost %q: bad factor %q", expr, factor)
			}
			out = append(out, BoostTerm{Index: index, Factor: f, Term: term})
		}
		s = strings.TrimSpace(s)
	}
	if len(out) == 0 {
		return nil, errs.Newf(errs.ErrBoostSyntax, "boost %q: empty expression", expr)
	}
	return out, nil
}

// cutItem splits the first space separated item off s; brackets protect
// their spaces.
func cutItem(s string) (item, rest string) {
	depth := 0
	for i, r := range s {
		switch {
		case r == '[':
			depth++
		case r == ']' && depth > 0:
			depth--
		case unicode.IsSpace(r) && depth == 0:
			return s[:i], s[i:]
		}
	}
	return s, ""
}

// ApplyBoost favors the documents matching the boost expression without
// requiring them: q AND_MAYBE (weighted terms OR'ed).
func (b *Builder) ApplyBoost(q *engine.Query, expr string) (*engine.Query, error) {
	terms, err := ParseBoost(expr)
	if err != nil {
		return nil, err
	}
	var boosts []*engine.Query
	for _, bt := range terms {
		t, ok := b.targets[textutil.NormalizeName(bt.Index)]
		if !ok {
			return nil, errs.Newf(errs.ErrUnknownIndex, "boost: unknown index %q", bt.Index).WithField(bt.Index)
		}
		var alternatives []*engine.Query
		for _, prefix := range t.prefixes {
			if tq := boostTerm(prefix, bt.Term); tq != nil {
				alternatives = append(alternatives, tq)
			}
		}
		if alt := engine.Or(alternatives...); alt != nil {
			boosts = append(boosts, engine.ScaleWeight(alt, bt.Factor))
		}
	}
	boost := engine.Or(boosts...)
	if q == nil || boost == nil {
		return q, nil
	}
	return engine.AndMaybe(q, boost), nil
}

func boostTerm(prefix, text string) *engine.Query {
	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
		tokens := textutil.Tokenize(text[1 : len(text)-1])
		if v := encoder.ValueTerm(tokens, encoder.MaxTermLength-len(prefix)); v != "" {
			return engine.Term(prefix + v)
		}
		return nil
	}
	tokens := textutil.Tokenize(text)
	switch len(tokens) {
	case 0:
		return nil
	case 1:
		return engine.Term(prefix + tokens[0])
	}
	subs := make([]*engine.Query, len(tokens))
	for i, tok := range tokens {
		subs[i] = engine.Term(prefix + tok)
	}
	return engine.Phrase(0, subs...)
}

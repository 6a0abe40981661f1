package engine

import (
	"strconv"
	"strings"
)

// Op is the operator of a query node.
type Op int

const (
	OpTerm Op = iota
	OpAnd
	OpOr
	OpAndNot
	OpAndMaybe
	OpFilter
	OpScaleWeight
	OpPhrase
	OpNear
	OpWildcard
	OpMatchAll
	OpMatchNothing
)

var opNames = map[Op]string{
	OpAnd:      "AND",
	OpOr:       "OR",
	OpAndNot:   "AND_NOT",
	OpAndMaybe: "AND_MAYBE",
	OpFilter:   "FILTER",
	OpPhrase:   "PHRASE",
	OpNear:     "NEAR",
}

// Query is an immutable query tree. A nil *Query matches nothing and is
// dropped by the combinators.
type Query struct {
	op     Op
	term   string
	wqf    int
	subs   []*Query
	factor float64
	window int
}

var (
	matchAll     = &Query{op: OpMatchAll}
	matchNothing = &Query{op: OpMatchNothing}
)

// MatchAll matches every document with zero weight.
func MatchAll() *Query { return matchAll }

// MatchNothing matches no document.
func MatchNothing() *Query { return matchNothing }

// Term matches the documents indexing term.
func Term(term string) *Query { return &Query{op: OpTerm, term: term, wqf: 1} }

// TermWQF is Term with a within-query frequency.
func TermWQF(term string, wqf int) *Query {
	if wqf < 1 {
		wqf = 1
	}
	return &Query{op: OpTerm, term: term, wqf: wqf}
}

// Wildcard matches every term starting with prefix.
func Wildcard(prefix string) *Query { return &Query{op: OpWildcard, term: prefix} }

func combine(op Op, qs []*Query) *Query {
	subs := make([]*Query, 0, len(qs))
	for _, q := range qs {
		if q == nil {
			continue
		}
		// flatten nested nodes of the same associative operator
		if q.op == op && (op == OpAnd || op == OpOr) {
			subs = append(subs, q.subs...)
			continue
		}
		subs = append(subs, q)
	}
	switch len(subs) {
	case 0:
		return nil
	case 1:
		return subs[0]
	}
	return &Query{op: op, subs: subs}
}

// And matches documents matching every operand.
func And(qs ...*Query) *Query { return combine(OpAnd, qs) }

// Or matches documents matching any operand.
func Or(qs ...*Query) *Query { return combine(OpOr, qs) }

// AndNot matches the documents of left not matching right.
func AndNot(left, right *Query) *Query {
	if left == nil || right == nil {
		return left
	}
	return &Query{op: OpAndNot, subs: []*Query{left, right}}
}

// AndMaybe matches the documents of left; documents also matching right
// get the extra weight.
func AndMaybe(left, right *Query) *Query {
	if left == nil || right == nil {
		return left
	}
	return &Query{op: OpAndMaybe, subs: []*Query{left, right}}
}

// Filter restricts left to the documents matching filter without
// contributing weight.
func Filter(left, filter *Query) *Query {
	if left == nil || filter == nil {
		return left
	}
	return &Query{op: OpFilter, subs: []*Query{left, filter}}
}

// ScaleWeight multiplies the weights of q by factor.
func ScaleWeight(q *Query, factor float64) *Query {
	if q == nil {
		return nil
	}
	if factor == 1 {
		return q
	}
	return &Query{op: OpScaleWeight, subs: []*Query{q}, factor: factor}
}

// Phrase matches the terms in order within window positions. A window of 0
// means the number of terms, that is strict adjacency.
func Phrase(window int, terms ...*Query) *Query { return positional(OpPhrase, window, terms) }

// Near matches the terms in any order within window positions.
func Near(window int, terms ...*Query) *Query { return positional(OpNear, window, terms) }

func positional(op Op, window int, terms []*Query) *Query {
	subs := make([]*Query, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			subs = append(subs, t)
		}
	}
	switch len(subs) {
	case 0:
		return nil
	case 1:
		return subs[0]
	}
	if window < len(subs) {
		window = len(subs)
	}
	return &Query{op: op, subs: subs, window: window}
}

func (q *Query) Op() Op { return q.op }

// TermName returns the term of a term node or the prefix of a wildcard.
func (q *Query) TermName() string { return q.term }

func (q *Query) WQF() int { return q.wqf }

func (q *Query) Subqueries() []*Query { return q.subs }

func (q *Query) Factor() float64 { return q.factor }

func (q *Query) Window() int { return q.window }

// IsMatchAll reports whether q is the match-everything query.
func (q *Query) IsMatchAll() bool { return q != nil && q.op == OpMatchAll }

// Equal reports structural equality.
func (q *Query) Equal(o *Query) bool {
	if q == nil || o == nil {
		return q == o
	}
	if q.op != o.op || q.term != o.term || q.wqf != o.wqf || q.factor != o.factor ||
		q.window != o.window || len(q.subs) != len(o.subs) {
		return false
	}
	for i := range q.subs {
		if !q.subs[i].Equal(o.subs[i]) {
			return false
		}
	}
	return true
}

// Terms returns the distinct leaf terms in query order. Wildcards are not
// expanded.
func (q *Query) Terms() []string {
	var out []string
	seen := map[string]bool{}
	q.walk(func(n *Query) {
		if n.op == OpTerm && !seen[n.term] {
			seen[n.term] = true
			out = append(out, n.term)
		}
	})
	return out
}

// Wildcards returns the wildcard prefixes in query order.
func (q *Query) Wildcards() []string {
	var out []string
	q.walk(func(n *Query) {
		if n.op == OpWildcard {
			out = append(out, n.term)
		}
	})
	return out
}

func (q *Query) walk(fn func(*Query)) {
	if q == nil {
		return
	}
	fn(q)
	for _, s := range q.subs {
		s.walk(fn)
	}
}

// Rewrite rebuilds q bottom-up, replacing every node by fn(node). Returning
// nil drops the node.
func (q *Query) Rewrite(fn func(*Query) *Query) *Query {
	if q == nil {
		return nil
	}
	if len(q.subs) == 0 {
		return fn(q)
	}
	subs := make([]*Query, 0, len(q.subs))
	for _, s := range q.subs {
		subs = append(subs, s.Rewrite(fn))
	}
	var rebuilt *Query
	switch q.op {
	case OpAnd:
		rebuilt = And(subs...)
	case OpOr:
		rebuilt = Or(subs...)
	case OpAndNot:
		rebuilt = AndNot(subs[0], subs[1])
	case OpAndMaybe:
		rebuilt = AndMaybe(subs[0], subs[1])
	case OpFilter:
		rebuilt = Filter(subs[0], subs[1])
	case OpScaleWeight:
		rebuilt = ScaleWeight(subs[0], q.factor)
	case OpPhrase:
		rebuilt = Phrase(q.window, subs...)
	case OpNear:
		rebuilt = Near(q.window, subs...)
	}
	if rebuilt == nil {
		return nil
	}
	return fn(rebuilt)
}

// String renders the query the way it is logged and compared in tests,
// e.g. Query((1:cat AND 1:dog)).
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString("Query(")
	if q != nil {
		q.describe(&b)
	}
	b.WriteString(")")
	return b.String()
}

func (q *Query) describe(b *strings.Builder) {
	switch q.op {
	case OpTerm:
		b.WriteString(q.term)
		if q.wqf > 1 {
			b.WriteString("#")
			b.WriteString(strconv.Itoa(q.wqf))
		}
	case OpWildcard:
		b.WriteString("WILDCARD ")
		b.WriteString(q.term)
	case OpMatchAll:
		b.WriteString("<alldocuments>")
	case OpMatchNothing:
	case OpScaleWeight:
		b.WriteString(strconv.FormatFloat(q.factor, 'g', -1, 64))
		b.WriteString(" * ")
		q.subs[0].describe(b)
	default:
		sep := " " + opNames[q.op] + " "
		if q.op == OpPhrase || q.op == OpNear {
			sep = " " + opNames[q.op] + " " + strconv.Itoa(q.window) + " "
		}
		b.WriteString("(")
		for i, s := range q.subs {
			if i > 0 {
				b.WriteString(sep)
			}
			s.describe(b)
		}
		b.WriteString(")")
	}
}

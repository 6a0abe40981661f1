// Package querybuild turns search options into engine queries: equations
// parsed with one qualifier per index and alias, per index criteria,
// filters, document sets, defaults, boosts and the sort order.
package querybuild

import (
	"errors"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/ministore/docdb/docdb/encoder"
	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/engine/qparser"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/schema"
	"github.com/ministore/docdb/docdb/textutil"
)

// Options are the query side of the search options. Maps are keyed by index
// or alias name; Auto keys may carry a "+" (required) or "-" (excluded)
// sigil.
type Options struct {
	Equation        []string
	Auto            map[string][]string
	Filter          map[string][]string
	DocSet          map[string][]string
	DefaultEquation []string
	DefaultFilter   map[string][]string
	// DefaultOp joins adjacent terms: "or" (default) or "and".
	DefaultOp string
	Boost     string
	// Sort is a sort spec or "auto"; empty means "auto".
	Sort string
	// DefaultSort is the order "auto" picks when the query holds no
	// probabilistic term; empty means "-".
	DefaultSort string
}

// Equation is a parsed equation: its preprocessed text and the free-text
// words found in it.
type Equation struct {
	Text  string
	Words []qparser.Word
}

// Result is a built query.
type Result struct {
	Query *engine.Query
	Sort  engine.SortOrder
	// SortSpec is the spec the order was parsed from, "auto" resolved.
	SortSpec  string
	Equations []Equation
	Stopped   []string
	// Probabilistic reports whether the query holds a term of a
	// probabilistic index.
	Probabilistic bool
	Boosted       bool
}

// target is an index or alias as seen by the query side.
type target struct {
	name     string
	prefixes []string
	boolean  bool
	// values is set when a field of the target indexes whole values
	values bool
	parser *qparser.Parser
}

// Builder builds queries for one compiled schema. It is safe for
// concurrent use.
type Builder struct {
	schema        *schema.Schema
	parser        *qparser.Parser
	targets       map[string]*target
	probabilistic map[string]bool
}

// New prepares a builder for s, compiling it if needed.
func New(s *schema.Schema) (*Builder, error) {
	if !s.Compiled() {
		if err := s.Compile(); err != nil {
			return nil, err
		}
	}
	b := &Builder{
		schema:        s,
		targets:       make(map[string]*target),
		probabilistic: make(map[string]bool),
	}

	var defaults []string
	for _, ix := range s.AllIndices() {
		prefix := encoder.IndexPrefix(ix.ID)
		t := &target{name: ix.Name, prefixes: []string{prefix}, boolean: ix.Type == schema.IndexBoolean}
		for _, f := range ix.Fields() {
			t.values = t.values || f.Values
		}
		if !t.boolean {
			b.probabilistic[prefix] = true
			defaults = append(defaults, prefix)
		}
		b.targets[textutil.NormalizeName(ix.Name)] = t
	}
	for _, a := range s.AllAliases() {
		key := textutil.NormalizeName(a.Name)
		if _, taken := b.targets[key]; taken {
			continue
		}
		t := &target{name: a.Name, boolean: a.Type == schema.IndexBoolean}
		for _, ai := range a.Indices() {
			ix := s.IndexByID(ai.ID)
			if ix == nil {
				continue
			}
			t.prefixes = append(t.prefixes, encoder.IndexPrefix(ix.ID))
			t.values = t.values || b.targets[textutil.NormalizeName(ix.Name)].values
		}
		b.targets[key] = t
	}

	var err error
	if b.parser, err = b.newParser(defaults, false); err != nil {
		return nil, err
	}
	for _, t := range b.targets {
		if t.parser, err = b.newParser(t.prefixes, t.boolean); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Builder) Schema() *schema.Schema { return b.schema }

// newParser registers every index and alias as a qualifier; unqualified
// words go to defaults.
func (b *Builder) newParser(defaults []string, boolean bool) (*qparser.Parser, error) {
	p := qparser.New()
	p.NormalizeField = textutil.NormalizeName
	if !b.schema.IndexStopwords {
		if sw := textutil.ParseStopwords(b.schema.Stopwords); len(sw) > 0 {
			p.Stop = sw.Contains
		}
	}
	for _, prefix := range defaults {
		var err error
		if boolean {
			err = p.AddBooleanPrefix("", prefix)
		} else {
			err = p.AddPrefix("", prefix)
		}
		if err != nil {
			return nil, err
		}
	}
	names := make([]string, 0, len(b.targets))
	for name := range b.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := b.targets[name]
		for _, prefix := range t.prefixes {
			var err error
			if t.boolean {
				err = p.AddBooleanPrefix(name, prefix)
			} else {
				err = p.AddPrefix(name, prefix)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (b *Builder) target(name string) (*target, error) {
	t, ok := b.targets[textutil.NormalizeName(name)]
	if !ok {
		return nil, errs.Newf(errs.ErrUnknownIndex, "unknown index or alias %q", name).WithField(name)
	}
	return t, nil
}

// Build combines, in order: the equations, the per index criteria, the
// filters, the document set, the default equation when nothing else gave
// a query, the default filter and, when results are ranked by relevance,
// the boost.
func (b *Builder) Build(opts Options) (*Result, error) {
	op, err := qparser.ParseOperator(opts.DefaultOp)
	if err != nil {
		return nil, errs.Wrap(errs.ErrQuerySyntax, "default operator", err)
	}
	res := &Result{}

	// 1. Equations, combined with AND
	main, err := b.equations(res, b.parser, op, opts.Equation)
	if err != nil {
		return nil, err
	}

	// 2. Per index criteria
	if main, err = b.auto(main, op, opts.Auto); err != nil {
		return nil, err
	}

	// 3. Filters and document set
	filter, err := b.filters(op, opts.Filter)
	if err != nil {
		return nil, err
	}
	docset, err := b.docSet(opts.DocSet)
	if err != nil {
		return nil, err
	}
	filter = engine.And(filter, docset)
	if main == nil && filter != nil {
		main = engine.MatchAll()
	}
	main = applyFilter(main, filter)

	// 4. Default equation
	if main == nil {
		if main, err = b.equations(res, b.parser, op, opts.DefaultEquation); err != nil {
			return nil, err
		}
	}
	if main == nil {
		return nil, errs.New(errs.ErrNoSearchCriteria, "no search criteria")
	}

	// 5. Default filter
	defaultFilter, err := b.filters(op, opts.DefaultFilter)
	if err != nil {
		return nil, err
	}
	main = applyFilter(main, defaultFilter)

	// 6. Sort order
	res.Probabilistic = b.hasProbabilistic(main)
	if res.SortSpec, res.Sort, err = b.resolveSort(opts.Sort, opts.DefaultSort, res.Probabilistic); err != nil {
		return nil, err
	}

	// 7. Boost
	if strings.TrimSpace(opts.Boost) != "" && res.Sort.UsesRelevance() {
		if main, err = b.ApplyBoost(main, opts.Boost); err != nil {
			return nil, err
		}
		res.Boosted = true
	}

	res.Query = main
	return res, nil
}

func (b *Builder) equations(res *Result, p *qparser.Parser, op qparser.Operator, equations []string) (*engine.Query, error) {
	var out *engine.Query
	for _, eq := range equations {
		if strings.TrimSpace(eq) == "" {
			continue
		}
		q, err := b.parse(res, p, op, eq)
		if err != nil {
			return nil, err
		}
		out = engine.And(out, q)
	}
	return out, nil
}

func (b *Builder) parse(res *Result, p *qparser.Parser, op qparser.Operator, equation string) (*engine.Query, error) {
	prep := Preprocess(equation)
	cfg := *p
	cfg.DefaultOp = op
	parsed, err := cfg.Parse(prep.Text)
	if err != nil {
		var syn *qparser.SyntaxError
		if errors.As(err, &syn) {
			return nil, errs.Wrap(errs.ErrQuerySyntax, "equation "+strconv.Quote(equation), err)
		}
		return nil, err
	}
	if res != nil {
		res.Equations = append(res.Equations, Equation{Text: prep.Text, Words: parsed.Words})
		res.Stopped = append(res.Stopped, parsed.Stopped...)
	}
	return prep.Restore(parsed.Query), nil
}

// auto applies the per index criteria: "+name" is required, "-name" is
// excluded, and a plain name is AND'ed for a boolean target and OR'ed for
// a probabilistic one.
func (b *Builder) auto(main *engine.Query, op qparser.Operator, auto map[string][]string) (*engine.Query, error) {
	var hate []*engine.Query
	for _, key := range sortedKeys(auto) {
		name := strings.TrimSpace(key)
		sigil := byte(0)
		if name != "" && (name[0] == '+' || name[0] == '-') {
			sigil, name = name[0], name[1:]
		}
		t, err := b.target(name)
		if err != nil {
			return nil, err
		}
		crit, err := b.values(t, op, auto[key])
		if err != nil {
			return nil, err
		}
		if crit == nil {
			continue
		}
		switch {
		case sigil == '+':
			main = engine.And(main, crit)
		case sigil == '-':
			hate = append(hate, crit)
		case t.boolean:
			main = engine.And(main, crit)
		default:
			main = engine.Or(main, crit)
		}
	}
	if len(hate) > 0 {
		if main == nil {
			main = engine.MatchAll()
		}
		main = engine.AndNot(main, engine.Or(hate...))
	}
	return main, nil
}

// values builds the OR of the values given for a target. Boolean targets
// indexing whole values match each value exactly ("science fiction*"
// matches the values starting with those words); other values are parsed
// as equations on the target.
func (b *Builder) values(t *target, op qparser.Operator, values []string) (*engine.Query, error) {
	var alternatives []*engine.Query
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		var q *engine.Query
		switch {
		case strings.HasPrefix(v, "__"):
			q = t.exact(func(prefix string) *engine.Query { return engine.Term(prefix + v) })
		case t.boolean && t.values:
			q = t.exact(func(prefix string) *engine.Query { return valueQuery(prefix, v) })
		default:
			var err error
			if q, err = b.parse(nil, t.parser, op, v); err != nil {
				return nil, err
			}
		}
		alternatives = append(alternatives, q)
	}
	return engine.Or(alternatives...), nil
}

func (t *target) exact(term func(prefix string) *engine.Query) *engine.Query {
	var qs []*engine.Query
	for _, prefix := range t.prefixes {
		qs = append(qs, term(prefix))
	}
	q := engine.Or(qs...)
	if t.boolean {
		return engine.ScaleWeight(q, 0)
	}
	return q
}

// valueQuery matches a whole value, or the values starting with it when it
// ends with "*".
func valueQuery(prefix, value string) *engine.Query {
	budget := encoder.MaxTermLength - len(prefix)
	if stem, ok := strings.CutSuffix(value, "*"); ok {
		return engine.Wildcard(prefix + encoder.ValueStem(textutil.Tokenize(stem), budget))
	}
	term := encoder.ValueTerm(textutil.Tokenize(value), budget)
	if term == "" {
		return nil
	}
	return engine.Term(prefix + term)
}

func (b *Builder) filters(op qparser.Operator, filters map[string][]string) (*engine.Query, error) {
	var out *engine.Query
	for _, name := range sortedKeys(filters) {
		t, err := b.target(name)
		if err != nil {
			return nil, err
		}
		q, err := b.values(t, op, filters[name])
		if err != nil {
			return nil, err
		}
		out = engine.And(out, q)
	}
	return out, nil
}

// docSet restricts the search to the documents holding one of the listed
// values, matched exactly.
func (b *Builder) docSet(set map[string][]string) (*engine.Query, error) {
	var alternatives []*engine.Query
	for _, name := range sortedKeys(set) {
		t, err := b.target(name)
		if err != nil {
			return nil, err
		}
		for _, v := range set[name] {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			alternatives = append(alternatives, t.exact(func(prefix string) *engine.Query {
				if t.values {
					return valueQuery(prefix, v)
				}
				tokens := textutil.Tokenize(v)
				if len(tokens) != 1 {
					return nil
				}
				return engine.Term(prefix + tokens[0])
			}))
		}
	}
	return engine.Or(alternatives...), nil
}

// applyFilter restricts q to filter. Filtering every document gives the
// filter itself, without weight.
func applyFilter(q, filter *engine.Query) *engine.Query {
	if filter == nil {
		return q
	}
	if q == nil || IsMatchAll(q) {
		return engine.ScaleWeight(filter, 0)
	}
	return engine.Filter(q, filter)
}

// IsMatchAll reports whether q is the query matching every document.
func IsMatchAll(q *engine.Query) bool {
	return q != nil && q.Equal(engine.MatchAll())
}

func (b *Builder) hasProbabilistic(q *engine.Query) bool {
	for _, term := range slices.Concat(q.Terms(), q.Wildcards()) {
		if i := strings.IndexByte(term, ':'); i > 0 && b.probabilistic[term[:i+1]] {
			return true
		}
	}
	return false
}

func (b *Builder) resolveSort(spec, defaultSort string, probabilistic bool) (string, engine.SortOrder, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.EqualFold(spec, SortAuto) {
		switch {
		case probabilistic:
			spec = SortRelevance
		case strings.TrimSpace(defaultSort) == "" || strings.EqualFold(strings.TrimSpace(defaultSort), SortAuto):
			spec = SortDocIDDesc
		default:
			spec = strings.TrimSpace(defaultSort)
		}
	}
	order, err := ParseSort(b.schema, spec)
	return spec, order, err
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package docdb

import (
	"context"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/ministore/docdb/docdb/encoder"
	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/engine/qparser"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/querybuild"
	"github.com/ministore/docdb/docdb/record"
	"github.com/ministore/docdb/docdb/textutil"
)

type sessionState int

const (
	unsearched sessionState = iota
	hasResults
	exhausted
)

// CountKind selects one of the match counts of a search.
type CountKind int

const (
	CountEstimated CountKind = iota
	CountLower
	CountUpper
)

// RecordView is the record under the cursor of a session.
type RecordView struct {
	ID uint32
	// Rank is the 1-based position of the record in the results.
	Rank    int
	Score   float64
	Percent int
	// Collapsed counts the records hidden behind this one.
	Collapsed int
	Record    *record.Record
}

// SearchInfo describes the last search of a session.
type SearchInfo struct {
	Query         string
	Sort          string
	Equations     []string
	Stopped       []string
	Probabilistic bool
	Boosted       bool
	Start         int
	Max           int
	Matches       int
	Weighting     string
	Elapsed       time.Duration
	// Suggestion is the spelling corrected equation when the search asked
	// for it and a correction exists.
	Suggestion string
}

// FacetEntry is one value of a facet and the number of matches having it.
type FacetEntry struct {
	Value string
	Count int
}

// Session runs searches and walks their results. Searching again starts
// over. There is no rewind: search again to restart.
type Session struct {
	db *Database

	state    sessionState
	opts     SearchOptions
	built    *querybuild.Result
	enquire  *engine.Enquire
	mset     *engine.MSet
	pos      int
	pageSize int
	limit    int
	current  *RecordView
	spies    map[string]*engine.TermSpy
	info     SearchInfo
}

// NewSession returns a session without results.
func (d *Database) NewSession() *Session {
	return &Session{db: d}
}

// Search runs a search and positions the cursor on the first result. It
// reports whether there is one.
func (s *Session) Search(ctx context.Context, opts SearchOptions) (bool, error) {
	*s = Session{db: s.db}
	began := time.Now()
	d := s.db

	s.opts = opts.merge(d.opts.SearchDefaults)
	o := s.opts
	built, err := d.builder.Build(querybuild.Options{
		Equation:        o.Equation,
		Auto:            o.Auto,
		Filter:          o.Filter,
		DocSet:          o.DocSet,
		DefaultEquation: o.DefaultEquation,
		DefaultFilter:   o.DefaultFilter,
		DefaultOp:       o.DefaultOp,
		Boost:           o.Boost,
		Sort:            o.Sort,
		DefaultSort:     o.DefaultSort,
	})
	if err != nil {
		return false, err
	}
	s.built = built

	weighting, err := engine.ParseWeighting(o.Weighting)
	if err != nil {
		return false, errs.Wrap(errs.ErrInvalidValue, "weighting", err).WithField("weighting")
	}
	enq := engine.NewEnquire(d.backend, built.Query)
	enq.SetWeighting(weighting)
	enq.SetSort(built.Sort)
	enq.SetCutoff(o.MinPercent, o.MinScore)
	if o.Collapse != "" {
		key := d.schema.SortKey(o.Collapse)
		if key == nil {
			return false, errs.Newf(errs.ErrSortSpec, "collapse: unknown sort key %q", o.Collapse).WithField(o.Collapse)
		}
		enq.SetCollapseKey(key.ID)
	}
	s.spies = make(map[string]*engine.TermSpy, len(o.Facets))
	for _, name := range o.Facets {
		t := d.schema.LookupTable(name)
		if t == nil {
			return false, errs.Newf(errs.ErrUnknownLookup, "facet: unknown lookup table %q", name).WithField(name)
		}
		spy := engine.NewTermSpy(encoder.LookupPrefix(t.ID))
		s.spies[t.Name] = spy
		enq.AddMatchSpy(spy)
	}
	s.enquire = enq

	limit := DefaultMax
	if o.Max != nil {
		limit = *o.Max
	}
	switch {
	case limit == Unlimited:
		s.pageSize = unlimitedPage
	case limit < 0:
		return false, errs.Newf(errs.ErrInvalidValue, "max: invalid page size %d", limit).WithField("max")
	default:
		s.pageSize = limit
	}
	s.limit = limit
	start := o.Start - 1
	mset, err := enq.MSet(ctx, start, s.pageSize, o.CheckAtLeast)
	if err != nil {
		return false, engineError("search", err)
	}
	if total := mset.MatchesEstimated; total > 0 && start >= total && s.pageSize > 0 {
		// past the end: show the last page instead
		start = (total - 1) / s.pageSize * s.pageSize
		if mset, err = enq.MSet(ctx, start, s.pageSize, o.CheckAtLeast); err != nil {
			return false, engineError("search", err)
		}
	}
	s.mset = mset

	s.info = SearchInfo{
		Query:         built.Query.String(),
		Sort:          built.SortSpec,
		Stopped:       built.Stopped,
		Probabilistic: built.Probabilistic,
		Boosted:       built.Boosted,
		Start:         start + 1,
		Max:           limit,
		Matches:       mset.MatchesEstimated,
		Weighting:     string(weighting),
	}
	for _, eq := range built.Equations {
		s.info.Equations = append(s.info.Equations, eq.Text)
	}
	if o.Spelling {
		if s.info.Suggestion, err = s.Suggestion(ctx); err != nil {
			return false, err
		}
	}

	s.state = exhausted
	if len(mset.Items) > 0 {
		s.state = hasResults
		if err := s.loadCurrent(ctx); err != nil {
			return false, err
		}
	}
	s.info.Elapsed = time.Since(began)

	d.metrics.RecordSearch(sortLabel(built.Sort.Kind), s.info.Elapsed)
	d.log.Debug().
		Str("query", s.info.Query).
		Str("sort", built.Sort.String()).
		Int("matches", s.info.Matches).
		Dur("elapsed", s.info.Elapsed).
		Msg("search")
	return s.state == hasResults, nil
}

func sortLabel(k engine.SortKind) string {
	switch k {
	case engine.SortRelevance:
		return "relevance"
	case engine.SortDocIDAsc, engine.SortDocIDDesc:
		return "docid"
	case engine.SortValues:
		return "values"
	default:
		return "mixed"
	}
}

func (s *Session) loadCurrent(ctx context.Context) error {
	item := s.mset.Items[s.pos]
	rec, err := s.db.load(ctx, s.db.backend, item.Doc)
	if err != nil {
		return err
	}
	s.current = &RecordView{
		ID:        item.Doc,
		Rank:      item.Rank + 1,
		Score:     item.Weight,
		Percent:   item.Percent,
		Collapsed: item.Collapsed,
		Record:    rec,
	}
	return nil
}

// EOF reports whether the cursor is past the last result, or no search
// ran yet.
func (s *Session) EOF() bool { return s.state != hasResults }

// Current returns the record under the cursor, nil at EOF.
func (s *Session) Current() *RecordView {
	if s.state != hasResults {
		return nil
	}
	return s.current
}

// Field returns the values of a field of the current record; nil at EOF.
func (s *Session) Field(name string) []any {
	if s.state != hasResults {
		return nil
	}
	values, _ := s.current.Record.Get(name)
	return values
}

// MoveNext moves the cursor to the next result. An unlimited search
// fetches the next page when the current one is used up.
func (s *Session) MoveNext(ctx context.Context) error {
	if s.state != hasResults {
		return nil
	}
	s.pos++
	if s.pos >= len(s.mset.Items) {
		next := s.mset.First + len(s.mset.Items)
		if s.limit != Unlimited || next >= s.mset.MatchesEstimated {
			s.state = exhausted
			s.current = nil
			return nil
		}
		mset, err := s.enquire.MSet(ctx, next, s.pageSize, s.opts.CheckAtLeast)
		if err != nil {
			return engineError("search", err)
		}
		if len(mset.Items) == 0 {
			s.state = exhausted
			s.current = nil
			return nil
		}
		s.mset, s.pos = mset, 0
	}
	return s.loadCurrent(ctx)
}

// Records iterates from the current record to the last one, moving the
// cursor.
func (s *Session) Records(ctx context.Context) iter.Seq2[*RecordView, error] {
	return func(yield func(*RecordView, error) bool) {
		for s.state == hasResults {
			if !yield(s.current, nil) {
				return
			}
			if err := s.MoveNext(ctx); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Count returns a match count of the last search. Counts are exact, so
// every kind gives the same number.
func (s *Session) Count(kind CountKind) int {
	if s.mset == nil {
		return 0
	}
	switch kind {
	case CountLower:
		return s.mset.MatchesLower
	case CountUpper:
		return s.mset.MatchesUpper
	default:
		return s.mset.MatchesEstimated
	}
}

// Info describes the last search.
func (s *Session) Info() SearchInfo { return s.info }

// MatchingTerms returns the query terms the current record indexes.
func (s *Session) MatchingTerms(ctx context.Context) ([]string, error) {
	if s.state != hasResults {
		return nil, errs.New(errs.ErrNoCurrentRecord, "no current record")
	}
	terms, err := s.enquire.MatchingTerms(ctx, s.current.ID)
	if err != nil {
		return nil, engineError("matching terms", err)
	}
	return terms, nil
}

// Facets returns the entries of a lookup table requested in Facets by
// decreasing number of matches.
func (s *Session) Facets(table string) ([]FacetEntry, error) {
	t := s.db.schema.LookupTable(table)
	var spy *engine.TermSpy
	if t != nil {
		spy = s.spies[t.Name]
	}
	if spy == nil {
		return nil, errs.Newf(errs.ErrUnknownLookup, "no facet %q in the last search", table).WithField(table)
	}
	counts := spy.Counts()
	out := make([]FacetEntry, len(counts))
	for i, c := range counts {
		out[i] = FacetEntry{Value: c.Term, Count: c.Count}
	}
	return out, nil
}

// Suggestion returns the equations of the last search with misspelled
// words replaced by the closest dictionary words, joined with AND, or ""
// when every word is known.
func (s *Session) Suggestion(ctx context.Context) (string, error) {
	if s.built == nil {
		return "", nil
	}
	var out []string
	changed := false
	for _, eq := range s.built.Equations {
		text := []rune(eq.Text)
		words := slices.Clone(eq.Words)
		// replace from the end so earlier offsets stay valid
		slices.SortFunc(words, func(a, b qparser.Word) int { return b.Start - a.Start })
		for _, w := range words {
			tokens := textutil.Tokenize(w.Text)
			if len(tokens) != 1 || w.Start < 0 || w.End > len(text) || w.Start > w.End {
				continue
			}
			fix, err := engine.Suggest(ctx, s.db.backend, tokens[0])
			if err != nil {
				return "", engineError("spelling", err)
			}
			if fix == "" || fix == tokens[0] {
				continue
			}
			text = slices.Concat(text[:w.Start], []rune(fix), text[w.End:])
			changed = true
		}
		out = append(out, string(text))
	}
	if !changed {
		return "", nil
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return "(" + strings.Join(out, ") AND (") + ")", nil
}

// Edit starts the edit of the current record.
func (s *Session) Edit(ctx context.Context) (*RecordEdit, error) {
	if s.state != hasResults {
		return nil, errs.New(errs.ErrNoCurrentRecord, "no current record")
	}
	return s.db.EditRecord(ctx, s.current.ID)
}

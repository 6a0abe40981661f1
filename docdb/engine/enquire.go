package engine

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// DefaultWildcardLimit caps the number of terms a wildcard expands to.
const DefaultWildcardLimit = 1000

// MatchSpy observes the complete set of matching documents of a search,
// after cutoffs and collapsing, whatever page is requested.
type MatchSpy interface {
	Observe(ctx context.Context, r Reader, matches *roaring.Bitmap) error
}

// MSetItem is one ranked match.
type MSetItem struct {
	Doc     uint32
	Rank    int
	Weight  float64
	Percent int
	// Collapsed counts the documents hidden behind this one by collapsing.
	Collapsed int
}

// MSet is a page of ranked matches. Counts are exact: evaluation always
// visits every match, so the bounds and the estimate coincide.
type MSet struct {
	Items            []MSetItem
	First            int
	MatchesLower     int
	MatchesUpper     int
	MatchesEstimated int
	MaxPossible      float64
	MaxAttained      float64
}

func (m *MSet) Size() int { return len(m.Items) }

// Enquire runs one query against a reader.
type Enquire struct {
	r             Reader
	query         *Query
	weighting     Weighting
	order         SortOrder
	minPercent    int
	minWeight     float64
	collapseSlot  int
	spies         []MatchSpy
	wildcardLimit int

	stats    *Stats
	postings map[string][]Posting
	expanded map[string][]string
	docs     *roaring.Bitmap
	weights  map[uint32]float64
}

func NewEnquire(r Reader, q *Query) *Enquire {
	return &Enquire{
		r:             r,
		query:         q,
		weighting:     WeightBM25,
		order:         ByRelevance,
		collapseSlot:  -1,
		wildcardLimit: DefaultWildcardLimit,
		postings:      make(map[string][]Posting),
		expanded:      make(map[string][]string),
	}
}

func (e *Enquire) Query() *Query { return e.query }

func (e *Enquire) SetWeighting(w Weighting) { e.weighting = w; e.docs = nil }

func (e *Enquire) SetSort(order SortOrder) { e.order = order }

// SetCutoff drops matches below percent of the best weight or below weight.
func (e *Enquire) SetCutoff(percent int, weight float64) {
	e.minPercent = percent
	e.minWeight = weight
}

// SetCollapseKey keeps only the best ranked match per value of slot;
// documents with an empty value are never collapsed. -1 disables it.
func (e *Enquire) SetCollapseKey(slot int) { e.collapseSlot = slot }

func (e *Enquire) SetWildcardLimit(n int) { e.wildcardLimit = n }

func (e *Enquire) AddMatchSpy(s MatchSpy) { e.spies = append(e.spies, s) }

// MSet returns the matches ranked first to first+max-1 (0-based). max < 0
// returns every match, max == 0 only counts. checkAtLeast is accepted for
// interface parity; counts are always exact.
func (e *Enquire) MSet(ctx context.Context, first, max, checkAtLeast int) (*MSet, error) {
	_ = checkAtLeast
	if err := e.evaluate(ctx); err != nil {
		return nil, err
	}

	maxAttained := 0.0
	for _, w := range e.weights {
		if w > maxAttained {
			maxAttained = w
		}
	}

	hits := make([]*hit, 0, e.docs.GetCardinality())
	it := e.docs.Iterator()
	for it.HasNext() {
		doc := it.Next()
		w := e.weights[doc]
		if e.minWeight > 0 && w < e.minWeight {
			continue
		}
		if e.minPercent > 0 && percent(w, maxAttained) < e.minPercent {
			continue
		}
		hits = append(hits, &hit{doc: doc, weight: w})
	}

	if len(e.order.Keys) > 0 && e.order.Kind >= SortValues {
		for i, k := range e.order.Keys {
			values, err := e.r.SlotValues(ctx, k.Slot)
			if err != nil {
				return nil, fmt.Errorf("load sort slot %d: %w", k.Slot, err)
			}
			for _, h := range hits {
				if i == 0 {
					h.keys = make([][]byte, len(e.order.Keys))
				}
				h.keys[i] = values[h.doc]
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return e.order.less(hits[i], hits[j]) })

	collapsed := map[uint32]int{}
	if e.collapseSlot >= 0 {
		values, err := e.r.SlotValues(ctx, e.collapseSlot)
		if err != nil {
			return nil, fmt.Errorf("load collapse slot %d: %w", e.collapseSlot, err)
		}
		best := map[string]uint32{}
		kept := hits[:0]
		for _, h := range hits {
			v := values[h.doc]
			if len(v) == 0 {
				kept = append(kept, h)
				continue
			}
			if owner, seen := best[string(v)]; seen {
				collapsed[owner]++
				continue
			}
			best[string(v)] = h.doc
			kept = append(kept, h)
		}
		hits = kept
	}

	if len(e.spies) > 0 {
		matches := roaring.New()
		for _, h := range hits {
			matches.Add(h.doc)
		}
		for _, spy := range e.spies {
			if err := spy.Observe(ctx, e.r, matches); err != nil {
				return nil, err
			}
		}
	}

	ms := &MSet{
		First:            first,
		MatchesLower:     len(hits),
		MatchesUpper:     len(hits),
		MatchesEstimated: len(hits),
		MaxPossible:      maxAttained,
		MaxAttained:      maxAttained,
	}
	if first < 0 {
		first = 0
	}
	end := len(hits)
	if max >= 0 && first+max < end {
		end = first + max
	}
	for i := first; i < end; i++ {
		h := hits[i]
		ms.Items = append(ms.Items, MSetItem{
			Doc:       h.doc,
			Rank:      i,
			Weight:    h.weight,
			Percent:   percent(h.weight, maxAttained),
			Collapsed: collapsed[h.doc],
		})
	}
	return ms, nil
}

func percent(w, max float64) int {
	if max <= 0 {
		return 100
	}
	p := int(math.Round(w / max * 100))
	if p < 1 && w > 0 {
		p = 1
	}
	return p
}

// MatchingTerms returns the query terms, wildcard expansions included, that
// doc indexes, in query order.
func (e *Enquire) MatchingTerms(ctx context.Context, doc uint32) ([]string, error) {
	if err := e.evaluate(ctx); err != nil {
		return nil, err
	}
	docTerms, err := e.r.DocTerms(ctx, doc)
	if err != nil {
		return nil, err
	}
	has := make(map[string]bool, len(docTerms))
	for _, t := range docTerms {
		has[t] = true
	}
	var out []string
	seen := map[string]bool{}
	e.query.walk(func(n *Query) {
		var candidates []string
		switch n.op {
		case OpTerm:
			candidates = []string{n.term}
		case OpWildcard:
			candidates = e.expanded[n.term]
		}
		for _, t := range candidates {
			if has[t] && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	})
	return out, nil
}

// ExpandedTerms returns the terms a wildcard prefix expanded to.
func (e *Enquire) ExpandedTerms(prefix string) []string { return e.expanded[prefix] }

func (e *Enquire) evaluate(ctx context.Context) error {
	if e.docs != nil {
		return nil
	}
	if e.stats == nil {
		st, err := e.r.Stats(ctx)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		e.stats = &st
	}
	if e.query == nil {
		e.docs, e.weights = roaring.New(), map[uint32]float64{}
		return nil
	}
	docs, weights, err := e.eval(ctx, e.query)
	if err != nil {
		return err
	}
	e.docs, e.weights = docs, weights
	return nil
}

func (e *Enquire) postingList(ctx context.Context, term string) ([]Posting, error) {
	if p, ok := e.postings[term]; ok {
		return p, nil
	}
	p, err := e.r.Postings(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("postings %q: %w", term, err)
	}
	e.postings[term] = p
	return p, nil
}

func (e *Enquire) eval(ctx context.Context, q *Query) (*roaring.Bitmap, map[uint32]float64, error) {
	switch q.op {
	case OpMatchNothing:
		return roaring.New(), map[uint32]float64{}, nil
	case OpMatchAll:
		docs, err := e.r.DocIDs(ctx)
		if err != nil {
			return nil, nil, err
		}
		return docs, map[uint32]float64{}, nil
	case OpTerm:
		return e.evalTerm(ctx, q.term, q.wqf)
	case OpWildcard:
		return e.evalWildcard(ctx, q.term)
	case OpPhrase, OpNear:
		return e.evalPositional(ctx, q)
	case OpScaleWeight:
		docs, w, err := e.eval(ctx, q.subs[0])
		if err != nil {
			return nil, nil, err
		}
		for d := range w {
			w[d] *= q.factor
		}
		return docs, w, nil
	}

	results := make([]*roaring.Bitmap, len(q.subs))
	weights := make([]map[uint32]float64, len(q.subs))
	for i, s := range q.subs {
		var err error
		if results[i], weights[i], err = e.eval(ctx, s); err != nil {
			return nil, nil, err
		}
	}

	var docs *roaring.Bitmap
	var scoring []map[uint32]float64
	switch q.op {
	case OpAnd:
		docs = results[0].Clone()
		for _, r := range results[1:] {
			docs.And(r)
		}
		scoring = weights
	case OpOr:
		docs = roaring.New()
		for _, r := range results {
			docs.Or(r)
		}
		scoring = weights
	case OpAndNot:
		docs = roaring.AndNot(results[0], results[1])
		scoring = weights[:1]
	case OpAndMaybe:
		docs = results[0].Clone()
		scoring = weights
	case OpFilter:
		docs = roaring.And(results[0], results[1])
		scoring = weights[:1]
	default:
		return nil, nil, fmt.Errorf("unsupported query operator %d", q.op)
	}
	return docs, sumWeights(docs, scoring), nil
}

func sumWeights(docs *roaring.Bitmap, parts []map[uint32]float64) map[uint32]float64 {
	out := make(map[uint32]float64)
	for _, part := range parts {
		for d, w := range part {
			if w != 0 && docs.Contains(d) {
				out[d] += w
			}
		}
	}
	return out
}

func (e *Enquire) evalTerm(ctx context.Context, term string, wqf int) (*roaring.Bitmap, map[uint32]float64, error) {
	postings, err := e.postingList(ctx, term)
	if err != nil {
		return nil, nil, err
	}
	scorer := newTermScorer(e.weighting, *e.stats, len(postings), wqf)
	docs := roaring.New()
	weights := make(map[uint32]float64)
	for _, p := range postings {
		docs.Add(p.Doc)
		if w := scorer.score(p); w != 0 {
			weights[p.Doc] = w
		}
	}
	return docs, weights, nil
}

func (e *Enquire) evalWildcard(ctx context.Context, prefix string) (*roaring.Bitmap, map[uint32]float64, error) {
	terms, ok := e.expanded[prefix]
	if !ok {
		err := TermsWithPrefix(ctx, e.r, prefix, e.wildcardLimit, func(ti TermInfo) bool {
			terms = append(terms, ti.Term)
			return true
		})
		if err != nil {
			return nil, nil, fmt.Errorf("expand %q: %w", prefix, err)
		}
		e.expanded[prefix] = terms
	}
	docs := roaring.New()
	var parts []map[uint32]float64
	for _, t := range terms {
		d, w, err := e.evalTerm(ctx, t, 1)
		if err != nil {
			return nil, nil, err
		}
		docs.Or(d)
		parts = append(parts, w)
	}
	return docs, sumWeights(docs, parts), nil
}

func (e *Enquire) evalPositional(ctx context.Context, q *Query) (*roaring.Bitmap, map[uint32]float64, error) {
	for _, s := range q.subs {
		if s.op != OpTerm {
			// only plain terms carry positions
			return e.eval(ctx, And(q.subs...))
		}
	}
	lists := make([]map[uint32][]int, len(q.subs))
	docs, weights, err := e.eval(ctx, And(q.subs...))
	if err != nil {
		return nil, nil, err
	}
	for i, s := range q.subs {
		postings, err := e.postingList(ctx, s.term)
		if err != nil {
			return nil, nil, err
		}
		lists[i] = make(map[uint32][]int, len(postings))
		for _, p := range postings {
			if docs.Contains(p.Doc) {
				lists[i][p.Doc] = p.Positions
			}
		}
	}

	out := roaring.New()
	it := docs.Iterator()
	for it.HasNext() {
		doc := it.Next()
		positions := make([][]int, len(lists))
		for i := range lists {
			positions[i] = lists[i][doc]
		}
		var ok bool
		if q.op == OpPhrase {
			ok = phraseMatch(positions, q.window)
		} else {
			ok = nearMatch(positions, q.window)
		}
		if ok {
			out.Add(doc)
		}
	}
	return out, sumWeights(out, []map[uint32]float64{weights}), nil
}

// phraseMatch reports whether one position per list can be chosen in list
// order, strictly increasing, spanning fewer than window positions.
func phraseMatch(positions [][]int, window int) bool {
	for _, p := range positions {
		if len(p) == 0 {
			return false
		}
	}
	for _, start := range positions[0] {
		prev := start
		ok := true
		for _, list := range positions[1:] {
			i := sort.SearchInts(list, prev+1)
			if i == len(list) {
				ok = false
				break
			}
			prev = list[i]
			if prev-start >= window {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// nearMatch reports whether one position per list fits in a span of fewer
// than window positions, in any order.
func nearMatch(positions [][]int, window int) bool {
	type occ struct{ pos, list int }
	var all []occ
	for i, list := range positions {
		if len(list) == 0 {
			return false
		}
		for _, p := range list {
			all = append(all, occ{p, i})
		}
	}
	slices.SortFunc(all, func(a, b occ) int { return a.pos - b.pos })
	count := make([]int, len(positions))
	covered := 0
	lo := 0
	for hi := range all {
		if count[all[hi].list] == 0 {
			covered++
		}
		count[all[hi].list]++
		for covered == len(positions) {
			if all[hi].pos-all[lo].pos < window {
				return true
			}
			count[all[lo].list]--
			if count[all[lo].list] == 0 {
				covered--
			}
			lo++
		}
	}
	return false
}

package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// TermCount is a term and the number of matching documents indexing it.
type TermCount struct {
	Term  string
	Count int
}

// TermSpy counts, for every term under a prefix, how many matching
// documents index it.
type TermSpy struct {
	prefix string
	counts map[string]int
	total  int
}

func NewTermSpy(prefix string) *TermSpy {
	return &TermSpy{prefix: prefix, counts: make(map[string]int)}
}

func (s *TermSpy) Prefix() string { return s.prefix }

// Observe replaces the counts with those of matches, so that fetching
// several pages of one search counts every document once.
func (s *TermSpy) Observe(ctx context.Context, r Reader, matches *roaring.Bitmap) error {
	s.counts = make(map[string]int)
	s.total = int(matches.GetCardinality())
	if s.total == 0 {
		return nil
	}
	var terms []string
	err := TermsWithPrefix(ctx, r, s.prefix, 0, func(ti TermInfo) bool {
		terms = append(terms, ti.Term)
		return true
	})
	if err != nil {
		return err
	}
	for _, t := range terms {
		postings, err := r.Postings(ctx, t)
		if err != nil {
			return err
		}
		n := 0
		for _, p := range postings {
			if matches.Contains(p.Doc) {
				n++
			}
		}
		if n > 0 {
			s.counts[t] = n
		}
	}
	return nil
}

// Total is the number of documents observed.
func (s *TermSpy) Total() int { return s.total }

// Counts returns the observed terms, without the prefix, by decreasing
// count then term.
func (s *TermSpy) Counts() []TermCount {
	out := make([]TermCount, 0, len(s.counts))
	for t, n := range s.counts {
		out = append(out, TermCount{Term: strings.TrimPrefix(t, s.prefix), Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}

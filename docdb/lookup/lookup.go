// Package lookup suggests index terms, whole values and lookup table
// entries that start with what a user typed so far.
package lookup

import (
	"context"
	"slices"
	"strings"

	"github.com/ministore/docdb/docdb/encoder"
	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/schema"
	"github.com/ministore/docdb/docdb/textutil"
)

// DefaultMax is the number of suggestions returned when the caller does not
// ask for a count.
const DefaultMax = 10

// Result is one suggestion.
type Result struct {
	// Value is the suggestion as stored.
	Value string
	// Count is the number of documents carrying it.
	Count int
	// Match is the byte length of the prefix of Value matched by the input.
	Match int
}

// Highlight wraps the matched prefix of the value between open and close.
func (r Result) Highlight(open, close string) string {
	m := min(max(r.Match, 0), len(r.Value))
	if m == 0 {
		return r.Value
	}
	return open + r.Value[:m] + close + r.Value[m:]
}

// Lookup is a suggestion strategy.
type Lookup interface {
	// Lookup returns at most max suggestions for input.
	Lookup(ctx context.Context, r engine.Reader, input string, max int) ([]Result, error)
	// Name is the strategy name used in logs and metrics.
	Name() string
}

// Options tunes the strategies built by For.
type Options struct {
	// SeekBudget bounds the dictionary seeks of one lookup table search.
	SeekBudget int
}

// For returns the strategy answering lookups on name, which may be a lookup
// table, an index or an alias, looked up in that order.
func For(s *schema.Schema, name string, opts Options) (Lookup, error) {
	if t := s.LookupTable(name); t != nil {
		return &SimpleTableLookup{Prefix: encoder.LookupPrefix(t.ID), Budget: opts.SeekBudget}, nil
	}
	if ix := s.Index(name); ix != nil {
		return forIndex(ix), nil
	}
	if a := s.Alias(name); a != nil {
		var subs []Lookup
		for _, ai := range a.Indices() {
			if ix := s.IndexByID(ai.ID); ix != nil {
				subs = append(subs, forIndex(ix))
			}
		}
		return &AliasLookup{Lookups: subs}, nil
	}
	return nil, errs.Newf(errs.ErrUnknownLookup, "no lookup table, index or alias named %q", name).WithField(name)
}

func forIndex(ix *schema.Index) Lookup {
	prefix := encoder.IndexPrefix(ix.ID)
	var words, values bool
	for _, f := range ix.Fields() {
		words = words || f.Words || f.Phrases
		values = values || f.Values
	}
	switch {
	case values && words:
		return &AliasLookup{Lookups: []Lookup{&ValueLookup{Prefix: prefix}, &TermLookup{Prefix: prefix}}}
	case values:
		return &ValueLookup{Prefix: prefix}
	default:
		return &TermLookup{Prefix: prefix}
	}
}

// TermLookup completes the last word of the input from the words of an
// index.
type TermLookup struct {
	Prefix string
}

func (*TermLookup) Name() string { return "term" }

func (l *TermLookup) Lookup(ctx context.Context, r engine.Reader, input string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultMax
	}
	var word string
	if tokens := textutil.Tokenize(input); len(tokens) > 0 {
		word = tokens[len(tokens)-1]
	}
	var out []Result
	err := engine.TermsWithPrefix(ctx, r, l.Prefix+word, 0, func(info engine.TermInfo) bool {
		value := info.Term[len(l.Prefix):]
		if strings.HasPrefix(value, encoder.ValueSep) {
			// value and count terms share the index prefix
			return true
		}
		out = append(out, Result{Value: value, Count: info.TermFreq, Match: len(word)})
		return len(out) < limit
	})
	return out, err
}

// ValueLookup completes whole values of an index built in values mode.
type ValueLookup struct {
	Prefix string
}

func (*ValueLookup) Name() string { return "value" }

func (l *ValueLookup) Lookup(ctx context.Context, r engine.Reader, input string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultMax
	}
	tokens := textutil.Tokenize(input)
	stem := encoder.ValueStem(tokens, encoder.MaxTermLength-len(l.Prefix))
	typed := strings.Join(tokens, " ")

	var out []Result
	err := engine.TermsWithPrefix(ctx, r, l.Prefix+stem, 0, func(info engine.TermInfo) bool {
		raw := info.Term[len(l.Prefix):]
		if strings.HasPrefix(raw, encoder.ValueSep+encoder.ValueSep) {
			return true
		}
		value := strings.ReplaceAll(strings.Trim(raw, encoder.ValueSep), encoder.ValueSep, " ")
		out = append(out, Result{Value: value, Count: info.TermFreq, Match: min(len(typed), len(value))})
		return len(out) < limit
	})
	return out, err
}

// AliasLookup merges the suggestions of several strategies. A value found
// by more than one of them is reported once, with its largest count.
type AliasLookup struct {
	Lookups []Lookup
}

func (*AliasLookup) Name() string { return "alias" }

func (l *AliasLookup) Lookup(ctx context.Context, r engine.Reader, input string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultMax
	}
	var out []Result
	pos := make(map[string]int)
	for _, sub := range l.Lookups {
		results, err := sub.Lookup(ctx, r, input, limit)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			if i, ok := pos[res.Value]; ok {
				out[i].Count = max(out[i].Count, res.Count)
				out[i].Match = max(out[i].Match, res.Match)
				continue
			}
			pos[res.Value] = len(out)
			out = append(out, res)
		}
	}
	sortResults(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortResults(out []Result) {
	slices.SortStableFunc(out, func(a, b Result) int {
		if c := strings.Compare(textutil.Fold(a.Value), textutil.Fold(b.Value)); c != 0 {
			return c
		}
		return strings.Compare(a.Value, b.Value)
	})
}

package lookup

import (
	"context"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/textutil"
)

// DefaultSeekBudget bounds the dictionary seeks of one table search.
const DefaultSeekBudget = 5000

// maxGap is the longest run of separators inserted between two typed
// characters.
const maxGap = 7

// baseLetters folds the letters that canonical decomposition leaves
// whole.
var baseLetters = strings.NewReplacer(
	"ø", "o", "đ", "d", "ł", "l", "ħ", "h", "ı", "i", "ŧ", "t",
)

// SimpleTableLookup completes lookup table entries. Entries are stored as
// typed, so the search walks the dictionary one character at a time keeping
// the characters that fold to the input, and lets separators in the
// input match any run of up to seven spaces or punctuation marks, or
// nothing at all.
type SimpleTableLookup struct {
	Prefix string
	// Budget bounds the dictionary seeks; 0 means DefaultSeekBudget.
	Budget int
}

func (*SimpleTableLookup) Name() string { return "table" }

func (l *SimpleTableLookup) Lookup(ctx context.Context, r engine.Reader, input string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultMax
	}
	budget := l.Budget
	if budget <= 0 {
		budget = DefaultSeekBudget
	}
	s := &tableSearch{
		ctx:    ctx,
		r:      r,
		prefix: l.Prefix,
		input:  []rune(textutil.Fold(input)),
		limit:  limit,
		budget: budget,
		next:   make(map[string][]rune),
		seen:   make(map[string]bool),
	}
	if err := s.walk(0, ""); err != nil {
		return nil, err
	}
	sortResults(s.out)
	return s.out, nil
}

// tableSearch is the state of one SimpleTableLookup call. next caches the
// characters following each explored prefix.
type tableSearch struct {
	ctx    context.Context
	r      engine.Reader
	prefix string
	input  []rune
	limit  int
	budget int
	next   map[string][]rune
	seen   map[string]bool
	out    []Result
}

func (s *tableSearch) done() bool {
	return len(s.out) >= s.limit || s.budget <= 0 || s.ctx.Err() != nil
}

// walk matches input[i:] against the entries extending built.
func (s *tableSearch) walk(i int, built string) error {
	if s.done() {
		return s.ctx.Err()
	}
	for i < len(s.input) && isSeparator(s.input[i]) {
		i++
	}
	if i == len(s.input) {
		return s.collect(built)
	}
	if built == "" {
		return s.matchChar(i, built)
	}
	return s.gap(i, built, 0)
}

// gap tries input[i] right after built, then after each separator the
// entries have at that point, up to maxGap of them.
func (s *tableSearch) gap(i int, built string, n int) error {
	if err := s.matchChar(i, built); err != nil || n == maxGap {
		return err
	}
	next, err := s.nextRunes(built)
	if err != nil {
		return err
	}
	for _, r := range next {
		if s.done() {
			break
		}
		if !isSeparator(r) {
			continue
		}
		if err := s.gap(i, built+string(r), n+1); err != nil {
			return err
		}
	}
	return nil
}

// matchChar extends built with each character some entry continues with
// whose folded form matches the input at i. A ligature consumes two input
// characters.
func (s *tableSearch) matchChar(i int, built string) error {
	next, err := s.nextRunes(built)
	if err != nil || len(next) == 0 {
		return err
	}
	for _, r := range next {
		if s.done() {
			break
		}
		if isSeparator(r) {
			continue
		}
		for _, form := range foldedForms(r) {
			n := len(form)
			if n == 0 || i+n > len(s.input) || !slices.Equal(form, s.input[i:i+n]) {
				continue
			}
			if err := s.walk(i+n, built+string(r)); err != nil {
				return err
			}
		}
	}
	return nil
}

// foldedForms returns the folded spellings a stored character stands for.
func foldedForms(r rune) [][]rune {
	folded := textutil.Fold(string(r))
	forms := [][]rune{[]rune(folded)}
	if base := baseLetters.Replace(folded); base != folded {
		forms = append(forms, []rune(base))
	}
	return forms
}

// nextRunes returns, in order, the distinct characters following built in
// the table entries. Each one costs a seek.
func (s *tableSearch) nextRunes(built string) ([]rune, error) {
	if rs, ok := s.next[built]; ok {
		return rs, nil
	}
	full := s.prefix + built
	var rs []rune
	from := full
	for s.budget > 0 {
		s.budget--
		infos, err := s.r.Terms(s.ctx, from, 1)
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 || !strings.HasPrefix(infos[0].Term, full) {
			break
		}
		rest := infos[0].Term[len(full):]
		if rest == "" {
			from = infos[0].Term + "\x00"
			continue
		}
		r, size := utf8.DecodeRuneInString(rest)
		if r == utf8.RuneError && size <= 1 {
			break
		}
		rs = append(rs, r)
		if r == utf8.MaxRune {
			break
		}
		from = string(utf8.AppendRune([]byte(full), nextScalar(r)))
	}
	s.next[built] = rs
	return rs, nil
}

func (s *tableSearch) collect(built string) error {
	return engine.TermsWithPrefix(s.ctx, s.r, s.prefix+built, 0, func(info engine.TermInfo) bool {
		value := info.Term[len(s.prefix):]
		if !s.seen[value] {
			s.seen[value] = true
			s.out = append(s.out, Result{Value: value, Count: info.TermFreq, Match: len(built)})
		}
		return len(s.out) < s.limit
	})
}

// nextScalar returns the first valid scalar value after r.
func nextScalar(r rune) rune {
	r++
	if r >= 0xD800 && r <= 0xDFFF {
		return 0xE000
	}
	return r
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

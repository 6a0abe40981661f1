package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// FoldAcronyms rewrites dotted acronyms such as "A.B.C." or "u.s.a" to
// "ABC" and "usa". At least two single letters are required.
func FoldAcronyms(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prev := rune(-1)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsLetter(r) && (prev == -1 || !isWordRune(prev)) {
			if letters, n := matchAcronym(s[i:]); n > 0 {
				b.WriteString(letters)
				i += n
				prev = '.'
				continue
			}
		}
		b.WriteRune(r)
		prev = r
		i += size
	}
	return b.String()
}

// matchAcronym matches letter "." letter "." ... at the start of s and returns
// the letters and the consumed length, or n == 0 when there is no acronym.
func matchAcronym(s string) (letters string, n int) {
	var out strings.Builder
	count := 0
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsLetter(r) {
			break
		}
		j := i + size
		if j < len(s) && s[j] == '.' {
			out.WriteRune(r)
			count++
			i = j + 1
			continue
		}
		// final letter without a trailing dot: "U.S.A"
		if count >= 2 {
			next, _ := utf8.DecodeRuneInString(s[j:])
			if j >= len(s) || !isWordRune(next) {
				out.WriteRune(r)
				count++
				i = j
			}
		}
		break
	}
	if count < 2 {
		return "", 0
	}
	if i < len(s) {
		next, _ := utf8.DecodeRuneInString(s[i:])
		if isWordRune(next) {
			return "", 0
		}
	}
	return out.String(), i
}

// Tokenize splits text into folded words. Runs of letters and digits form
// a token, everything else separates tokens. The result is deterministic.
func Tokenize(s string) []string {
	folded := Fold(FoldAcronyms(s))
	return strings.FieldsFunc(folded, func(r rune) bool { return !isWordRune(r) })
}

// Stopwords is a set of folded words excluded from indexing and querying.
type Stopwords map[string]struct{}

// ParseStopwords reads a white space, comma or semicolon separated list.
func ParseStopwords(list string) Stopwords {
	sw := Stopwords{}
	for _, w := range strings.FieldsFunc(list, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	}) {
		for _, tok := range Tokenize(w) {
			sw[tok] = struct{}{}
		}
	}
	return sw
}

// Contains reports whether the folded word is a stopword. A nil set holds nothing.
func (s Stopwords) Contains(word string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[word]
	return ok
}

// Union returns a new set holding the words of every given set.
func Union(sets ...Stopwords) Stopwords {
	out := Stopwords{}
	for _, set := range sets {
		for w := range set {
			out[w] = struct{}{}
		}
	}
	return out
}

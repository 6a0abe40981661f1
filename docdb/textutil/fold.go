// Package textutil implements the text normalization shared by schema names,
// indexing and querying.
package textutil

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	},
}

var ligatures = strings.NewReplacer(
	"œ", "oe", "Œ", "OE",
	"æ", "ae", "Æ", "AE",
	"ß", "ss",
	"ﬁ", "fi", "ﬂ", "fl",
)

// FoldLigatures expands the ligatures œ, æ, ß, ﬁ and ﬂ, preserving case.
func FoldLigatures(s string) string {
	if isASCII(s) {
		return s
	}
	return ligatures.Replace(s)
}

// StripDiacritics removes combining marks after canonical decomposition.
func StripDiacritics(s string) string {
	if isASCII(s) {
		return s
	}
	t := diacriticPool.Get().(transform.Transformer)
	defer diacriticPool.Put(t)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lowercases s, expands ligatures and strips diacritics.
func Fold(s string) string {
	return StripDiacritics(strings.ToLower(FoldLigatures(s)))
}

// NormalizeName is the canonical key function for schema node names:
// lowercase, no diacritics, alphanumerics only.
func NormalizeName(s string) string {
	folded := Fold(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if isWordRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// CollapseSpaces trims s and reduces every run of white space to one space.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Title":          "title",
		"Título":         "titulo",
		"titulo":         "titulo",
		"Date de début":  "datededebut",
		"ŒUVRE":          "oeuvre",
		"key_words-2024": "keywords2024",
		"":               "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeName(in), "NormalizeName(%q)", in)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, Tokenize("Hello World"))
	assert.Equal(t, []string{"l", "ecole", "normale", "superieure"}, Tokenize("L'École normale supérieure"))
	assert.Equal(t, []string{"oeuvre", "complete"}, Tokenize("Œuvre complète"))
	assert.Equal(t, []string{"the", "usa", "and", "ibm"}, Tokenize("the U.S.A. and I.B.M"))
	assert.Empty(t, Tokenize(" -- ... "))
}

func TestTokenizeDeterministic(t *testing.T) {
	in := "Le Petit Prince, Antoine de Saint-Exupéry (1943)"
	first := Tokenize(in)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Tokenize(in))
	}
}

func TestFoldAcronyms(t *testing.T) {
	assert.Equal(t, "ABC", FoldAcronyms("A.B.C."))
	assert.Equal(t, "the USA team", FoldAcronyms("the U.S.A team"))
	assert.Equal(t, "M. Dupont", FoldAcronyms("M. Dupont"))
	assert.Equal(t, "file.txt", FoldAcronyms("file.txt"))
	assert.Equal(t, "3.14", FoldAcronyms("3.14"))
}

func TestExtractPositions(t *testing.T) {
	assert.Equal(t, "bcd", Extract("abcdef", ParseBound("2"), ParseBound("4")))
	assert.Equal(t, "ef", Extract("abcdef", ParseBound("-2"), Bound{}))
	assert.Equal(t, "abcde", Extract("abcdef", Bound{}, ParseBound("-2")))
	assert.Equal(t, "", Extract("abc", ParseBound("5"), Bound{}))
	assert.Equal(t, "été", Extract("un été", ParseBound("4"), Bound{}))
}

func TestExtractDelimiters(t *testing.T) {
	assert.Equal(t, "2024", Extract("year=2024;month=5", ParseBound("year="), ParseBound(";")))
	assert.Equal(t, "", Extract("month=5", ParseBound("year="), Bound{}))
	assert.Equal(t, "abc", Extract("abc", Bound{}, ParseBound("|")))
}

func TestValidRange(t *testing.T) {
	assert.True(t, ValidRange(ParseBound("1"), ParseBound("3")))
	assert.False(t, ValidRange(ParseBound("4"), ParseBound("2")))
	assert.False(t, ValidRange(ParseBound("-1"), ParseBound("-3")))
	assert.True(t, ValidRange(ParseBound("3"), ParseBound("-1")))
	assert.True(t, ValidRange(ParseBound("x"), ParseBound("1")))
}

func TestSliceValues(t *testing.T) {
	v := []string{"a", "b", "c", "d"}
	assert.Equal(t, v, SliceValues(v, 1, 0))
	assert.Equal(t, []string{"b", "c"}, SliceValues(v, 2, 3))
	assert.Equal(t, []string{"d"}, SliceValues(v, -1, 0))
	assert.Equal(t, []string{"a", "b", "c"}, SliceValues(v, 0, -2))
	assert.Nil(t, SliceValues(v, 3, 2))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "é", Truncate("éé", 3))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestStopwords(t *testing.T) {
	sw := ParseStopwords("le, la;les  Été")
	assert.True(t, sw.Contains("le"))
	assert.True(t, sw.Contains("ete"))
	assert.False(t, sw.Contains("chat"))
	var empty Stopwords
	assert.False(t, empty.Contains("le"))
	u := Union(sw, ParseStopwords("the"))
	assert.True(t, u.Contains("the"))
	assert.True(t, u.Contains("la"))
}

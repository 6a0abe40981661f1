package encoder

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministore/docdb/docdb/record"
	"github.com/ministore/docdb/docdb/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.NewSchema()
	s.Stopwords = "le la"
	for _, f := range []*schema.Field{
		schema.NewField("Title", schema.FieldText),
		schema.NewField("Tags", schema.FieldText),
		schema.NewField("Year", schema.FieldInt),
		schema.NewField("Date", schema.FieldText),
	} {
		require.NoError(t, s.AddField(f))
	}

	kw := schema.NewIndex("kw")
	kwTitle := schema.NewIndexField("Title")
	kwTitle.Words = true
	require.NoError(t, kw.AddField(kwTitle))
	require.NoError(t, s.AddIndex(kw))

	title := schema.NewIndex("title")
	title.Spelling = true
	titlePhrases := schema.NewIndexField("Title")
	titlePhrases.Phrases = true
	titlePhrases.Weight = 2
	require.NoError(t, title.AddField(titlePhrases))
	require.NoError(t, s.AddIndex(title))

	tags := schema.NewIndex("tags")
	tags.Type = schema.IndexBoolean
	tagValues := schema.NewIndexField("Tags")
	tagValues.Values = true
	tagValues.Count = true
	require.NoError(t, tags.AddField(tagValues))
	require.NoError(t, s.AddIndex(tags))

	lt := schema.NewLookupTable("taglist")
	require.NoError(t, lt.AddField(schema.NewLookupTableField("Tags")))
	require.NoError(t, s.AddLookupTable(lt))

	byDate := schema.NewSortKey("bydate", schema.SortNumber)
	require.NoError(t, byDate.AddField(schema.NewSortKeyField("Date")))
	require.NoError(t, s.AddSortKey(byDate))

	byTitle := schema.NewSortKey("bytitle", schema.SortString)
	byTitleField := schema.NewSortKeyField("Title")
	byTitleField.Length = 5
	require.NoError(t, byTitle.AddField(byTitleField))
	require.NoError(t, s.AddSortKey(byTitle))

	require.NoError(t, s.Compile())
	return s
}

func encode(t *testing.T, s *schema.Schema, fields map[string]any) *Output {
	t.Helper()
	r := record.New(s)
	for name, v := range fields {
		require.NoError(t, r.Set(name, v))
	}
	enc, err := New(s)
	require.NoError(t, err)
	out, err := enc.Encode(r)
	require.NoError(t, err)
	return out
}

func termsWithPrefix(out *Output, prefix string) []string {
	var terms []string
	for _, t := range out.Terms {
		if t.Prefix == prefix {
			terms = append(terms, t.Full())
		}
	}
	return terms
}

func TestWordTerms(t *testing.T) {
	s := testSchema(t)
	out := encode(t, s, map[string]any{"Title": "Hello World"})
	assert.Equal(t, []string{"1:hello", "1:world"}, termsWithPrefix(out, "1:"))
	for _, term := range out.Terms {
		if term.Prefix == "1:" {
			assert.Zero(t, term.Position)
			assert.Equal(t, 1, term.WDF)
		}
	}
}

func TestStopwordsSkippedInWordsKeptInPhrases(t *testing.T) {
	s := testSchema(t)
	out := encode(t, s, map[string]any{"Title": "Le Chat"})
	assert.Equal(t, []string{"1:chat"}, termsWithPrefix(out, "1:"))
	assert.Equal(t, []string{"2:le", "2:chat"}, termsWithPrefix(out, "2:"))
	assert.Equal(t, []string{"chat"}, out.Spellings)

	s.IndexStopwords = true
	out = encode(t, s, map[string]any{"Title": "Le Chat"})
	assert.Equal(t, []string{"1:le", "1:chat"}, termsWithPrefix(out, "1:"))
}

func TestPhrasePositionsAcrossValues(t *testing.T) {
	s := testSchema(t)
	out := encode(t, s, map[string]any{"Title": []string{"a b", "c"}})
	var positions []int
	for _, term := range out.Terms {
		if term.Prefix == "2:" {
			positions = append(positions, term.Position)
			assert.Equal(t, 2, term.WDF)
		}
	}
	assert.Equal(t, []int{1, 2, 3 + PositionGap}, positions)

	doc := out.Document()
	e, ok := doc.Term("2:c")
	require.True(t, ok)
	assert.Equal(t, []int{103}, e.Positions)
}

func TestValueAndCountTerms(t *testing.T) {
	s := testSchema(t)
	out := encode(t, s, map[string]any{"Tags": []string{"Science-Fiction", "Space"}})
	assert.Equal(t, []string{"3:__has2", "3:_science_fiction_", "3:_space_"}, termsWithPrefix(out, "3:"))
	for _, term := range out.Terms {
		if term.Prefix == "3:" {
			assert.Zero(t, term.WDF, "boolean index terms carry no weight")
		}
	}

	out = encode(t, s, map[string]any{"Title": "x"})
	assert.Equal(t, []string{"3:__empty"}, termsWithPrefix(out, "3:"))
}

func TestValueTermTruncation(t *testing.T) {
	long := make([]string, 100)
	for i := range long {
		long[i] = "abcd"
	}
	term := ValueTerm(long, 20)
	assert.Len(t, term, 20)
	assert.Equal(t, "_abcd_abcd_abcd_abc_", term)
	assert.Equal(t, "", ValueTerm(nil, 20))
	assert.Equal(t, "_science_fi", ValueStem([]string{"science", "fi"}, 50))
}

func TestLookupEntries(t *testing.T) {
	s := testSchema(t)
	out := encode(t, s, map[string]any{"Tags": []string{"Science  Fiction", "Space", "Space"}})
	var entries []string
	for _, e := range out.Lookups {
		entries = append(entries, e.Full())
	}
	assert.Equal(t, []string{"T1:Science Fiction", "T1:Space"}, entries)
}

func TestSortValues(t *testing.T) {
	s := testSchema(t)
	out := encode(t, s, map[string]any{"Date": "not-a-number", "Title": "Éléphant rose"})
	require.Len(t, out.SortValues, 2)
	assert.Equal(t, 1, out.SortValues[0].Slot)
	assert.Equal(t, SortableFloat(math.Inf(1)), out.SortValues[0].Value)
	assert.Equal(t, []byte("eleph"), out.SortValues[1].Value)

	out = encode(t, s, map[string]any{"Date": "2024"})
	assert.Equal(t, EmptyStringKey, out.SortValues[1].Value)
	v, ok := FloatFromKey(out.SortValues[0].Value)
	require.True(t, ok)
	assert.Equal(t, 2024.0, v)
}

func TestSortableFloatOrder(t *testing.T) {
	values := []float64{math.Inf(-1), -1e9, -1.5, 0, 0.25, 2, 10, 1e12, math.Inf(1)}
	for i := 1; i < len(values); i++ {
		a, b := SortableFloat(values[i-1]), SortableFloat(values[i])
		assert.Negative(t, bytes.Compare(a, b), "%v < %v", values[i-1], values[i])
	}
	assert.Equal(t, SortableFloat(0), SortableFloat(math.Copysign(0, -1)))
	assert.Equal(t, SortableFloat(math.Inf(1)), NumberKey("n/a"))
	assert.Equal(t, SortableFloat(3.5), NumberKey(" 3,5 "))
}

func TestEncodeIsDeterministic(t *testing.T) {
	s := testSchema(t)
	fields := map[string]any{
		"Title": []string{"Le petit prince", "Vol de nuit"},
		"Tags":  []string{"Roman", "Aviation"},
		"Date":  "1943",
	}
	a := encode(t, s, fields)
	b := encode(t, s, fields)
	assert.Equal(t, a.Terms, b.Terms)
	assert.Equal(t, a.Lookups, b.Lookups)
	assert.Equal(t, a.SortValues, b.SortValues)
	assert.Equal(t, a.Document().Terms(), b.Document().Terms())
}

func TestDocumentBlobRoundTrip(t *testing.T) {
	s := testSchema(t)
	out := encode(t, s, map[string]any{"Title": "Hello", "Year": 2001})
	r, err := record.Decode(s, out.Document().Data())
	require.NoError(t, err)
	year, err := r.First("year")
	require.NoError(t, err)
	assert.Equal(t, int64(2001), year)
}

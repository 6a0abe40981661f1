package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.NewSchema()
	require.NoError(t, s.AddField(schema.NewField("Title", schema.FieldText)))
	require.NoError(t, s.AddField(schema.NewField("Year", schema.FieldInt)))
	require.NoError(t, s.AddField(schema.NewField("Done", schema.FieldBool)))
	require.NoError(t, s.AddField(schema.NewField("Ref", schema.FieldAutoNumber)))
	require.NoError(t, s.Compile())
	return s
}

func TestSetConvertsByFieldType(t *testing.T) {
	r := New(testSchema(t))
	require.NoError(t, r.Set("title", []string{"One", "", "Two"}))
	require.NoError(t, r.Set("Year", "1999"))
	require.NoError(t, r.Set("done", "yes"))
	require.NoError(t, r.Set("ref", 12.0))

	title, err := r.Get("Title")
	require.NoError(t, err)
	assert.Equal(t, []any{"One", "Two"}, title)

	year, err := r.First("year")
	require.NoError(t, err)
	assert.Equal(t, int64(1999), year)

	done, err := r.First("done")
	require.NoError(t, err)
	assert.Equal(t, true, done)

	assert.Equal(t, map[string]any{
		"Title": []any{"One", "Two"},
		"Year":  int64(1999),
		"Done":  true,
		"Ref":   int64(12),
	}, r.Map())
}

func TestSetErrors(t *testing.T) {
	r := New(testSchema(t))
	err := r.Set("nope", "x")
	assert.True(t, errs.IsKind(err, errs.ErrUnknownField))
	assert.True(t, errs.IsEditStateError(err))

	err = r.Set("year", "nineteen")
	assert.True(t, errs.IsKind(err, errs.ErrInvalidValue))

	err = r.Set("year", 3.5)
	assert.True(t, errs.IsKind(err, errs.ErrInvalidValue))
}

func TestSetEmptyClears(t *testing.T) {
	r := New(testSchema(t))
	require.NoError(t, r.Set("title", "x"))
	require.NoError(t, r.Set("title", ""))
	assert.True(t, r.IsEmpty())

	require.NoError(t, r.Set("year", []int{1, 2}))
	require.NoError(t, r.Set("year", nil))
	assert.True(t, r.IsEmpty())
}

func TestBlobRoundTrip(t *testing.T) {
	s := testSchema(t)
	r := New(s)
	require.NoError(t, r.Set("title", []string{"Hello", "World"}))
	require.NoError(t, r.Set("year", 2001))
	require.NoError(t, r.Set("done", false))

	blob, err := Encode(r)
	require.NoError(t, err)
	assert.Equal(t, blobPlain, blob[0])

	back, err := Decode(s, blob)
	require.NoError(t, err)
	assert.Equal(t, r.Map(), back.Map())
	assert.Equal(t, r.IDs(), back.IDs())
}

func TestBlobCompressesLargeRecords(t *testing.T) {
	s := testSchema(t)
	r := New(s)
	long := strings.Repeat("lorem ipsum dolor sit amet ", 100)
	require.NoError(t, r.Set("title", long))

	blob, err := Encode(r)
	require.NoError(t, err)
	assert.Equal(t, blobZstd, blob[0])
	assert.Less(t, len(blob), len(long))

	back, err := Decode(s, blob)
	require.NoError(t, err)
	title, err := back.First("title")
	require.NoError(t, err)
	assert.Equal(t, long, title)
}

func TestDecodeAfterTypeChange(t *testing.T) {
	s := testSchema(t)
	r := New(s)
	require.NoError(t, r.Set("title", "abc"))
	require.NoError(t, r.Set("year", 7))
	blob, err := Encode(r)
	require.NoError(t, err)

	require.NoError(t, schema.SetProp(s.Field("title"), "type", "int"))
	require.NoError(t, schema.SetProp(s.Field("year"), "type", "text"))
	require.NoError(t, s.Compile())

	back, err := Decode(s, blob)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Year": "7"}, back.Map())
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	_, err := Decode(testSchema(t), []byte{9, 1, 2})
	assert.True(t, errs.IsKind(err, errs.ErrCorruptMetadata))
}

func TestBlobSpellings(t *testing.T) {
	s := testSchema(t)
	r := New(s)
	require.NoError(t, r.Set("title", "chat noir"))

	blob, err := EncodeWithSpellings(r, []string{"chat", "noir", "chat"})
	require.NoError(t, err)
	words, ok, err := Spellings(blob)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"chat", "noir", "chat"}, words)

	back, err := Decode(s, blob)
	require.NoError(t, err)
	assert.Equal(t, r.Map(), back.Map())
	assert.Equal(t, r.IDs(), back.IDs())

	blob, err = EncodeWithSpellings(r, nil)
	require.NoError(t, err)
	words, ok, err = Spellings(blob)
	require.NoError(t, err)
	assert.True(t, ok, "an empty list is still recorded")
	assert.Empty(t, words)

	blob, err = Encode(r)
	require.NoError(t, err)
	_, ok, err = Spellings(blob)
	require.NoError(t, err)
	assert.False(t, ok)
}

package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministore/docdb/docdb/errs"
)

// sample builds a small compiled schema: two fields, a word index on the
// title, a boolean index on the tags, an alias, a lookup table and a sort key.
func sample(t *testing.T) *Schema {
	t.Helper()
	s := NewSchema()
	s.Label = "Library"
	s.Stopwords = "le la les"
	require.NoError(t, s.AddField(NewField("Title", FieldText)))
	require.NoError(t, s.AddField(NewField("Tags", FieldText)))
	require.NoError(t, s.AddField(NewField("Year", FieldInt)))

	kw := NewIndex("kw")
	kwTitle := NewIndexField("Title")
	kwTitle.Words = true
	kwTitle.Phrases = true
	require.NoError(t, kw.AddField(kwTitle))
	require.NoError(t, s.AddIndex(kw))

	tags := NewIndex("tags")
	tags.Type = IndexBoolean
	tagsField := NewIndexField("Tags")
	tagsField.Values = true
	require.NoError(t, tags.AddField(tagsField))
	require.NoError(t, s.AddIndex(tags))

	all := NewAlias("all")
	require.NoError(t, all.AddIndex(NewAliasIndex("kw")))
	require.NoError(t, s.AddAlias(all))

	lt := NewLookupTable("taglist")
	require.NoError(t, lt.AddField(NewLookupTableField("Tags")))
	require.NoError(t, s.AddLookupTable(lt))

	sk := NewSortKey("byyear", SortNumber)
	require.NoError(t, sk.AddField(NewSortKeyField("Year")))
	require.NoError(t, s.AddSortKey(sk))

	require.NoError(t, s.Compile())
	return s
}

func TestCompileAssignsIDs(t *testing.T) {
	s := NewSchema()
	require.NoError(t, s.AddField(NewField("Title", "")))
	require.NoError(t, s.Compile())

	f, ok := s.Fields.Get("title").(*Field)
	require.True(t, ok)
	assert.Equal(t, 1, f.ID)
	assert.Equal(t, FieldText, f.Type)
	assert.Equal(t, 1, s.LastFieldID)
	assert.True(t, s.Compiled())
}

func TestCompileIDStability(t *testing.T) {
	s := sample(t)
	before, err := ToJSON(s)
	require.NoError(t, err)
	require.NoError(t, s.Compile())
	after, err := ToJSON(s)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	removed := s.Field("Year").ID
	require.NotNil(t, s.Fields.Remove("year"))
	require.NotNil(t, s.SortKeys.Remove("byyear"))
	require.NoError(t, s.AddField(NewField("Pages", FieldInt)))
	require.NoError(t, s.Compile())
	assert.Greater(t, s.Field("Pages").ID, removed)
}

func TestCompileResolvesReferences(t *testing.T) {
	s := sample(t)
	assert.Equal(t, s.Field("Title").ID, s.Index("kw").Fields()[0].ID)
	assert.Equal(t, s.Index("kw").ID, s.Alias("all").Indices()[0].ID)
	assert.Equal(t, s.Field("Year").ID, s.SortKey("byyear").Fields()[0].ID)

	// a renamed field is followed through its id
	require.NoError(t, SetProp(s.Field("Title"), "name", "Heading"))
	require.NoError(t, s.Compile())
	assert.Equal(t, "Heading", s.Index("kw").Fields()[0].Name)
	assert.NotNil(t, Children(s.Index("kw")).Get("heading"))
}

func TestCompileErrors(t *testing.T) {
	s := NewSchema()
	f := NewField("Title", "")
	f.Type = "float"
	require.NoError(t, s.AddField(f))
	assert.True(t, errs.IsKind(s.Compile(), errs.ErrInvalidFieldType))

	s = NewSchema()
	ix := NewIndex("kw")
	require.NoError(t, ix.AddField(NewIndexField("Missing")))
	require.NoError(t, s.AddIndex(ix))
	err := s.Compile()
	assert.True(t, errs.IsKind(err, errs.ErrUnknownFieldRef))
	assert.True(t, errs.IsSchemaError(err))

	s = NewSchema()
	a := NewAlias("a")
	a.Type = "fuzzy"
	require.NoError(t, s.AddAlias(a))
	assert.True(t, errs.IsKind(s.Compile(), errs.ErrInvalidIndexType))
}

func TestDuplicateNormalizedName(t *testing.T) {
	s := NewSchema()
	require.NoError(t, s.AddField(NewField("Título", "")))
	err := s.AddField(NewField("titulo", ""))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.ErrDuplicateName))

	require.NoError(t, s.AddField(NewField("Other", "")))
	err = SetProp(s.Field("other"), "name", "TITULO")
	assert.True(t, errs.IsKind(err, errs.ErrDuplicateName))
	assert.Equal(t, "Other", s.Field("other").Name)
}

func TestCreateAndChildTypes(t *testing.T) {
	_, err := Create("widget", nil)
	assert.True(t, errs.IsKind(err, errs.ErrUnknownNodeType))

	n, err := Create("field", map[string]any{"name": "Title", "type": "int", "color": "red"})
	require.NoError(t, err)
	f := n.(*Field)
	assert.Equal(t, FieldInt, f.Type)
	assert.Equal(t, "red", f.Extra["color"])

	s := NewSchema()
	err = s.Indices.Add(f)
	assert.True(t, errs.IsKind(err, errs.ErrInvalidChildType))
}

func TestRemovePropResetsDefault(t *testing.T) {
	f := NewIndexField("Title")
	require.NoError(t, SetProp(f, "weight", "5"))
	assert.Equal(t, 5, f.Weight)
	require.NoError(t, RemoveProp(f, "weight"))
	assert.Equal(t, 1, f.Weight)

	require.NoError(t, SetProp(f, "note", 42))
	v, ok := GetProp(f, "note")
	require.True(t, ok)
	assert.Equal(t, "42", v)
	require.NoError(t, RemoveProp(f, "note"))
	_, ok = GetProp(f, "note")
	assert.False(t, ok)

	assert.Error(t, SetProp(f, "weight", "heavy"))
}

func TestValidate(t *testing.T) {
	s := sample(t)
	require.NoError(t, s.Validate())

	kwTitle := s.Index("kw").Fields()[0]
	kwTitle.Weight = 0
	kwTitle.Start = "5"
	kwTitle.End = "2"
	s.Fields.Nodes()[0].(*Field).Name = "Main Title"
	bare := NewIndex("empty")
	require.NoError(t, s.AddIndex(bare))

	err := s.Validate()
	require.Error(t, err)
	var issues errs.ValidationIssues
	require.ErrorAs(t, err, &issues)
	assert.True(t, issues.HasErrors())

	messages := map[string]errs.Severity{}
	for _, issue := range issues {
		messages[issue.Message] = issue.Severity
	}
	assert.Equal(t, errs.SeverityError, messages["weight must be at least 1, got 0"])
	assert.Equal(t, errs.SeverityError, messages["start 5 is after end 2"])
	assert.Equal(t, errs.SeverityError, messages[`name "Main Title" contains white space`])
	assert.Equal(t, errs.SeverityWarning, messages["index has no fields"])
}

func TestValidateAdvisory(t *testing.T) {
	s := sample(t)
	s.Index("tags").Spelling = true
	require.NoError(t, s.AddField(NewField("Notes", "")))

	err := s.Validate()
	require.Error(t, err)
	issues := err.(errs.ValidationIssues)
	assert.False(t, issues.HasErrors())
	assert.Len(t, issues, 2)
}

func TestCompareSelf(t *testing.T) {
	s := sample(t)
	changes, err := Compare(s, s)
	require.NoError(t, err)
	assert.Empty(t, changes)

	clone, err := s.Clone()
	require.NoError(t, err)
	changes, err = Compare(s, clone)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.False(t, changes.MustReindex())
}

func TestCompareNewIndex(t *testing.T) {
	old := sample(t)
	updated, err := old.Clone()
	require.NoError(t, err)
	ix := NewIndex("newidx")
	f := NewIndexField("Tags")
	f.Words = true
	require.NoError(t, ix.AddField(f))
	require.NoError(t, updated.AddIndex(ix))

	changes, err := Compare(old, updated)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, LevelReindexRequired, changes[0].Level)
	assert.Contains(t, changes[0].Message, "newidx")
	assert.True(t, changes.MustReindex())
}

func TestCompareSeverities(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(t *testing.T, s *Schema)
		level  int
	}{
		{"field type", func(t *testing.T, s *Schema) {
			require.NoError(t, SetProp(s.Field("Tags"), "type", "int"))
		}, LevelReindexRequired},
		{"field rename", func(t *testing.T, s *Schema) {
			require.NoError(t, SetProp(s.Field("Tags"), "name", "Keywords"))
		}, LevelLive},
		{"field label", func(t *testing.T, s *Schema) {
			require.NoError(t, SetProp(s.Field("Tags"), "label", "Keywords"))
		}, LevelLive},
		{"field stopwords", func(t *testing.T, s *Schema) {
			require.NoError(t, SetProp(s.Field("Title"), "stopwords", "the a"))
		}, LevelReindexRequired},
		{"field and sort key field deleted", func(t *testing.T, s *Schema) {
			s.Fields.Remove("year")
			Children(s.SortKey("byyear")).Remove("year")
		}, LevelReindexRequired},
		{"spelling on", func(t *testing.T, s *Schema) {
			require.NoError(t, SetProp(s.Index("kw"), "spelling", true))
		}, LevelReindexRequired},
		{"index field added", func(t *testing.T, s *Schema) {
			f := NewIndexField("Tags")
			f.Words = true
			require.NoError(t, s.Index("kw").AddField(f))
		}, LevelReindexRequired},
		{"alias changed", func(t *testing.T, s *Schema) {
			require.NoError(t, s.Alias("all").AddIndex(NewAliasIndex("tags")))
		}, LevelLive},
		{"schema label", func(t *testing.T, s *Schema) {
			require.NoError(t, SetProp(s, "label", "Archive"))
		}, LevelLive},
		{"schema stopwords", func(t *testing.T, s *Schema) {
			require.NoError(t, SetProp(s, "stopwords", "un une"))
		}, LevelReindexRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			old := sample(t)
			updated, err := old.Clone()
			require.NoError(t, err)
			tc.mutate(t, updated)
			changes, err := Compare(old, updated)
			require.NoError(t, err)
			require.NotEmpty(t, changes)
			assert.Equal(t, tc.level, changes.Max(), "%v", changes)
		})
	}
}

func TestCompareSpellingOffAndReorder(t *testing.T) {
	old := sample(t)
	old.Index("kw").Spelling = true

	updated, err := old.Clone()
	require.NoError(t, err)
	require.NoError(t, SetProp(updated.Index("kw"), "spelling", false))
	changes, err := Compare(old, updated)
	require.NoError(t, err)
	assert.Equal(t, LevelReindexRecommended, changes.Max())

	updated, err = old.Clone()
	require.NoError(t, err)
	require.NoError(t, updated.Fields.Move("year", 0))
	changes, err = Compare(old, updated)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Message: "fields reordered", Level: LevelLive}, changes[0])
}

func TestJSONRoundTrip(t *testing.T) {
	s := sample(t)
	require.NoError(t, SetProp(s.Field("Title"), "color", "blue"))
	s.Description = "A small <library> & more"
	require.NoError(t, s.Compile())

	data, err := ToJSON(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"_nodetype": "schema"`)
	assert.NotContains(t, string(data), `"weight"`)

	back, err := FromJSON(data)
	require.NoError(t, err)
	require.NoError(t, back.Compile())
	assert.True(t, Equal(s, back))
	assert.Equal(t, "blue", back.Field("title").Extra["color"])
}

func TestXMLRoundTrip(t *testing.T) {
	s := sample(t)
	s.Description = "  A small <library> & more\nsecond line "
	require.NoError(t, SetProp(s.Index("kw"), "x-legacy id", "7"))
	require.NoError(t, SetProp(s.Field("Year"), "unit", "AD"))
	require.NoError(t, s.Compile())

	data, err := ToXML(s)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `<field _id="3" name="Year" type="int" unit="AD">`)
	assert.Contains(t, text, "<description>")
	assert.Contains(t, text, "<children>")

	back, err := FromXML(data)
	require.NoError(t, err)
	require.NoError(t, back.Compile())
	assert.True(t, Equal(s, back))
	assert.Equal(t, s.Description, back.Description)
}

func TestBinaryRoundTrip(t *testing.T) {
	s := sample(t)
	data, err := MarshalBinary(s)
	require.NoError(t, err)

	back, err := UnmarshalBinary(data)
	require.NoError(t, err)
	require.NoError(t, back.Compile())
	assert.True(t, Equal(s, back))

	_, err = UnmarshalBinary([]byte("nope"))
	assert.True(t, errs.IsKind(err, errs.ErrSchemaFormat))
}

func TestLegacyXML(t *testing.T) {
	legacy := `<?xml version="1.0"?>
<schema label="Old">
  <fields>
    <field name="Title"/>
    <field name="Author" type="text"/>
    <field name="Pages" type="integer"/>
  </fields>
  <indexes>
    <index name="kw">
      <fields>
        <field name="Title" words="true" weight="2"/>
      </fields>
    </index>
  </indexes>
  <aliases>
    <alias name="everything"><index name="kw"/></alias>
  </aliases>
  <lookups>
    <lookup name="authors"><field name="Author" endvalue="3"/></lookup>
  </lookups>
  <sort>
    <sortkey name="bypages" type="number"><field name="Pages" length="8"/></sortkey>
  </sort>
</schema>`

	s, err := FromXML([]byte(legacy))
	require.NoError(t, err)
	require.NoError(t, s.Compile())

	assert.Equal(t, "Old", s.Label)
	assert.Equal(t, FieldInt, s.Field("pages").Type)
	kw := s.Index("kw")
	require.NotNil(t, kw)
	require.Len(t, kw.Fields(), 1)
	assert.True(t, kw.Fields()[0].Words)
	assert.Equal(t, 2, kw.Fields()[0].Weight)
	assert.Equal(t, kw.ID, s.Alias("everything").Indices()[0].ID)
	assert.Equal(t, 3, s.LookupTable("authors").Fields()[0].EndValue)
	assert.Equal(t, 8, s.SortKey("bypages").Fields()[0].Length)

	// the upgraded schema is written back in the current layout
	data, err := ToXML(s)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "<indices>"))
	assert.False(t, strings.Contains(string(data), "<indexes>"))
}

func TestFromXMLRejectsOtherRoots(t *testing.T) {
	_, err := FromXML([]byte(`<fields/>`))
	assert.True(t, errs.IsKind(err, errs.ErrSchemaFormat))

	_, err = FromXML([]byte(`<schema><fields><index name="x"/></fields></schema>`))
	assert.True(t, errs.IsKind(err, errs.ErrInvalidChildType))
}

package docdb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ministore/docdb/docdb"
	"github.com/ministore/docdb/docdb/schema"
	"github.com/ministore/docdb/docdb/storage/sqlite"
)

// bookSchema: fields Title, Author, Tags, Year and the autonumber Ref;
// indices title (words, spelling), tags (boolean values); lookup table
// taglist; sort keys bytitle and byyear.
func bookSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.NewSchema()
	s.Stopwords = "le la les"
	for _, f := range []*schema.Field{
		schema.NewField("Title", schema.FieldText),
		schema.NewField("Author", schema.FieldText),
		schema.NewField("Tags", schema.FieldText),
		schema.NewField("Year", schema.FieldInt),
		schema.NewField("Ref", schema.FieldAutoNumber),
	} {
		require.NoError(t, s.AddField(f))
	}

	title := schema.NewIndex("title")
	title.Spelling = true
	titleWords := schema.NewIndexField("Title")
	titleWords.Words = true
	titleWords.Phrases = true
	require.NoError(t, title.AddField(titleWords))
	require.NoError(t, s.AddIndex(title))

	tags := schema.NewIndex("tags")
	tags.Type = schema.IndexBoolean
	tagValues := schema.NewIndexField("Tags")
	tagValues.Values = true
	require.NoError(t, tags.AddField(tagValues))
	require.NoError(t, s.AddIndex(tags))

	lt := schema.NewLookupTable("taglist")
	require.NoError(t, lt.AddField(schema.NewLookupTableField("Tags")))
	require.NoError(t, s.AddLookupTable(lt))

	byTitle := schema.NewSortKey("bytitle", schema.SortString)
	require.NoError(t, byTitle.AddField(schema.NewSortKeyField("Title")))
	require.NoError(t, s.AddSortKey(byTitle))

	byYear := schema.NewSortKey("byyear", schema.SortNumber)
	require.NoError(t, byYear.AddField(schema.NewSortKeyField("Year")))
	require.NoError(t, s.AddSortKey(byYear))
	return s
}

type book struct {
	title, author string
	tags          []string
	year          int
}

var library = []book{
	{"Le chat noir", "Edgar Poe", []string{"Nouvelles", "Fantastique"}, 1843},
	{"Le chat botté", "Charles Perrault", []string{"Contes"}, 1697},
	{"Les chats de Paris", "Jean Dupont", []string{"Documentaire"}, 1990},
	{"Le chien des Baskerville", "Arthur Conan Doyle", []string{"Policier"}, 1902},
	{"Un chat en hiver", "Marie Durand", []string{"Nouvelles"}, 2001},
	{"Contes du chat perché", "Marcel Aymé", []string{"Contes"}, 1934},
}

// backends runs fn against a database in memory and one in SQLite.
func backends(t *testing.T, fn func(t *testing.T, db *docdb.Database)) {
	t.Run("memory", func(t *testing.T) {
		db, err := docdb.CreateMemory(context.Background(), bookSchema(t), docdb.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		fn(t, db)
	})
	t.Run("sqlite", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "books")
		db, err := docdb.Create(context.Background(), sqlite.New(dir), bookSchema(t), docdb.Options{})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		fn(t, db)
	})
}

func addBook(t *testing.T, db *docdb.Database, b book) uint32 {
	t.Helper()
	edit, err := db.AddRecord()
	require.NoError(t, err)
	require.NoError(t, edit.Set("Title", b.title))
	require.NoError(t, edit.Set("Author", b.author))
	require.NoError(t, edit.Set("Tags", b.tags))
	require.NoError(t, edit.Set("Year", b.year))
	id, err := edit.Save(context.Background())
	require.NoError(t, err)
	return id
}

func fill(t *testing.T, db *docdb.Database) []uint32 {
	t.Helper()
	ids := make([]uint32, len(library))
	for i, b := range library {
		ids[i] = addBook(t, db, b)
	}
	return ids
}

func search(t *testing.T, db *docdb.Database, opts docdb.SearchOptions) *docdb.Session {
	t.Helper()
	s := db.NewSession()
	_, err := s.Search(context.Background(), opts)
	require.NoError(t, err)
	return s
}

func titles(t *testing.T, s *docdb.Session) []string {
	t.Helper()
	var out []string
	for view, err := range s.Records(context.Background()) {
		require.NoError(t, err)
		title, err := view.Record.First("Title")
		require.NoError(t, err)
		out = append(out, title.(string))
	}
	return out
}

func TestCreateAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "books")

	_, err := docdb.Open(ctx, sqlite.New(dir), docdb.Options{})
	assert.True(t, docdb.IsKind(err, docdb.ErrNotFound), "got %v", err)

	db, err := docdb.Create(ctx, sqlite.New(dir), bookSchema(t), docdb.Options{})
	require.NoError(t, err)
	id := addBook(t, db, library[0])
	require.NoError(t, db.Close())

	_, err = docdb.Create(ctx, sqlite.New(dir), bookSchema(t), docdb.Options{})
	assert.True(t, docdb.IsKind(err, docdb.ErrExists), "got %v", err)

	db, err = docdb.Open(ctx, sqlite.New(dir), docdb.Options{})
	require.NoError(t, err)
	defer db.Close()

	assert.NotNil(t, db.Schema().Field("Title"))
	assert.NotEmpty(t, db.Schema().Creation)
	rec, err := db.Get(ctx, id)
	require.NoError(t, err)
	title, err := rec.First("Title")
	require.NoError(t, err)
	assert.Equal(t, "Le chat noir", title)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", stats.Backend)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, id, stats.LastDocID)
	assert.Equal(t, 5, stats.Fields)
}

func TestCreateRejectsInvalidSchema(t *testing.T) {
	s := schema.NewSchema()
	ix := schema.NewIndex("title")
	require.NoError(t, ix.AddField(schema.NewIndexField("Missing")))
	require.NoError(t, s.AddIndex(ix))

	_, err := docdb.CreateMemory(context.Background(), s, docdb.Options{})
	assert.Error(t, err)
}

func TestRecordEdits(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		id := addBook(t, db, library[0])

		edit, err := db.EditRecord(ctx, id)
		require.NoError(t, err)
		assert.False(t, edit.IsNew())
		require.NoError(t, edit.Set("Title", "Le chat blanc"))
		saved, err := edit.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, saved)

		rec, err := db.Get(ctx, id)
		require.NoError(t, err)
		title, _ := rec.First("Title")
		assert.Equal(t, "Le chat blanc", title)
		tags, _ := rec.Get("Tags")
		assert.Equal(t, []any{"Nouvelles", "Fantastique"}, tags)

		s := search(t, db, docdb.SearchOptions{Equation: []string{"noir"}})
		assert.Equal(t, 0, s.Count(docdb.CountEstimated))
		s = search(t, db, docdb.SearchOptions{Equation: []string{"blanc"}})
		assert.Equal(t, 1, s.Count(docdb.CountEstimated))

		// one edit at a time
		edit, err = db.AddRecord()
		require.NoError(t, err)
		_, err = db.AddRecord()
		assert.True(t, docdb.IsKind(err, docdb.ErrEditInProgress))
		assert.True(t, docdb.IsKind(db.DeleteRecord(ctx, id), docdb.ErrEditInProgress))
		require.NoError(t, edit.Cancel())

		_, err = edit.Save(ctx)
		assert.True(t, docdb.IsKind(err, docdb.ErrNoEdit))
		assert.True(t, docdb.IsKind(edit.Set("Title", "x"), docdb.ErrNoEdit))

		stats, err := db.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Documents)
	})
}

func TestUnknownField(t *testing.T) {
	db, err := docdb.CreateMemory(context.Background(), bookSchema(t), docdb.Options{})
	require.NoError(t, err)
	edit, err := db.AddRecord()
	require.NoError(t, err)
	assert.True(t, docdb.IsKind(edit.Set("Nope", "x"), docdb.ErrUnknownField))
	assert.True(t, docdb.IsKind(edit.Set("Year", "not a number"), docdb.ErrInvalidValue))
}

func TestAutoNumber(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		ref := func(id uint32) any {
			rec, err := db.Get(ctx, id)
			require.NoError(t, err)
			v, err := rec.First("Ref")
			require.NoError(t, err)
			return v
		}

		first := addBook(t, db, library[0])
		second := addBook(t, db, library[1])
		assert.Equal(t, int64(1), ref(first))
		assert.Equal(t, int64(2), ref(second))

		edit, err := db.AddRecord()
		require.NoError(t, err)
		require.NoError(t, edit.Set("Title", "Numéroté"))
		require.NoError(t, edit.Set("Ref", 10))
		third, err := edit.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(10), ref(third))

		fourth := addBook(t, db, library[2])
		assert.Equal(t, int64(11), ref(fourth))

		// editing keeps the number
		edit, err = db.EditRecord(ctx, first)
		require.NoError(t, err)
		require.NoError(t, edit.Set("Year", 1845))
		_, err = edit.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), ref(first))
	})
}

func TestDeleteRecord(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		ids := fill(t, db)

		require.NoError(t, db.DeleteRecord(ctx, ids[0]))
		_, err := db.Get(ctx, ids[0])
		assert.True(t, docdb.IsKind(err, docdb.ErrNotFound), "got %v", err)
		assert.True(t, docdb.IsKind(db.DeleteRecord(ctx, ids[0]), docdb.ErrNotFound))

		s := search(t, db, docdb.SearchOptions{Equation: []string{"noir"}})
		assert.Equal(t, 0, s.Count(docdb.CountEstimated))
		assert.Equal(t, 1.0, testutil.ToFloat64(db.Metrics().RecordsWrittenTotal.WithLabelValues("delete")))
	})
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "books")
	db, err := docdb.Create(ctx, sqlite.New(dir), bookSchema(t), docdb.Options{})
	require.NoError(t, err)
	id := addBook(t, db, library[0])
	require.NoError(t, db.Close())

	db, err = docdb.Open(ctx, sqlite.New(dir), docdb.Options{ReadOnly: true})
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, db.ReadOnly())

	_, err = db.AddRecord()
	assert.True(t, docdb.IsKind(err, docdb.ErrReadOnly))
	_, err = db.EditRecord(ctx, id)
	assert.True(t, docdb.IsKind(err, docdb.ErrReadOnly))
	assert.True(t, docdb.IsKind(db.DeleteRecord(ctx, id), docdb.ErrReadOnly))
	_, err = db.Reindex(ctx)
	assert.True(t, docdb.IsKind(err, docdb.ErrReadOnly))

	s := search(t, db, docdb.SearchOptions{Equation: []string{"chat"}})
	assert.Equal(t, 1, s.Count(docdb.CountEstimated))
}

func TestSearch(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		ids := fill(t, db)

		s := db.NewSession()
		assert.True(t, s.EOF())
		assert.Nil(t, s.Current())

		found, err := s.Search(ctx, docdb.SearchOptions{Equation: []string{"chat"}})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 4, s.Count(docdb.CountEstimated))
		assert.Equal(t, 4, s.Count(docdb.CountLower))
		assert.Equal(t, 4, s.Count(docdb.CountUpper))
		info := s.Info()
		assert.True(t, info.Probabilistic)
		assert.Equal(t, []string{"chat"}, info.Equations)
		assert.Equal(t, "bm25", info.Weighting)

		view := s.Current()
		require.NotNil(t, view)
		assert.Equal(t, 1, view.Rank)
		assert.Greater(t, view.Score, 0.0)
		assert.Equal(t, 100, view.Percent)
		terms, err := s.MatchingTerms(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, terms)

		// "chats" is a different word
		assert.Len(t, titles(t, s), 4)
		assert.True(t, s.EOF())
		_, err = s.MatchingTerms(ctx)
		assert.True(t, docdb.IsKind(err, docdb.ErrNoCurrentRecord))

		s = search(t, db, docdb.SearchOptions{Equation: []string{"tags:[Contes]"}, Sort: "+"})
		assert.Equal(t, []string{"Le chat botté", "Contes du chat perché"}, titles(t, s))

		s = search(t, db, docdb.SearchOptions{Equation: []string{"tags:[Contes]"}})
		assert.Equal(t, []string{"Contes du chat perché", "Le chat botté"}, titles(t, s))
		assert.False(t, s.Info().Probabilistic)

		s = search(t, db, docdb.SearchOptions{Equation: []string{"chat"}, Sort: "byyear"})
		assert.Equal(t, []string{"Le chat botté", "Le chat noir", "Contes du chat perché", "Un chat en hiver"}, titles(t, s))

		s = search(t, db, docdb.SearchOptions{Equation: []string{"chat"}, Sort: "-bytitle"})
		assert.Equal(t, []string{"Un chat en hiver", "Le chat noir", "Le chat botté", "Contes du chat perché"}, titles(t, s))

		s = search(t, db, docdb.SearchOptions{
			Equation: []string{"chat"},
			Filter:   map[string][]string{"tags": {"Nouvelles"}},
			Sort:     "+",
		})
		assert.Equal(t, []string{"Le chat noir", "Un chat en hiver"}, titles(t, s))

		s = search(t, db, docdb.SearchOptions{Equation: []string{`"chat noir"`}})
		assert.Equal(t, []string{"Le chat noir"}, titles(t, s))

		s = search(t, db, docdb.SearchOptions{Equation: []string{"chat", "-noir"}, Sort: "+"})
		assert.Equal(t, 3, s.Count(docdb.CountEstimated))

		s = search(t, db, docdb.SearchOptions{
			Auto: map[string][]string{"tags": {"Contes"}, "-title": {"botté"}},
		})
		assert.Equal(t, []string{"Contes du chat perché"}, titles(t, s))

		found, err = db.NewSession().Search(ctx, docdb.SearchOptions{Equation: []string{"licorne"}})
		require.NoError(t, err)
		assert.False(t, found)

		s = search(t, db, docdb.SearchOptions{DocSet: map[string][]string{"tags": {"Policier"}}})
		require.NotNil(t, s.Current())
		assert.Equal(t, ids[3], s.Current().ID)
	})
}

func TestSearchErrors(t *testing.T) {
	db, err := docdb.CreateMemory(context.Background(), bookSchema(t), docdb.Options{})
	require.NoError(t, err)
	fill(t, db)
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		opts docdb.SearchOptions
		kind docdb.ErrorKind
	}{
		{"no criteria", docdb.SearchOptions{}, docdb.ErrNoSearchCriteria},
		{"syntax", docdb.SearchOptions{Equation: []string{"(chat"}}, docdb.ErrQuerySyntax},
		{"unknown index", docdb.SearchOptions{Auto: map[string][]string{"nope": {"x"}}}, docdb.ErrUnknownIndex},
		{"unknown sort", docdb.SearchOptions{Equation: []string{"chat"}, Sort: "nope"}, docdb.ErrSortSpec},
		{"unknown collapse", docdb.SearchOptions{Equation: []string{"chat"}, Collapse: "nope"}, docdb.ErrSortSpec},
		{"unknown facet", docdb.SearchOptions{Equation: []string{"chat"}, Facets: []string{"nope"}}, docdb.ErrUnknownLookup},
		{"weighting", docdb.SearchOptions{Equation: []string{"chat"}, Weighting: "nope"}, docdb.ErrInvalidValue},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := db.NewSession()
			found, err := s.Search(ctx, tc.opts)
			assert.False(t, found)
			assert.True(t, docdb.IsKind(err, tc.kind), "got %v", err)
			assert.True(t, s.EOF())
		})
	}
}

func TestSearchPaging(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		fill(t, db)
		all := docdb.SearchOptions{Equation: []string{"-licorne"}, Sort: "+", Max: docdb.Limit(2)}

		page := func(start int) (*docdb.Session, []string) {
			opts := all
			opts.Start = start
			s := search(t, db, opts)
			return s, titles(t, s)
		}

		s, got := page(1)
		assert.Equal(t, []string{"Le chat noir", "Le chat botté"}, got)
		assert.Equal(t, 6, s.Count(docdb.CountEstimated))

		s, got = page(3)
		assert.Equal(t, []string{"Les chats de Paris", "Le chien des Baskerville"}, got)
		assert.Equal(t, 3, s.Info().Start)

		// past the end shows the last page
		s, got = page(42)
		assert.Equal(t, []string{"Un chat en hiver", "Contes du chat perché"}, got)
		assert.Equal(t, 5, s.Info().Start)

		opts := all
		opts.Start = 2
		s = search(t, db, opts)
		assert.Equal(t, 2, s.Current().Rank)

		opts = all
		opts.Max = docdb.Limit(docdb.Unlimited)
		s = search(t, db, opts)
		assert.Len(t, titles(t, s), 6)

		opts = all
		opts.Max = docdb.Limit(0)
		s = db.NewSession()
		found, err := s.Search(ctx, opts)
		require.NoError(t, err)
		assert.False(t, found, "a zero page size only counts")
		assert.Nil(t, s.Current())
		assert.True(t, s.EOF())
		assert.Equal(t, 6, s.Count(docdb.CountEstimated))
		assert.Equal(t, docdb.CountOnly, s.Info().Max)

		// unset falls back to the default page size
		opts = all
		opts.Max = nil
		s = search(t, db, opts)
		assert.Len(t, titles(t, s), 6)
		assert.Equal(t, docdb.DefaultMax, s.Info().Max)

		opts = all
		opts.Max = docdb.Limit(-5)
		_, err = db.NewSession().Search(ctx, opts)
		assert.True(t, docdb.IsKind(err, docdb.ErrInvalidValue), "got %v", err)
	})
}

func TestSearchDefaults(t *testing.T) {
	opts := docdb.Options{}
	opts.SearchDefaults.DefaultEquation = []string{"tags:[Contes]"}
	opts.SearchDefaults.Sort = "+"
	db, err := docdb.CreateMemory(context.Background(), bookSchema(t), opts)
	require.NoError(t, err)
	fill(t, db)

	s := search(t, db, docdb.SearchOptions{})
	assert.Equal(t, []string{"Le chat botté", "Contes du chat perché"}, titles(t, s))

	s = search(t, db, docdb.SearchOptions{Equation: []string{"chien"}})
	assert.Equal(t, []string{"Le chien des Baskerville"}, titles(t, s))
}

func TestCollapse(t *testing.T) {
	db, err := docdb.CreateMemory(context.Background(), bookSchema(t), docdb.Options{})
	require.NoError(t, err)
	fill(t, db)
	addBook(t, db, book{"Le chat noir", "Autre", []string{"Contes"}, 2020})

	s := search(t, db, docdb.SearchOptions{Equation: []string{"chat"}, Collapse: "bytitle", Sort: "+"})
	assert.Equal(t, 4, s.Count(docdb.CountEstimated))
	require.NotNil(t, s.Current())
	assert.Equal(t, 1, s.Current().Collapsed)
}

func TestFacets(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		fill(t, db)
		s := search(t, db, docdb.SearchOptions{Equation: []string{"chat"}, Facets: []string{"taglist"}})

		facets, err := s.Facets("taglist")
		require.NoError(t, err)
		assert.Equal(t, []docdb.FacetEntry{
			{Value: "Contes", Count: 2},
			{Value: "Nouvelles", Count: 2},
			{Value: "Fantastique", Count: 1},
		}, facets)

		_, err = s.Facets("other")
		assert.True(t, docdb.IsKind(err, docdb.ErrUnknownLookup))
	})
}

func TestSpellingSuggestion(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		fill(t, db)

		s := db.NewSession()
		found, err := s.Search(ctx, docdb.SearchOptions{Equation: []string{"title:chta noir"}, Spelling: true})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "title:chat noir", s.Info().Suggestion)

		s = search(t, db, docdb.SearchOptions{Equation: []string{"chat"}})
		suggestion, err := s.Suggestion(ctx)
		require.NoError(t, err)
		assert.Empty(t, suggestion)

		// deleted records leave the dictionary
		for view, err := range search(t, db, docdb.SearchOptions{Equation: []string{"hiver"}}).Records(ctx) {
			require.NoError(t, err)
			require.NoError(t, db.DeleteRecord(ctx, view.ID))
		}
		s = search(t, db, docdb.SearchOptions{Equation: []string{"hivr"}})
		suggestion, err = s.Suggestion(ctx)
		require.NoError(t, err)
		assert.Empty(t, suggestion)
	})
}

func TestSpellingAfterSchemaChange(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		fill(t, db)

		next, err := db.Schema().Clone()
		require.NoError(t, err)
		next.Index("title").Spelling = false
		_, err = db.SetSchema(ctx, next)
		require.NoError(t, err)

		// words stored before the change still leave the dictionary
		for view, err := range search(t, db, docdb.SearchOptions{Equation: []string{"hiver"}}).Records(ctx) {
			require.NoError(t, err)
			require.NoError(t, db.DeleteRecord(ctx, view.ID))
		}
		s := search(t, db, docdb.SearchOptions{Equation: []string{"hivr"}})
		suggestion, err := s.Suggestion(ctx)
		require.NoError(t, err)
		assert.Empty(t, suggestion)

		// a record saved while spelling was off removes nothing once it is on
		quiet := addBook(t, db, book{"Le hibou savant", "Anne Roux", []string{"Contes"}, 2010})
		next, err = db.Schema().Clone()
		require.NoError(t, err)
		next.Index("title").Spelling = true
		_, err = db.SetSchema(ctx, next)
		require.NoError(t, err)
		other := addBook(t, db, book{"Un hibou", "Anne Roux", []string{"Contes"}, 2012})

		edit, err := db.EditRecord(ctx, quiet)
		require.NoError(t, err)
		require.NoError(t, edit.Set("Year", 2011))
		_, err = edit.Save(ctx)
		require.NoError(t, err)
		require.NoError(t, db.DeleteRecord(ctx, other))

		s = search(t, db, docdb.SearchOptions{Equation: []string{"hibuo"}})
		suggestion, err = s.Suggestion(ctx)
		require.NoError(t, err)
		assert.Equal(t, "hibou", suggestion)
	})
}

func TestLookup(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		fill(t, db)

		results, err := db.Lookup(ctx, "taglist", "co", 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Contes", results[0].Value)
		assert.Equal(t, 2, results[0].Count)
		assert.Equal(t, "[Co]ntes", results[0].Highlight("[", "]"))

		results, err = db.Lookup(ctx, "title", "ch", 10)
		require.NoError(t, err)
		var values []string
		for _, r := range results {
			values = append(values, r.Value)
		}
		assert.Equal(t, []string{"chat", "chats", "chien"}, values)

		_, err = db.Lookup(ctx, "nope", "x", 10)
		assert.True(t, docdb.IsKind(err, docdb.ErrUnknownLookup))
		assert.Equal(t, 2.0, testutil.ToFloat64(db.Metrics().LookupsTotal.WithLabelValues("table"))+
			testutil.ToFloat64(db.Metrics().LookupsTotal.WithLabelValues("term")))
	})
}

func TestSetSchemaAndReindex(t *testing.T) {
	backends(t, func(t *testing.T, db *docdb.Database) {
		ctx := context.Background()
		ids := fill(t, db)

		next, err := db.Schema().Clone()
		require.NoError(t, err)
		author := schema.NewIndex("author")
		authorWords := schema.NewIndexField("Author")
		authorWords.Words = true
		require.NoError(t, author.AddField(authorWords))
		require.NoError(t, next.AddIndex(author))

		changes, err := db.SetSchema(ctx, next)
		require.NoError(t, err)
		assert.True(t, changes.MustReindex())
		assert.NotNil(t, db.Schema().Index("author"))

		s := search(t, db, docdb.SearchOptions{Equation: []string{"author:dupont"}})
		assert.Equal(t, 0, s.Count(docdb.CountEstimated))

		stats, err := db.Reindex(ctx)
		require.NoError(t, err)
		assert.Equal(t, len(library), stats.Records)
		assert.Equal(t, float64(len(library)), testutil.ToFloat64(db.Metrics().ReindexedRecords))

		s = search(t, db, docdb.SearchOptions{Equation: []string{"author:dupont"}})
		require.Equal(t, 1, s.Count(docdb.CountEstimated))
		assert.Equal(t, ids[2], s.Current().ID)

		// ids, counters and the dictionary survive
		id := addBook(t, db, library[0])
		assert.Greater(t, id, ids[len(ids)-1])
		rec, err := db.Get(ctx, id)
		require.NoError(t, err)
		ref, _ := rec.First("Ref")
		assert.Equal(t, int64(len(library)+1), ref)
		s = search(t, db, docdb.SearchOptions{Equation: []string{"chta"}})
		suggestion, err := s.Suggestion(ctx)
		require.NoError(t, err)
		assert.Equal(t, "chat", suggestion)
	})
}

func TestReindexSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "books")
	db, err := docdb.Create(ctx, sqlite.New(dir), bookSchema(t), docdb.Options{})
	require.NoError(t, err)
	fill(t, db)
	_, err = db.Reindex(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = docdb.Open(ctx, sqlite.New(dir), docdb.Options{})
	require.NoError(t, err)
	defer db.Close()
	s := search(t, db, docdb.SearchOptions{Equation: []string{"chat"}})
	assert.Equal(t, 4, s.Count(docdb.CountEstimated))
	assert.NotEmpty(t, db.Schema().Creation)
}

func TestSearchMetrics(t *testing.T) {
	db, err := docdb.CreateMemory(context.Background(), bookSchema(t), docdb.Options{})
	require.NoError(t, err)
	fill(t, db)
	search(t, db, docdb.SearchOptions{Equation: []string{"chat"}})
	search(t, db, docdb.SearchOptions{Equation: []string{"tags:[Contes]"}, Sort: "+"})

	m := db.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("relevance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("docid")))
	assert.Equal(t, float64(len(library)), testutil.ToFloat64(m.RecordsWrittenTotal.WithLabelValues("add")))
}

package cliutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministore/docdb/docdb"
	"github.com/ministore/docdb/docdb/schema"
	"github.com/ministore/docdb/internal/cliopt"
)

func noteSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.NewSchema()
	require.NoError(t, s.AddField(schema.NewField("Title", schema.FieldText)))
	require.NoError(t, s.AddField(schema.NewField("Tags", schema.FieldText)))
	ix := schema.NewIndex("title")
	f := schema.NewIndexField("Title")
	f.Words = true
	require.NoError(t, ix.AddField(f))
	require.NoError(t, s.AddIndex(ix))
	return s
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestReadSchema(t *testing.T) {
	s := noteSchema(t)
	js, err := schema.ToJSON(s)
	require.NoError(t, err)
	xml, err := schema.ToXML(s)
	require.NoError(t, err)

	for name, data := range map[string][]byte{"s.json": js, "s.xml": append([]byte("\n  "), xml...)} {
		got, err := ReadSchema(writeFile(t, name, data))
		require.NoError(t, err, name)
		assert.NotNil(t, got.Field("Title"), name)
		assert.NotNil(t, got.Index("title"), name)
	}

	_, err = ReadSchema(writeFile(t, "bad.json", []byte("{")))
	assert.True(t, docdb.IsKind(err, docdb.ErrSchemaFormat), "got %v", err)
}

func TestParsePairs(t *testing.T) {
	got, err := ParsePairs([]string{"tags=a", "tags=b", "-title=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"tags": {"a", "b"}, "-title": {"x=y"}}, got)

	got, err = ParsePairs(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParsePairs([]string{"novalue"})
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	db, err := docdb.CreateMemory(ctx, noteSchema(t), docdb.Options{})
	require.NoError(t, err)
	defer db.Close()

	var ids []uint32
	n, err := Import(ctx, db, strings.NewReader(`{"Title": "first note", "Tags": ["a", "b"]}

{"Title": "second note"}
{"_id": 1, "Title": "first note, edited"}
`), func(id uint32) { ids = append(ids, id) })
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint32{1, 2, 1}, ids)

	rec, err := db.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Title": "first note, edited", "Tags": []any{"a", "b"}}, rec.Map())

	_, err = Import(ctx, db, strings.NewReader(`{"Nope": 1}`), nil)
	assert.True(t, docdb.IsKind(err, docdb.ErrUnknownField), "got %v", err)
	_, err = Import(ctx, db, strings.NewReader(`{"_id": -1}`), nil)
	assert.ErrorContains(t, err, "line 1")

	// a failed line leaves no edit behind
	_, err = db.AddRecord()
	assert.NoError(t, err)
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	js, err := schema.ToJSON(noteSchema(t))
	require.NoError(t, err)

	g := cliopt.DefaultGlobalOptions()
	g.Backend = "memory"
	_, err = Open(ctx, g, true)
	assert.ErrorContains(t, err, "--schema")

	g.Schema = writeFile(t, "schema.json", js)
	g.Data = writeFile(t, "data.jsonl", []byte(`{"Title": "hello world"}`+"\n"))
	db, err := Open(ctx, g, true)
	require.NoError(t, err)
	defer db.Close()
	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
}

func TestAdapter(t *testing.T) {
	g := cliopt.DefaultGlobalOptions()
	g.Path = "/tmp/x"
	a, err := Adapter(g)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", a.Location())

	g.Backend = "postgres"
	_, err = Adapter(g)
	assert.ErrorContains(t, err, "--pg-dsn")

	g.Backend = "redis"
	_, err = Adapter(g)
	assert.Error(t, err)
}

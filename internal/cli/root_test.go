package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/ministore/docdb/docdb/schema"
)

func TestExecuteUsage(t *testing.T) {
	assert.Equal(t, 0, Execute(nil))
	assert.Equal(t, 0, Execute([]string{"help"}))
	assert.Equal(t, 2, Execute([]string{"frobnicate"}))
	assert.Equal(t, 2, Execute([]string{"--no-such-flag"}))
	assert.Equal(t, 2, Execute([]string{"schema"}))
	assert.Equal(t, 2, Execute([]string{"create"}))
}

func TestExecuteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := schema.NewSchema()
	require.NoError(t, s.AddField(schema.NewField("Title", schema.FieldText)))
	ix := schema.NewIndex("title")
	f := schema.NewIndexField("Title")
	f.Words = true
	require.NoError(t, ix.AddField(f))
	require.NoError(t, s.AddIndex(ix))
	js, err := schema.ToJSON(s)
	require.NoError(t, err)
	schemaPath := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, js, 0o644))
	dataPath := filepath.Join(dir, "data.jsonl")
	require.NoError(t, os.WriteFile(dataPath, []byte("{\"Title\": \"hello world\"}\n{\"Title\": \"goodbye\"}\n"), 0o644))

	db := []string{"--path", filepath.Join(dir, "db")}
	run := func(args ...string) int { return Execute(append(append([]string{}, db...), args...)) }

	assert.Equal(t, 1, run("stats"))
	require.Equal(t, 0, run("create", "--schema", schemaPath))
	assert.Equal(t, 1, run("create", "--schema", schemaPath))
	require.Equal(t, 0, run("put", "--import", dataPath))
	assert.Equal(t, 0, run("put", "--set", "Title=third"))
	assert.Equal(t, 0, run("get", "--id", "1"))
	assert.Equal(t, 1, run("get", "--id", "9"))
	assert.Equal(t, 0, run("search", "-q", "hello"))
	assert.Equal(t, 1, run("search", "-q", "(hello"))
	assert.Equal(t, 0, run("lookup", "--name", "title", "he"))
	assert.Equal(t, 0, run("schema", "show", "--as", "json"))
	assert.Equal(t, 0, run("schema", "validate", schemaPath))
	assert.Equal(t, 0, run("schema", "compare", schemaPath))
	assert.Equal(t, 0, run("schema", "set", schemaPath))
	assert.Equal(t, 0, run("reindex"))
	assert.Equal(t, 0, run("delete", "--id", "2"))
	assert.Equal(t, 1, run("delete", "--id", "2"))
	assert.Equal(t, 0, run("--format", "json", "stats"))
}

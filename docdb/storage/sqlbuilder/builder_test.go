package sqlbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	q := New(PlaceholderQuestion)
	assert.Equal(t, "?", q.Arg(1))
	assert.Equal(t, "(?,?)", q.Row("a", 2))
	assert.Equal(t, 3, q.Len())

	d := New(PlaceholderDollar)
	assert.Equal(t, "$1", d.Arg(1))
	assert.Equal(t, "($2,$3)", d.Row("a", 2))
	assert.Equal(t, []any{1, "a", 2}, d.Args())
}

func TestInsert(t *testing.T) {
	sql, args := Insert(PlaceholderDollar, "INSERT INTO t(a,b) VALUES ", [][]any{{1, "x"}, {2, "y"}})
	assert.Equal(t, "INSERT INTO t(a,b) VALUES ($1,$2),($3,$4)", sql)
	assert.Equal(t, []any{1, "x", 2, "y"}, args)
}

func TestChunk(t *testing.T) {
	rows := [][]any{{1, 2}, {3, 4}, {5, 6}, {7, 8}, {9, 10}}
	chunks := Chunk(rows, 4)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[2], 1)
	assert.Nil(t, Chunk(nil, 10))
}

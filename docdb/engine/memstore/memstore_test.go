package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/engine/memstore"
)

func doc(data string, words ...string) *engine.Document {
	d := engine.NewDocument()
	d.SetData([]byte(data))
	for i, w := range words {
		d.AddPosting(w, i+1, 1)
	}
	return d
}

func add(t *testing.T, s *memstore.Store, docs ...*engine.Document) []uint32 {
	t.Helper()
	ctx := context.Background()
	w, err := s.Begin(ctx)
	require.NoError(t, err)
	var ids []uint32
	for _, d := range docs {
		id, err := engine.AddDocument(ctx, w, d)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, w.Commit())
	return ids
}

func TestWriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	ids := add(t, s, doc("one", "cat", "dog"), doc("two", "cat"))
	assert.Equal(t, []uint32{1, 2}, ids)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocCount)
	assert.Equal(t, uint32(2), stats.LastDocID)
	assert.Equal(t, 1.5, stats.AvgLength())

	freq, err := s.TermFreq(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, 2, freq)

	postings, err := s.Postings(ctx, "dog")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, uint32(1), postings[0].Doc)

	terms, err := s.Terms(ctx, "d", 10)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Equal(t, "dog", terms[0].Term)

	data, err := s.Data(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	_, err = s.Data(ctx, 3)
	assert.ErrorIs(t, err, engine.ErrDocNotFound)
}

func TestReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	add(t, s, doc("one", "cat"), doc("two", "cat"))

	w, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.ReplaceDocument(ctx, 1, doc("uno", "gato")))
	require.NoError(t, w.DeleteDocument(ctx, 2))
	assert.ErrorIs(t, w.DeleteDocument(ctx, 2), engine.ErrDocNotFound)
	require.NoError(t, w.Commit())

	freq, err := s.TermFreq(ctx, "cat")
	require.NoError(t, err)
	assert.Zero(t, freq)
	ids, err := s.DocIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, ids.ToArray())

	// ids are never reused
	assert.Equal(t, []uint32{3}, add(t, s, doc("three", "cat")))
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	add(t, s, doc("one", "cat"))

	w, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = engine.AddDocument(ctx, w, doc("two", "cat"))
	require.NoError(t, err)
	require.NoError(t, w.SetMetadata(ctx, "k", []byte("v")))

	freq, err := s.TermFreq(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, 1, freq, "uncommitted writes are invisible")
	freq, err = w.TermFreq(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, 2, freq, "the writer sees its own writes")

	require.NoError(t, w.Rollback())
	v, err := s.Metadata(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.ErrorIs(t, w.Commit(), engine.ErrClosed)
}

func TestWriteLock(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.SetRetryPolicy(engine.RetryPolicy{Attempts: 2, MinDelay: time.Millisecond})

	w, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, engine.ErrLocked)
	require.NoError(t, w.Commit())

	w, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Rollback())
}

func TestMetadataAndSpelling(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	w, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, w.SetMetadata(ctx, "a.1", []byte("x")))
	require.NoError(t, w.SetMetadata(ctx, "a.2", []byte("y")))
	require.NoError(t, w.SetMetadata(ctx, "b", []byte("z")))
	require.NoError(t, w.AddSpelling(ctx, "chat", 2))
	require.NoError(t, w.AddSpelling(ctx, "chien", 1))
	require.NoError(t, w.RemoveSpelling(ctx, "chien", 1))
	require.NoError(t, w.Commit())

	keys, err := s.MetadataKeys(ctx, "a.")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.1", "a.2"}, keys)

	words, err := s.Spellings(ctx, "ch")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"chat": 2}, words)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.Close())
	_, err := s.Stats(ctx)
	assert.ErrorIs(t, err, engine.ErrClosed)
	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, engine.ErrClosed)
}

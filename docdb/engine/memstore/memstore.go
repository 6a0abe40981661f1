// Package memstore is an in-memory engine backend. Writers work on a private
// copy of the committed state which replaces it on commit.
package memstore

import (
	"context"
	"maps"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ministore/docdb/docdb/engine"
)

type docEntry struct {
	data   []byte
	length int
	terms  map[string]engine.TermEntry
	values map[int][]byte
}

type state struct {
	docs     map[uint32]*docEntry
	postings map[string]*roaring.Bitmap
	meta     map[string][]byte
	spelling map[string]int
	total    int64

	sorted []string
}

func newState() *state {
	return &state{
		docs:     make(map[uint32]*docEntry),
		postings: make(map[string]*roaring.Bitmap),
		meta:     make(map[string][]byte),
		spelling: make(map[string]int),
	}
}

func (s *state) clone() *state {
	c := &state{
		docs:     maps.Clone(s.docs),
		postings: make(map[string]*roaring.Bitmap, len(s.postings)),
		meta:     maps.Clone(s.meta),
		spelling: maps.Clone(s.spelling),
		total:    s.total,
		sorted:   s.sorted,
	}
	for t, bm := range s.postings {
		c.postings[t] = bm.Clone()
	}
	return c
}

// Store is the in-memory backend.
type Store struct {
	mu      sync.RWMutex
	writeMu sync.Mutex
	cur     *state
	closed  bool
	retry   engine.RetryPolicy
}

var _ engine.Backend = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{cur: newState(), retry: engine.DefaultRetryPolicy()}
}

// SetRetryPolicy changes how Begin waits for a concurrent writer.
func (s *Store) SetRetryPolicy(p engine.RetryPolicy) { s.retry = p }

func (s *Store) snapshot() (*state, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, engine.ErrClosed
	}
	return s.cur, nil
}

type writeLock struct{ mu *sync.Mutex }

func (l writeLock) TryLock(context.Context) (bool, error) { return l.mu.TryLock(), nil }

func (l writeLock) Unlock() error {
	l.mu.Unlock()
	return nil
}

// Begin opens the single write transaction of the store.
func (s *Store) Begin(ctx context.Context) (engine.Writer, error) {
	lock := writeLock{&s.writeMu}
	if err := engine.AcquireLock(ctx, lock, s.retry); err != nil {
		return nil, err
	}
	st, err := s.snapshot()
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &writer{store: s, lock: lock, view: view{st.clone()}}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) read() (view, error) {
	st, err := s.snapshot()
	return view{st}, err
}

func (s *Store) Stats(ctx context.Context) (engine.Stats, error) {
	v, err := s.read()
	if err != nil {
		return engine.Stats{}, err
	}
	return v.Stats(ctx)
}

func (s *Store) Postings(ctx context.Context, term string) ([]engine.Posting, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.Postings(ctx, term)
}

func (s *Store) TermFreq(ctx context.Context, term string) (int, error) {
	v, err := s.read()
	if err != nil {
		return 0, err
	}
	return v.TermFreq(ctx, term)
}

func (s *Store) Terms(ctx context.Context, from string, limit int) ([]engine.TermInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, engine.ErrClosed
	}
	return view{s.cur}.Terms(ctx, from, limit)
}

func (s *Store) DocIDs(ctx context.Context) (*roaring.Bitmap, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.DocIDs(ctx)
}

func (s *Store) Data(ctx context.Context, doc uint32) ([]byte, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.Data(ctx, doc)
}

func (s *Store) DocTerms(ctx context.Context, doc uint32) ([]string, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.DocTerms(ctx, doc)
}

func (s *Store) SlotValues(ctx context.Context, slot int) (map[uint32][]byte, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.SlotValues(ctx, slot)
}

func (s *Store) Value(ctx context.Context, doc uint32, slot int) ([]byte, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.Value(ctx, doc, slot)
}

func (s *Store) Metadata(ctx context.Context, key string) ([]byte, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.Metadata(ctx, key)
}

func (s *Store) MetadataKeys(ctx context.Context, prefix string) ([]string, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.MetadataKeys(ctx, prefix)
}

func (s *Store) Spellings(ctx context.Context, prefix string) (map[string]int, error) {
	v, err := s.read()
	if err != nil {
		return nil, err
	}
	return v.Spellings(ctx, prefix)
}

// view implements engine.Reader over one state.
type view struct{ st *state }

func (v view) Stats(context.Context) (engine.Stats, error) {
	last, _ := strconv.ParseUint(string(v.st.meta[engine.MetaLastDocID]), 10, 32)
	return engine.Stats{DocCount: len(v.st.docs), LastDocID: uint32(last), TotalLength: v.st.total}, nil
}

func (v view) Postings(_ context.Context, term string) ([]engine.Posting, error) {
	bm, ok := v.st.postings[term]
	if !ok {
		return nil, nil
	}
	out := make([]engine.Posting, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		doc := it.Next()
		d := v.st.docs[doc]
		e := d.terms[term]
		out = append(out, engine.Posting{Doc: doc, WDF: e.WDF, DocLen: d.length, Positions: e.Positions})
	}
	return out, nil
}

func (v view) TermFreq(_ context.Context, term string) (int, error) {
	if bm, ok := v.st.postings[term]; ok {
		return int(bm.GetCardinality()), nil
	}
	return 0, nil
}

func (v view) sortedTerms() []string {
	if v.st.sorted == nil {
		terms := make([]string, 0, len(v.st.postings))
		for t := range v.st.postings {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		v.st.sorted = terms
	}
	return v.st.sorted
}

func (v view) Terms(_ context.Context, from string, limit int) ([]engine.TermInfo, error) {
	terms := v.sortedTerms()
	i := sort.SearchStrings(terms, from)
	var out []engine.TermInfo
	for ; i < len(terms) && (limit <= 0 || len(out) < limit); i++ {
		t := terms[i]
		bm := v.st.postings[t]
		coll := 0
		it := bm.Iterator()
		for it.HasNext() {
			coll += v.st.docs[it.Next()].terms[t].WDF
		}
		out = append(out, engine.TermInfo{Term: t, TermFreq: int(bm.GetCardinality()), CollFreq: coll})
	}
	return out, nil
}

func (v view) DocIDs(context.Context) (*roaring.Bitmap, error) {
	bm := roaring.New()
	for id := range v.st.docs {
		bm.Add(id)
	}
	return bm, nil
}

func (v view) Data(_ context.Context, doc uint32) ([]byte, error) {
	d, ok := v.st.docs[doc]
	if !ok {
		return nil, engine.ErrDocNotFound
	}
	return d.data, nil
}

func (v view) DocTerms(_ context.Context, doc uint32) ([]string, error) {
	d, ok := v.st.docs[doc]
	if !ok {
		return nil, engine.ErrDocNotFound
	}
	out := make([]string, 0, len(d.terms))
	for t := range d.terms {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (v view) SlotValues(_ context.Context, slot int) (map[uint32][]byte, error) {
	out := make(map[uint32][]byte)
	for id, d := range v.st.docs {
		if val, ok := d.values[slot]; ok {
			out[id] = val
		}
	}
	return out, nil
}

func (v view) Value(_ context.Context, doc uint32, slot int) ([]byte, error) {
	d, ok := v.st.docs[doc]
	if !ok {
		return nil, engine.ErrDocNotFound
	}
	return d.values[slot], nil
}

func (v view) Metadata(_ context.Context, key string) ([]byte, error) {
	return v.st.meta[key], nil
}

func (v view) MetadataKeys(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for k := range v.st.meta {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (v view) Spellings(_ context.Context, prefix string) (map[string]int, error) {
	out := make(map[string]int)
	for w, n := range v.st.spelling {
		if strings.HasPrefix(w, prefix) {
			out[w] = n
		}
	}
	return out, nil
}

type writer struct {
	view
	store *Store
	lock  writeLock
	done  bool
}

func (w *writer) ReplaceDocument(ctx context.Context, doc uint32, d *engine.Document) error {
	if w.done {
		return engine.ErrClosed
	}
	w.remove(doc)
	e := &docEntry{
		data:   d.Data(),
		length: d.Length(),
		terms:  make(map[string]engine.TermEntry),
		values: maps.Clone(d.Values()),
	}
	for _, t := range d.Terms() {
		te, _ := d.Term(t)
		e.terms[t] = te
		bm, ok := w.st.postings[t]
		if !ok {
			bm = roaring.New()
			w.st.postings[t] = bm
			w.st.sorted = nil
		}
		bm.Add(doc)
	}
	w.st.docs[doc] = e
	w.st.total += int64(e.length)
	return engine.BumpLastDocID(ctx, w, doc)
}

func (w *writer) DeleteDocument(_ context.Context, doc uint32) error {
	if w.done {
		return engine.ErrClosed
	}
	if _, ok := w.st.docs[doc]; !ok {
		return engine.ErrDocNotFound
	}
	w.remove(doc)
	return nil
}

func (w *writer) remove(doc uint32) {
	old, ok := w.st.docs[doc]
	if !ok {
		return
	}
	for t := range old.terms {
		bm := w.st.postings[t]
		bm.Remove(doc)
		if bm.IsEmpty() {
			delete(w.st.postings, t)
			w.st.sorted = nil
		}
	}
	w.st.total -= int64(old.length)
	delete(w.st.docs, doc)
}

func (w *writer) SetMetadata(_ context.Context, key string, value []byte) error {
	if w.done {
		return engine.ErrClosed
	}
	if len(value) == 0 {
		delete(w.st.meta, key)
		return nil
	}
	w.st.meta[key] = append([]byte(nil), value...)
	return nil
}

func (w *writer) AddSpelling(_ context.Context, word string, freq int) error {
	if w.done {
		return engine.ErrClosed
	}
	w.st.spelling[word] += freq
	return nil
}

func (w *writer) RemoveSpelling(_ context.Context, word string, freq int) error {
	if w.done {
		return engine.ErrClosed
	}
	if n := w.st.spelling[word] - freq; n > 0 {
		w.st.spelling[word] = n
	} else {
		delete(w.st.spelling, word)
	}
	return nil
}

func (w *writer) Commit() error {
	if w.done {
		return engine.ErrClosed
	}
	w.done = true
	w.store.mu.Lock()
	w.store.cur = w.st
	w.store.mu.Unlock()
	return w.lock.Unlock()
}

func (w *writer) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.lock.Unlock()
}

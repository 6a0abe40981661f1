package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/storage/sqlbuilder"
)

// Store is an engine backend over a SQL database.
type Store struct {
	reader
	adapter Adapter
	db      *sql.DB
	retry   engine.RetryPolicy
}

var _ engine.Backend = (*Store)(nil)

// Create initializes a new database at the adapter's location.
func Create(ctx context.Context, adapter Adapter) (*Store, error) {
	exists, err := adapter.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", adapter.Location(), err)
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", adapter.Location(), ErrExists)
	}
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", adapter.Location(), err)
	}
	if err := adapter.Init(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize %s: %w", adapter.Location(), err)
	}
	return newStore(adapter, db), nil
}

// Open opens the existing database at the adapter's location.
func Open(ctx context.Context, adapter Adapter) (*Store, error) {
	exists, err := adapter.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", adapter.Location(), err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", adapter.Location(), ErrNotFound)
	}
	db, err := adapter.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", adapter.Location(), err)
	}
	if err := adapter.Verify(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return newStore(adapter, db), nil
}

func newStore(adapter Adapter, db *sql.DB) *Store {
	return &Store{
		reader:  reader{q: db, sqlt: adapter.SQL()},
		adapter: adapter,
		db:      db,
		retry:   engine.DefaultRetryPolicy(),
	}
}

// SetRetryPolicy changes how Begin waits for a concurrent writer.
func (s *Store) SetRetryPolicy(p engine.RetryPolicy) { s.retry = p }

func (s *Store) Adapter() Adapter { return s.adapter }

// Begin takes the write lock and opens a transaction.
func (s *Store) Begin(ctx context.Context) (engine.Writer, error) {
	lock := s.adapter.Locker(s.db)
	if err := engine.AcquireLock(ctx, lock, s.retry); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &writer{
		reader: reader{q: tx, sqlt: s.sqlt},
		tx:     tx,
		lock:   lock,
		style:  s.adapter.PlaceholderStyle(),
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
		s.db = nil
	}
	return s.adapter.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader implements engine.Reader over a connection pool or a transaction.
type reader struct {
	q    querier
	sqlt SQL
}

func (r reader) Stats(ctx context.Context) (engine.Stats, error) {
	var st engine.Stats
	if err := r.q.QueryRowContext(ctx, r.sqlt.Stats).Scan(&st.DocCount, &st.TotalLength); err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	last, err := engine.MetaUint(ctx, r, engine.MetaLastDocID)
	if err != nil {
		return st, err
	}
	st.LastDocID = uint32(last)
	return st, nil
}

func (r reader) Postings(ctx context.Context, term string) ([]engine.Posting, error) {
	rows, err := r.q.QueryContext(ctx, r.sqlt.GetPostings, term)
	if err != nil {
		return nil, fmt.Errorf("postings: %w", err)
	}
	defer rows.Close()

	var out []engine.Posting
	for rows.Next() {
		var p engine.Posting
		var raw []byte
		if err := rows.Scan(&p.Doc, &p.WDF, &p.DocLen, &raw); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		if p.Positions, err = decodePositions(raw); err != nil {
			return nil, fmt.Errorf("term %q doc %d: %w", term, p.Doc, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r reader) TermFreq(ctx context.Context, term string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, r.sqlt.TermFreq, term).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("term frequency: %w", err)
	}
	return n, nil
}

func (r reader) Terms(ctx context.Context, from string, limit int) ([]engine.TermInfo, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := r.q.QueryContext(ctx, r.sqlt.ListTerms, from, limit)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	defer rows.Close()

	var out []engine.TermInfo
	for rows.Next() {
		var ti engine.TermInfo
		if err := rows.Scan(&ti.Term, &ti.TermFreq, &ti.CollFreq); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

func (r reader) DocIDs(ctx context.Context) (*roaring.Bitmap, error) {
	rows, err := r.q.QueryContext(ctx, r.sqlt.DocIDs)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	bm := roaring.New()
	for rows.Next() {
		var id uint32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		bm.Add(id)
	}
	return bm, rows.Err()
}

func (r reader) Data(ctx context.Context, doc uint32) ([]byte, error) {
	var data []byte
	err := r.q.QueryRowContext(ctx, r.sqlt.GetDoc, doc).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrDocNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", doc, err)
	}
	return data, nil
}

func (r reader) DocTerms(ctx context.Context, doc uint32) ([]string, error) {
	entries, err := r.docPostings(ctx, doc)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		if _, err := r.Data(ctx, doc); err != nil {
			return nil, err
		}
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.term
	}
	return out, nil
}

type docPosting struct {
	term string
	wdf  int
}

func (r reader) docPostings(ctx context.Context, doc uint32) ([]docPosting, error) {
	rows, err := r.q.QueryContext(ctx, r.sqlt.DocPostings, doc)
	if err != nil {
		return nil, fmt.Errorf("document terms: %w", err)
	}
	defer rows.Close()

	var out []docPosting
	for rows.Next() {
		var e docPosting
		if err := rows.Scan(&e.term, &e.wdf); err != nil {
			return nil, fmt.Errorf("scan document term: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r reader) SlotValues(ctx context.Context, slot int) (map[uint32][]byte, error) {
	rows, err := r.q.QueryContext(ctx, r.sqlt.SlotValues, slot)
	if err != nil {
		return nil, fmt.Errorf("slot values: %w", err)
	}
	defer rows.Close()

	out := make(map[uint32][]byte)
	for rows.Next() {
		var doc uint32
		var value []byte
		if err := rows.Scan(&doc, &value); err != nil {
			return nil, fmt.Errorf("scan slot value: %w", err)
		}
		out[doc] = value
	}
	return out, rows.Err()
}

func (r reader) Value(ctx context.Context, doc uint32, slot int) ([]byte, error) {
	var value []byte
	err := r.q.QueryRowContext(ctx, r.sqlt.GetValue, doc, slot).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get value: %w", err)
	}
	return value, nil
}

func (r reader) Metadata(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.q.QueryRowContext(ctx, r.sqlt.GetMeta, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}

func (r reader) MetadataKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, r.sqlt.ListMeta, prefix)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan metadata key: %w", err)
		}
		if !strings.HasPrefix(key, prefix) {
			break
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (r reader) Spellings(ctx context.Context, prefix string) (map[string]int, error) {
	rows, err := r.q.QueryContext(ctx, r.sqlt.ListSpelling, prefix)
	if err != nil {
		return nil, fmt.Errorf("list spelling: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var word string
		var freq int
		if err := rows.Scan(&word, &freq); err != nil {
			return nil, fmt.Errorf("scan spelling: %w", err)
		}
		if !strings.HasPrefix(word, prefix) {
			break
		}
		out[word] = freq
	}
	return out, rows.Err()
}

// writer is a write transaction holding the database lock.
type writer struct {
	reader
	tx    *sql.Tx
	lock  engine.Locker
	style sqlbuilder.PlaceholderStyle
	done  bool
}

func (w *writer) exec(ctx context.Context, what, query string, args ...any) error {
	if w.done {
		return engine.ErrClosed
	}
	if _, err := w.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func (w *writer) ReplaceDocument(ctx context.Context, doc uint32, d *engine.Document) error {
	// 1. Drop the previous version and its contribution to the term stats
	if err := w.remove(ctx, doc); err != nil {
		return err
	}

	// 2. Store the data blob
	length := d.Length()
	data := d.Data()
	if data == nil {
		data = []byte{}
	}
	if err := w.exec(ctx, "insert document", w.sqlt.InsertDoc, doc, data, length); err != nil {
		return err
	}

	// 3. Postings and term statistics
	terms := d.Terms()
	rows := make([][]any, 0, len(terms))
	for _, t := range terms {
		e, _ := d.Term(t)
		rows = append(rows, []any{t, doc, e.WDF, length, encodePositions(e.Positions)})
		if err := w.exec(ctx, "update term stats", w.sqlt.AddTerm, t, e.WDF); err != nil {
			return err
		}
	}
	if err := w.insertRows(ctx, "insert postings", w.sqlt.InsertPostings, rows); err != nil {
		return err
	}

	// 4. Value slots
	values := d.Values()
	rows = rows[:0]
	for slot, v := range values {
		rows = append(rows, []any{doc, slot, v})
	}
	if err := w.insertRows(ctx, "insert values", w.sqlt.InsertSlots, rows); err != nil {
		return err
	}

	return engine.BumpLastDocID(ctx, w, doc)
}

func (w *writer) insertRows(ctx context.Context, what, prefix string, rows [][]any) error {
	for _, chunk := range sqlbuilder.Chunk(rows, w.sqlt.MaxArgs) {
		query, args := sqlbuilder.Insert(w.style, prefix, chunk)
		if err := w.exec(ctx, what, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) DeleteDocument(ctx context.Context, doc uint32) error {
	if _, err := w.Data(ctx, doc); err != nil {
		return err
	}
	return w.remove(ctx, doc)
}

func (w *writer) remove(ctx context.Context, doc uint32) error {
	entries, err := w.docPostings(ctx, doc)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.exec(ctx, "update term stats", w.sqlt.SubtractTerm, e.term, e.wdf); err != nil {
			return err
		}
		if err := w.exec(ctx, "drop term", w.sqlt.DropEmptyTerm, e.term); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, "delete postings", w.sqlt.DeletePostings, doc); err != nil {
		return err
	}
	if err := w.exec(ctx, "delete values", w.sqlt.DeleteSlots, doc); err != nil {
		return err
	}
	return w.exec(ctx, "delete document", w.sqlt.DeleteDoc, doc)
}

func (w *writer) SetMetadata(ctx context.Context, key string, value []byte) error {
	if len(value) == 0 {
		return w.exec(ctx, "delete metadata", w.sqlt.DeleteMeta, key)
	}
	return w.exec(ctx, "set metadata", w.sqlt.SetMeta, key, value)
}

func (w *writer) AddSpelling(ctx context.Context, word string, freq int) error {
	return w.exec(ctx, "add spelling", w.sqlt.AddSpelling, word, freq)
}

func (w *writer) RemoveSpelling(ctx context.Context, word string, freq int) error {
	if err := w.exec(ctx, "remove spelling", w.sqlt.SubtractSpelling, word, freq); err != nil {
		return err
	}
	return w.exec(ctx, "drop spelling", w.sqlt.DropEmptySpelling, word)
}

func (w *writer) Commit() error {
	if w.done {
		return engine.ErrClosed
	}
	w.done = true
	err := w.tx.Commit()
	if uerr := w.lock.Unlock(); err == nil && uerr != nil {
		err = uerr
	}
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (w *writer) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	err := w.tx.Rollback()
	if uerr := w.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

package docdb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/record"
	"github.com/ministore/docdb/docdb/schema"
)

// RecordEdit is the pending creation or modification of one record. A
// database handle holds at most one; it ends with Save or Cancel.
type RecordEdit struct {
	db     *Database
	id     uint32
	rec    *record.Record
	closed bool
}

// AddRecord starts the edit of a new, empty record.
func (d *Database) AddRecord() (*RecordEdit, error) {
	if err := d.checkWritable(); err != nil {
		return nil, err
	}
	d.edit = &RecordEdit{db: d, rec: record.New(d.schema)}
	return d.edit, nil
}

// EditRecord starts the edit of the stored record id.
func (d *Database) EditRecord(ctx context.Context, id uint32) (*RecordEdit, error) {
	if err := d.checkWritable(); err != nil {
		return nil, err
	}
	rec, err := d.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	d.edit = &RecordEdit{db: d, id: id, rec: rec}
	return d.edit, nil
}

// ID is the id of the edited record, 0 for a record not saved yet.
func (e *RecordEdit) ID() uint32 { return e.id }

// IsNew reports whether the edit creates a record.
func (e *RecordEdit) IsNew() bool { return e.id == 0 }

func (e *RecordEdit) check() error {
	if e.closed || e.db.edit != e {
		return errs.New(errs.ErrNoEdit, "no record edit in progress")
	}
	return nil
}

// Set replaces the values of a field.
func (e *RecordEdit) Set(name string, value any) error {
	if err := e.check(); err != nil {
		return err
	}
	return e.rec.Set(name, value)
}

// Get returns the values of a field.
func (e *RecordEdit) Get(name string) ([]any, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	return e.rec.Get(name)
}

// Record returns the record being edited.
func (e *RecordEdit) Record() *record.Record { return e.rec }

// Cancel drops the edit.
func (e *RecordEdit) Cancel() error {
	if err := e.check(); err != nil {
		return err
	}
	e.closed = true
	e.db.edit = nil
	return nil
}

// Save encodes and stores the record and returns its id. Autonumber
// fields left empty get the next value of their counter.
func (e *RecordEdit) Save(ctx context.Context) (uint32, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	d := e.db
	rec := e.rec.Clone()
	id := e.id
	err := d.write(ctx, "save record", func(w engine.Writer) error {
		if err := d.assignAutoNumbers(ctx, w, rec); err != nil {
			return err
		}
		out, err := d.encoder.Encode(rec)
		if err != nil {
			return err
		}
		if id == 0 {
			if id, err = engine.AddDocument(ctx, w, out.Document()); err != nil {
				return err
			}
		} else {
			if err := d.removeSpellings(ctx, w, id); err != nil {
				return err
			}
			if err := w.ReplaceDocument(ctx, id, out.Document()); err != nil {
				return err
			}
		}
		for _, word := range out.Spellings {
			if err := w.AddSpelling(ctx, word, 1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	op := "update"
	if e.id == 0 {
		op = "add"
	}
	e.id, e.rec = id, rec
	e.closed = true
	d.edit = nil
	d.metrics.RecordWrite(op)
	d.log.Debug().Uint32("id", id).Str("op", op).Msg("record saved")
	return id, nil
}

// assignAutoNumbers numbers the empty autonumber fields of rec and moves
// each counter past the values already set.
func (d *Database) assignAutoNumbers(ctx context.Context, w engine.Writer, rec *record.Record) error {
	for _, f := range d.schema.AllFields() {
		if f.Type != schema.FieldAutoNumber {
			continue
		}
		key := autoNumberKey(f.ID)
		counter, err := engine.MetaUint(ctx, w, key)
		if err != nil {
			return errs.Wrap(errs.ErrCorruptMetadata, fmt.Sprintf("autonumber counter of %s", f.Name), err)
		}
		next := counter
		values := rec.Values(f.ID)
		if len(values) == 0 {
			next++
			rec.SetValues(f.ID, []any{int64(next)})
		}
		for _, v := range values {
			if n, ok := v.(int64); ok && n > 0 && uint64(n) > next {
				next = uint64(n)
			}
		}
		if next != counter {
			if err := w.SetMetadata(ctx, key, []byte(strconv.FormatUint(next, 10))); err != nil {
				return err
			}
		}
	}
	return nil
}

// removeSpellings takes the words stored record id added out of the
// spelling dictionary. Records written before their words were kept in the
// blob are re-encoded with the current schema, which is only exact while
// the spelling settings are unchanged.
func (d *Database) removeSpellings(ctx context.Context, w engine.Writer, id uint32) error {
	blob, err := w.Data(ctx, id)
	if err != nil {
		return engineError(fmt.Sprintf("read record %d", id), err)
	}
	words, ok, err := record.Spellings(blob)
	if err != nil {
		return err
	}
	if !ok {
		old, err := record.Decode(d.schema, blob)
		if err != nil {
			return err
		}
		out, err := d.encoder.Encode(old)
		if err != nil {
			return err
		}
		words = out.Spellings
	}
	for _, word := range words {
		if err := w.RemoveSpelling(ctx, word, 1); err != nil {
			return err
		}
	}
	return nil
}

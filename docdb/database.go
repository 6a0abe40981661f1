// Package docdb is a schema driven document database over an inverted
// index. A Database stores records shaped by a schema.Schema, indexes them
// through the encoder and answers searches built by the query builder.
package docdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ministore/docdb/docdb/encoder"
	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/engine/memstore"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/lookup"
	"github.com/ministore/docdb/docdb/metrics"
	"github.com/ministore/docdb/docdb/querybuild"
	"github.com/ministore/docdb/docdb/record"
	"github.com/ministore/docdb/docdb/schema"
	"github.com/ministore/docdb/docdb/storage"
)

// Metadata keys.
const (
	MetaSchema    = "schema.bin"
	MetaSchemaXML = "schema.xml"
	// MetaAutoNumber prefixes the counter of each autonumber field.
	MetaAutoNumber = "autonumber."
)

func autoNumberKey(fieldID int) string { return MetaAutoNumber + strconv.Itoa(fieldID) }

// Database is an open database. A handle is not safe for concurrent use;
// it holds at most one record edit at a time.
type Database struct {
	adapter storage.Adapter // nil for in-memory databases
	backend engine.Backend
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics

	schema  *schema.Schema
	encoder *encoder.Encoder
	builder *querybuild.Builder

	edit *RecordEdit
}

// Stats describes an open database.
type Stats struct {
	Backend   string
	Location  string
	Documents int
	LastDocID uint32
	AvgLength float64
	Fields    int
	Indices   int
}

type retrySetter interface {
	SetRetryPolicy(engine.RetryPolicy)
}

// Create creates a database at the adapter's location with schema s.
func Create(ctx context.Context, adapter storage.Adapter, s *schema.Schema, opts Options) (*Database, error) {
	s, err := prepareSchema(s)
	if err != nil {
		return nil, err
	}
	store, err := storage.Create(ctx, adapter)
	if err != nil {
		return nil, engineError("create database", err)
	}
	d, err := newDatabase(adapter, store, s, opts)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := d.initSchema(ctx, s); err != nil {
		store.Close()
		return nil, err
	}
	d.log.Info().Str("backend", string(adapter.Backend())).Str("location", adapter.Location()).Msg("database created")
	return d, nil
}

// CreateMemory creates a database living in memory only.
func CreateMemory(ctx context.Context, s *schema.Schema, opts Options) (*Database, error) {
	s, err := prepareSchema(s)
	if err != nil {
		return nil, err
	}
	d, err := newDatabase(nil, memstore.New(), s, opts)
	if err != nil {
		return nil, err
	}
	if err := d.initSchema(ctx, s); err != nil {
		return nil, err
	}
	d.log.Info().Str("backend", "memory").Msg("database created")
	return d, nil
}

// Open opens the database at the adapter's location.
func Open(ctx context.Context, adapter storage.Adapter, opts Options) (*Database, error) {
	store, err := storage.Open(ctx, adapter)
	if err != nil {
		return nil, engineError("open database", err)
	}
	s, err := loadSchema(ctx, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	d, err := newDatabase(adapter, store, s, opts)
	if err != nil {
		store.Close()
		return nil, err
	}
	st, err := store.Stats(ctx)
	if err != nil {
		store.Close()
		return nil, engineError("read statistics", err)
	}
	d.log.Info().
		Str("backend", string(adapter.Backend())).
		Str("location", adapter.Location()).
		Int("documents", st.DocCount).
		Bool("readonly", d.opts.ReadOnly).
		Msg("database opened")
	return d, nil
}

// prepareSchema validates and compiles a copy of s.
func prepareSchema(s *schema.Schema) (*schema.Schema, error) {
	if err := s.Validate(); err != nil {
		if issues, ok := err.(errs.ValidationIssues); !ok || issues.HasErrors() {
			return nil, err
		}
	}
	c, err := s.Clone()
	if err != nil {
		return nil, err
	}
	if err := c.Compile(); err != nil {
		return nil, err
	}
	return c, nil
}

func newDatabase(adapter storage.Adapter, backend engine.Backend, s *schema.Schema, opts Options) (*Database, error) {
	opts = opts.withDefaults()
	d := &Database{
		adapter: adapter,
		backend: backend,
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	d.applyRetryPolicy(backend)
	if err := d.useSchema(s); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) applyRetryPolicy(backend engine.Backend) {
	rs, ok := backend.(retrySetter)
	if !ok {
		return
	}
	policy := d.opts.LockRetry
	next := policy.OnRetry
	policy.OnRetry = func(attempt int) {
		d.metrics.LockRetriesTotal.Inc()
		d.log.Debug().Int("attempt", attempt).Msg("database locked, retrying")
		if next != nil {
			next(attempt)
		}
	}
	rs.SetRetryPolicy(policy)
}

// useSchema installs a compiled schema and the encoder and builder
// derived from it.
func (d *Database) useSchema(s *schema.Schema) error {
	enc, err := encoder.New(s)
	if err != nil {
		return err
	}
	b, err := querybuild.New(s)
	if err != nil {
		return err
	}
	d.schema, d.encoder, d.builder = s, enc, b
	return nil
}

func (d *Database) initSchema(ctx context.Context, s *schema.Schema) error {
	now := d.opts.Now().UTC().Format(time.RFC3339)
	if s.Creation == "" {
		s.Creation = now
	}
	s.LastUpdate = now
	return d.write(ctx, "store schema", func(w engine.Writer) error {
		return writeSchema(ctx, w, s)
	})
}

// writeSchema stores the binary snapshot and its XML rendition, both made
// from s.
func writeSchema(ctx context.Context, w engine.Writer, s *schema.Schema) error {
	bin, err := schema.MarshalBinary(s)
	if err != nil {
		return err
	}
	xml, err := schema.ToXML(s)
	if err != nil {
		return err
	}
	if err := w.SetMetadata(ctx, MetaSchema, bin); err != nil {
		return err
	}
	return w.SetMetadata(ctx, MetaSchemaXML, xml)
}

// loadSchema reads the binary snapshot, falling back to the XML rendition.
func loadSchema(ctx context.Context, r engine.Reader) (*schema.Schema, error) {
	bin, err := r.Metadata(ctx, MetaSchema)
	if err != nil {
		return nil, engineError("read schema", err)
	}
	var s *schema.Schema
	if len(bin) > 0 {
		s, err = schema.UnmarshalBinary(bin)
	}
	if s == nil {
		xml, xerr := r.Metadata(ctx, MetaSchemaXML)
		if xerr != nil {
			return nil, engineError("read schema", xerr)
		}
		if len(xml) == 0 {
			if err != nil {
				return nil, errs.Wrap(errs.ErrCorruptMetadata, "unreadable schema", err)
			}
			return nil, errs.New(errs.ErrCorruptMetadata, "database holds no schema")
		}
		if s, err = schema.FromXML(xml); err != nil {
			return nil, errs.Wrap(errs.ErrCorruptMetadata, "unreadable schema", err)
		}
	}
	if err := s.Compile(); err != nil {
		return nil, errs.Wrap(errs.ErrCorruptMetadata, "compile stored schema", err)
	}
	return s, nil
}

// write runs fn in a write transaction.
func (d *Database) write(ctx context.Context, what string, fn func(w engine.Writer) error) error {
	w, err := d.backend.Begin(ctx)
	if err != nil {
		return engineError(what, err)
	}
	if err := fn(w); err != nil {
		_ = w.Rollback()
		return engineError(what, err)
	}
	if err := w.Commit(); err != nil {
		return engineError(what, err)
	}
	return nil
}

func (d *Database) checkWritable() error {
	if d.opts.ReadOnly {
		return errs.New(errs.ErrReadOnly, "database is open read-only")
	}
	if d.edit != nil {
		return errs.New(errs.ErrEditInProgress, "a record edit is in progress")
	}
	return nil
}

// Close closes the database. A pending edit is lost.
func (d *Database) Close() error {
	d.edit = nil
	if err := d.backend.Close(); err != nil {
		return engineError("close database", err)
	}
	d.log.Info().Str("location", d.location()).Msg("database closed")
	return nil
}

func (d *Database) location() string {
	if d.adapter == nil {
		return "memory"
	}
	return d.adapter.Location()
}

// Schema returns the compiled schema of the database. It must not be
// modified; use SetSchema with an edited clone.
func (d *Database) Schema() *schema.Schema { return d.schema }

// ReadOnly reports whether the handle rejects writes.
func (d *Database) ReadOnly() bool { return d.opts.ReadOnly }

// Metrics returns the instrumentation of the handle.
func (d *Database) Metrics() *metrics.Metrics { return d.metrics }

// SetSchema replaces the schema and reports how it differs from the
// current one. Existing records are not re-encoded: when the changes
// require it, call Reindex.
func (d *Database) SetSchema(ctx context.Context, s *schema.Schema) (schema.Changes, error) {
	if err := d.checkWritable(); err != nil {
		return nil, err
	}
	next, err := prepareSchema(s)
	if err != nil {
		return nil, err
	}
	changes, err := schema.Compare(d.schema, next)
	if err != nil {
		return nil, err
	}
	next.Creation = d.schema.Creation
	next.LastUpdate = d.opts.Now().UTC().Format(time.RFC3339)
	if err := d.write(ctx, "store schema", func(w engine.Writer) error {
		return writeSchema(ctx, w, next)
	}); err != nil {
		return nil, err
	}
	if err := d.useSchema(next); err != nil {
		return nil, err
	}
	d.log.Info().Int("changes", len(changes)).Int("level", changes.Max()).Bool("reindex", changes.MustReindex()).Msg("schema changed")
	return changes, nil
}

// Stats returns the size of the database.
func (d *Database) Stats(ctx context.Context) (Stats, error) {
	st, err := d.backend.Stats(ctx)
	if err != nil {
		return Stats{}, engineError("read statistics", err)
	}
	out := Stats{
		Backend:   "memory",
		Location:  d.location(),
		Documents: st.DocCount,
		LastDocID: st.LastDocID,
		AvgLength: st.AvgLength(),
		Fields:    len(d.schema.AllFields()),
		Indices:   len(d.schema.AllIndices()),
	}
	if d.adapter != nil {
		out.Backend = string(d.adapter.Backend())
	}
	return out, nil
}

// Get returns the stored record id.
func (d *Database) Get(ctx context.Context, id uint32) (*record.Record, error) {
	return d.load(ctx, d.backend, id)
}

func (d *Database) load(ctx context.Context, r engine.Reader, id uint32) (*record.Record, error) {
	blob, err := r.Data(ctx, id)
	if err != nil {
		return nil, engineError(fmt.Sprintf("read record %d", id), err)
	}
	return record.Decode(d.schema, blob)
}

// DeleteRecord removes record id. It fails while an edit is in progress.
func (d *Database) DeleteRecord(ctx context.Context, id uint32) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	err := d.write(ctx, fmt.Sprintf("delete record %d", id), func(w engine.Writer) error {
		if err := d.removeSpellings(ctx, w, id); err != nil {
			return err
		}
		return w.DeleteDocument(ctx, id)
	})
	if err != nil {
		return err
	}
	d.metrics.RecordWrite("delete")
	d.log.Debug().Uint32("id", id).Msg("record deleted")
	return nil
}

// Lookup suggests up to max entries of the lookup table, index or alias
// name starting with input.
func (d *Database) Lookup(ctx context.Context, name, input string, max int) ([]lookup.Result, error) {
	l, err := lookup.For(d.schema, name, lookup.Options{SeekBudget: d.opts.LookupBudget})
	if err != nil {
		return nil, err
	}
	results, err := l.Lookup(ctx, d.backend, input, max)
	if err != nil {
		return nil, engineError("lookup "+name, err)
	}
	d.metrics.RecordLookup(l.Name())
	return results, nil
}

// Package storage implements the engine backend over a SQL database. The
// dialect specific parts live behind Adapter.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Magic metadata written by Adapter.Init and checked by Adapter.Verify.
const (
	MetaMagic   = "docdb.magic"
	MetaFormat  = "docdb.format"
	MagicValue  = "docdb"
	FormatValue = "1"
)

var (
	// ErrNotFound is returned when opening a location holding no database.
	ErrNotFound = errors.New("storage: database not found")
	// ErrExists is returned when creating over an existing database.
	ErrExists = errors.New("storage: database already exists")
	// ErrNotDocDB is returned when the location holds something else.
	ErrNotDocDB = errors.New("storage: not a docdb database")
)

// Adapter abstracts database-specific operations
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle
	// Location identifies the database in logs.
	Location() string

	Exists(ctx context.Context) (bool, error)
	Connect(ctx context.Context) (*sql.DB, error)
	// Init creates the tables and writes the magic metadata.
	Init(ctx context.Context, db *sql.DB) error
	Verify(ctx context.Context, db *sql.DB) error
	Close() error

	// Locker returns the process level write lock of the database.
	Locker(db *sql.DB) engine.Locker
	// Scratch returns an adapter for a fresh sibling location.
	Scratch() (Adapter, error)
	// Publish replaces this database by the one at scratch. Both must be
	// closed. Readers never observe a half published state.
	Publish(ctx context.Context, scratch Adapter) error
	Drop(ctx context.Context) error

	SQL() SQL
}

// SQL holds prepared SQL templates for common operations
type SQL struct {
	GetMeta    string
	SetMeta    string
	DeleteMeta string
	// ListMeta returns the keys from a seek key, in byte order.
	ListMeta string

	Stats     string
	DocIDs    string
	GetDoc    string
	InsertDoc string
	DeleteDoc string

	// InsertPostings is the prefix of a multi-row insert of
	// (term, doc, wdf, doclen, positions).
	InsertPostings string
	GetPostings    string
	DocPostings    string
	DeletePostings string

	TermFreq      string
	ListTerms     string
	AddTerm       string
	SubtractTerm  string
	DropEmptyTerm string

	// InsertSlots is the prefix of a multi-row insert of (doc, slot, value).
	InsertSlots string
	SlotValues  string
	GetValue    string
	DeleteSlots string

	ListSpelling      string
	AddSpelling       string
	SubtractSpelling  string
	DropEmptySpelling string

	// MaxArgs bounds the placeholders of one statement.
	MaxArgs int
}

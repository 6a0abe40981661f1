// Package sqlite stores a docdb database in a directory holding one SQLite
// file, a version marker and a lock file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/storage"
	"github.com/ministore/docdb/docdb/storage/sqlbuilder"
)

// File names inside the database directory.
const (
	DBFile      = "docdb.sqlite"
	VersionFile = "docdb.version"
	LockFile    = "docdb.lock"
)

// Drivers: "sqlite" is modernc.org/sqlite, "sqlite3" is mattn/go-sqlite3.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

type Adapter struct {
	Dir        string
	DriverName string
}

var _ storage.Adapter = (*Adapter)(nil)

func New(dir string) *Adapter {
	return &Adapter{Dir: dir, DriverName: DriverModernc}
}

func NewWithDriver(dir, driver string) *Adapter {
	if driver == "" {
		driver = DriverModernc
	}
	return &Adapter{Dir: dir, DriverName: driver}
}

func (a *Adapter) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderQuestion
}

func (a *Adapter) Location() string {
	return a.Dir
}

func (a *Adapter) dbPath() string { return filepath.Join(a.Dir, DBFile) }

func (a *Adapter) markerPath() string { return filepath.Join(a.Dir, VersionFile) }

// Exists reports whether the version marker is in place.
func (a *Adapter) Exists(context.Context) (bool, error) {
	_, err := os.Stat(a.markerPath())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (a *Adapter) dsn() string {
	path := a.dbPath()
	if a.DriverName == DriverMattn {
		return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open(a.DriverName, a.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) SQL() storage.SQL {
	return SQLTemplates
}

func (a *Adapter) Init(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddlBase); err != nil {
		return err
	}

	sqlt := a.SQL()
	if _, err := db.ExecContext(ctx, sqlt.SetMeta, storage.MetaMagic, []byte(storage.MagicValue)); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, sqlt.SetMeta, storage.MetaFormat, []byte(storage.FormatValue)); err != nil {
		return err
	}
	// the marker goes last: a directory without it holds no database
	return os.WriteFile(a.markerPath(), []byte(storage.MagicValue+" "+storage.FormatValue+"\n"), 0o644)
}

func (a *Adapter) Verify(ctx context.Context, db *sql.DB) error {
	marker, err := os.ReadFile(a.markerPath())
	if err != nil {
		return fmt.Errorf("%s: %w", a.Dir, storage.ErrNotFound)
	}
	if !strings.HasPrefix(string(marker), storage.MagicValue+" ") {
		return fmt.Errorf("%s: bad version marker: %w", a.Dir, storage.ErrNotDocDB)
	}
	var magic []byte
	if err := db.QueryRowContext(ctx, a.SQL().GetMeta, storage.MetaMagic).Scan(&magic); err != nil {
		return fmt.Errorf("%s: %w", a.Dir, storage.ErrNotDocDB)
	}
	if string(magic) != storage.MagicValue {
		return fmt.Errorf("%s: %w", a.Dir, storage.ErrNotDocDB)
	}
	return nil
}

// Locker returns a flock based lock on the lock file of the directory.
func (a *Adapter) Locker(*sql.DB) engine.Locker {
	return &fileLock{path: filepath.Join(a.Dir, LockFile)}
}

// Scratch returns an adapter on a new sibling directory.
func (a *Adapter) Scratch() (storage.Adapter, error) {
	dir := filepath.Clean(a.Dir) + ".tmp-" + uuid.NewString()
	return &Adapter{Dir: dir, DriverName: a.DriverName}, nil
}

// Publish moves the database of scratch into this directory. The version
// marker of the current database leaves first and the new one arrives
// last, so a reader either sees a complete database or none.
func (a *Adapter) Publish(ctx context.Context, scratch storage.Adapter) error {
	src, ok := scratch.(*Adapter)
	if !ok {
		return fmt.Errorf("cannot publish a %s database into %s", scratch.Backend(), a.Dir)
	}
	retired := filepath.Clean(a.Dir) + ".old-" + uuid.NewString()
	if err := os.MkdirAll(retired, 0o755); err != nil {
		return err
	}

	// 1. Retire the current marker, then the database files
	if err := moveIfExists(a.markerPath(), filepath.Join(retired, VersionFile)); err != nil {
		return err
	}
	if err := moveDB(a.Dir, retired); err != nil {
		return err
	}

	// 2. Bring in the new database files, then its marker
	if err := moveDB(src.Dir, a.Dir); err != nil {
		return err
	}
	if err := os.Rename(src.markerPath(), a.markerPath()); err != nil {
		return err
	}

	// 3. Clean up
	if err := os.RemoveAll(src.Dir); err != nil {
		return err
	}
	return os.RemoveAll(retired)
}

func moveDB(from, to string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		name := DBFile + suffix
		if err := moveIfExists(filepath.Join(from, name), filepath.Join(to, name)); err != nil {
			return err
		}
	}
	return nil
}

func moveIfExists(from, to string) error {
	err := os.Rename(from, to)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (a *Adapter) Drop(context.Context) error {
	return os.RemoveAll(a.Dir)
}

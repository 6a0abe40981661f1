// Package postgres stores a docdb database in a dedicated PostgreSQL schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/storage"
	"github.com/ministore/docdb/docdb/storage/sqlbuilder"
)

type Adapter struct {
	DSN    string
	Schema string // used as dedicated schema via search_path
}

var _ storage.Adapter = (*Adapter)(nil)

func New(dsn, schema string) *Adapter {
	return &Adapter{DSN: dsn, Schema: schema}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendPostgres }

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderDollar }

func (a *Adapter) Location() string { return "postgres:" + a.Schema }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) SQL() storage.SQL { return SQLTemplates }

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(ident string) string {
	// ident is validated to contain no quotes; safe to wrap
	return `"` + ident + `"`
}

func (a *Adapter) checkSchema() error {
	if a.Schema == "" || !schemaNameRe.MatchString(a.Schema) {
		return fmt.Errorf("invalid postgres schema name %q (must match %s)", a.Schema, schemaNameRe.String())
	}
	return nil
}

// admin opens a connection without a pinned search_path.
func (a *Adapter) admin(ctx context.Context) (*sql.DB, error) {
	if err := a.checkSchema(); err != nil {
		return nil, err
	}
	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Exists reports whether the schema holds a meta table.
func (a *Adapter) Exists(ctx context.Context) (bool, error) {
	db, err := a.admin(ctx)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var found bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = 'meta')`,
		a.Schema).Scan(&found)
	return found, err
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	// 1) Connect without search_path to ensure schema exists
	db0, err := a.admin(ctx)
	if err != nil {
		return nil, err
	}
	_, err = db0.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(a.Schema))
	_ = db0.Close()
	if err != nil {
		return nil, err
	}

	// 2) Connect with search_path pinned to the schema
	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = make(map[string]string)
	}
	cfg.RuntimeParams["search_path"] = fmt.Sprintf("%s,public", quoteIdent(a.Schema))

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Init(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, ddlBase); err != nil {
		return err
	}
	sqlt := a.SQL()
	if _, err := db.ExecContext(ctx, sqlt.SetMeta, storage.MetaFormat, []byte(storage.FormatValue)); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, sqlt.SetMeta, storage.MetaMagic, []byte(storage.MagicValue))
	return err
}

func (a *Adapter) Verify(ctx context.Context, db *sql.DB) error {
	var magic []byte
	if err := db.QueryRowContext(ctx, a.SQL().GetMeta, storage.MetaMagic).Scan(&magic); err != nil {
		return fmt.Errorf("%s: %w", a.Location(), storage.ErrNotDocDB)
	}
	if string(magic) != storage.MagicValue {
		return fmt.Errorf("%s: %w", a.Location(), storage.ErrNotDocDB)
	}
	return nil
}

// Locker returns a session level advisory lock keyed by the schema name.
func (a *Adapter) Locker(db *sql.DB) engine.Locker {
	h := fnv.New64a()
	h.Write([]byte("docdb:" + a.Schema))
	return &advisoryLock{db: db, key: int64(h.Sum64())}
}

// Scratch returns an adapter on a new sibling schema.
func (a *Adapter) Scratch() (storage.Adapter, error) {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return &Adapter{DSN: a.DSN, Schema: a.Schema + "_tmp_" + suffix}, nil
}

// Publish swaps the schemas in one transaction and drops the old one.
func (a *Adapter) Publish(ctx context.Context, scratch storage.Adapter) error {
	src, ok := scratch.(*Adapter)
	if !ok {
		return fmt.Errorf("cannot publish a %s database into %s", scratch.Backend(), a.Location())
	}
	if err := src.checkSchema(); err != nil {
		return err
	}
	db, err := a.admin(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	retired := a.Schema + "_old_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		"ALTER SCHEMA " + quoteIdent(a.Schema) + " RENAME TO " + quoteIdent(retired),
		"ALTER SCHEMA " + quoteIdent(src.Schema) + " RENAME TO " + quoteIdent(a.Schema),
		"DROP SCHEMA " + quoteIdent(retired) + " CASCADE",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("publish %s: %w", src.Schema, err)
		}
	}
	return tx.Commit()
}

func (a *Adapter) Drop(ctx context.Context) error {
	db, err := a.admin(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+quoteIdent(a.Schema)+" CASCADE")
	return err
}

// advisoryLock pins one connection for the lifetime of the lock, since
// advisory locks belong to the session that took them.
type advisoryLock struct {
	db   *sql.DB
	key  int64
	conn *sql.Conn
}

func (l *advisoryLock) TryLock(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Close()
		return false, err
	}
	if !ok {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *advisoryLock) Unlock() error {
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", l.key)
	if cerr := l.conn.Close(); err == nil {
		err = cerr
	}
	l.conn = nil
	return err
}

package cliutil

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ministore/docdb/docdb"
	"github.com/ministore/docdb/docdb/schema"
	"github.com/ministore/docdb/docdb/storage"
	"github.com/ministore/docdb/docdb/storage/postgres"
	"github.com/ministore/docdb/docdb/storage/sqlite"
	"github.com/ministore/docdb/internal/cliopt"
)

type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatJSON   OutputFormat = "json"
)

func ParseOutputFormat(s string) OutputFormat {
	switch OutputFormat(s) {
	case FormatPretty, FormatJSON:
		return OutputFormat(s)
	default:
		return FormatPretty
	}
}

func PrintJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// NewLogger builds the CLI logger, writing to stderr.
func NewLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "docdb").Logger()
}

// Options returns the database options of the CLI.
func Options(g cliopt.GlobalOptions, readOnly bool) docdb.Options {
	opts := docdb.DefaultOptions()
	opts.Logger = NewLogger(g.LogLevel, g.LogPretty)
	opts.ReadOnly = readOnly
	return opts
}

// Adapter returns the storage adapter selected by the global flags.
func Adapter(g cliopt.GlobalOptions) (storage.Adapter, error) {
	switch strings.ToLower(g.Backend) {
	case "sqlite":
		if g.Path == "" {
			return nil, fmt.Errorf("missing --path")
		}
		return sqlite.NewWithDriver(g.Path, g.SQLiteDriver), nil
	case "postgres":
		if g.PostgresDSN == "" {
			return nil, fmt.Errorf("missing --pg-dsn")
		}
		return postgres.New(g.PostgresDSN, g.PostgresSchema), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", g.Backend)
	}
}

func isMemory(g cliopt.GlobalOptions) bool { return strings.EqualFold(g.Backend, "memory") }

// Open opens the database selected by the global flags. The memory backend
// builds a fresh database from --schema and loads --data into it.
func Open(ctx context.Context, g cliopt.GlobalOptions, readOnly bool) (*docdb.Database, error) {
	if isMemory(g) {
		if g.Schema == "" {
			return nil, fmt.Errorf("the memory backend needs --schema")
		}
		s, err := ReadSchema(g.Schema)
		if err != nil {
			return nil, err
		}
		db, err := docdb.CreateMemory(ctx, s, Options(g, false))
		if err != nil {
			return nil, err
		}
		if g.Data != "" {
			f, err := os.Open(g.Data)
			if err != nil {
				db.Close()
				return nil, err
			}
			defer f.Close()
			if _, err := Import(ctx, db, f, nil); err != nil {
				db.Close()
				return nil, err
			}
		}
		return db, nil
	}
	adapter, err := Adapter(g)
	if err != nil {
		return nil, err
	}
	return docdb.Open(ctx, adapter, Options(g, readOnly))
}

// Create creates the database selected by the global flags.
func Create(ctx context.Context, g cliopt.GlobalOptions, s *schema.Schema) (*docdb.Database, error) {
	if isMemory(g) {
		return nil, fmt.Errorf("the memory backend keeps nothing to create")
	}
	adapter, err := Adapter(g)
	if err != nil {
		return nil, err
	}
	return docdb.Create(ctx, adapter, s, Options(g, false))
}

// ReadSchema loads a schema file, XML when it starts with "<" and JSON
// otherwise.
func ReadSchema(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("<")) {
		return schema.FromXML(data)
	}
	return schema.FromJSON(data)
}

// IDKey is the JSON key holding the record id on input and output.
const IDKey = "_id"

// Import saves one record per JSON line of r. A line carrying IDKey
// replaces the fields it names in that record; other lines add records.
// saved is called after each record when not nil.
func Import(ctx context.Context, db *docdb.Database, r io.Reader, saved func(id uint32)) (int, error) {
	n := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(text, &fields); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		id, err := Save(ctx, db, fields)
		if err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
		if saved != nil {
			saved(id)
		}
	}
	return n, scanner.Err()
}

// Save adds or updates the record described by fields.
func Save(ctx context.Context, db *docdb.Database, fields map[string]any) (uint32, error) {
	var edit *docdb.RecordEdit
	var err error
	if raw, ok := fields[IDKey]; ok {
		id, ok := raw.(float64)
		if !ok || id < 1 || id != float64(uint32(id)) {
			return 0, fmt.Errorf("%s: invalid record id %v", IDKey, raw)
		}
		edit, err = db.EditRecord(ctx, uint32(id))
	} else {
		edit, err = db.AddRecord()
	}
	if err != nil {
		return 0, err
	}
	for name, value := range fields {
		if name == IDKey {
			continue
		}
		if err := edit.Set(name, value); err != nil {
			_ = edit.Cancel()
			return 0, err
		}
	}
	return edit.Save(ctx)
}

// RecordJSON renders a record with its id.
func RecordJSON(id uint32, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	out[IDKey] = id
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// ParsePairs splits "name=value" arguments into a map of value lists.
func ParsePairs(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string][]string)
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		out[name] = append(out[name], value)
	}
	return out, nil
}

// MultiString is a repeatable string flag.
type MultiString []string

func (m *MultiString) String() string { return strings.Join(*m, ",") }

func (m *MultiString) Set(v string) error {
	*m = append(*m, v)
	return nil
}

package cliopt

import "flag"

// GlobalOptions are parsed once at the CLI root and passed to subcommands.
// They select the database every subcommand works on.
//
// NOTE: This is a separate package to avoid import cycles between the root
// command router and per-command code.
type GlobalOptions struct {
	Backend      string
	Path         string
	SQLiteDriver string
	PostgresDSN  string
	// PostgresSchema is the PostgreSQL schema holding the database tables.
	PostgresSchema string

	// Schema and Data seed the memory backend, which keeps nothing between
	// runs.
	Schema string
	Data   string

	LogLevel  string
	LogPretty bool
	Format    string
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		Backend:        "sqlite",
		Path:           "docdb.db",
		SQLiteDriver:   "sqlite",
		PostgresSchema: "docdb",
		LogLevel:       "warn",
		Format:         "pretty",
	}
}

func BindGlobalFlags(fs *flag.FlagSet, g *GlobalOptions) {
	fs.StringVar(&g.Backend, "backend", g.Backend, "backend: sqlite|postgres|memory")

	fs.StringVar(&g.Path, "path", g.Path, "sqlite database directory")
	fs.StringVar(&g.SQLiteDriver, "sqlite-driver", g.SQLiteDriver, "sqlite driver: sqlite (pure Go) or sqlite3 (cgo)")

	fs.StringVar(&g.PostgresDSN, "pg-dsn", g.PostgresDSN, "postgres DSN")
	fs.StringVar(&g.PostgresSchema, "pg-schema", g.PostgresSchema, "postgres schema holding the database")

	fs.StringVar(&g.Schema, "schema", g.Schema, "memory backend: schema file (XML or JSON)")
	fs.StringVar(&g.Data, "data", g.Data, "memory backend: JSON lines file of records to load")

	fs.StringVar(&g.LogLevel, "log-level", g.LogLevel, "log level: debug|info|warn|error")
	fs.BoolVar(&g.LogPretty, "log-pretty", g.LogPretty, "human readable logs")
	fs.StringVar(&g.Format, "format", g.Format, "output: pretty|json")
}

package cli

import (
	"fmt"
	"io"
)

func PrintRootHelp(w io.Writer) {
	fmt.Fprintln(w, `docdb: schema driven document database

USAGE
  docdb [global flags] <command> [args]

GLOBAL FLAGS
  --backend sqlite|postgres|memory
  --path <dir>                 sqlite database directory
  --sqlite-driver sqlite|sqlite3
  --pg-dsn <dsn>
  --pg-schema <name>
  --schema <file>              memory backend: schema (XML or JSON)
  --data <file.jsonl>          memory backend: records to load
  --log-level debug|info|warn|error
  --log-pretty
  --format pretty|json

COMMANDS
  create --schema <file>       create a database
  schema show|validate|compare|set
  put                          add or update records from JSON lines
  get --id <n>
  delete --id <n>
  search                       run a search
  lookup --name <table> <text> suggest entries
  reindex                      rebuild every record with the current schema
  stats

Run "docdb <command> --help" for the flags of a command.`)
}

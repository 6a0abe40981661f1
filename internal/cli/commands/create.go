package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

func RunCreate(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var schemaPath string
	fs.StringVar(&schemaPath, "schema", "", "schema file (XML or JSON)")
	fs.StringVar(&schemaPath, "s", "", "schema file")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if schemaPath == "" {
		fmt.Fprintln(os.Stderr, "missing --schema")
		return 2
	}
	s, err := cliutil.ReadSchema(schemaPath)
	if err != nil {
		return fail(err)
	}
	db, err := cliutil.Create(ctx, g, s)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	stats, err := db.Stats(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stdout, "created %s database at %s (%d fields, %d indices)\n", stats.Backend, stats.Location, stats.Fields, stats.Indices)
	return 0
}

// fail reports err and returns the exit code of a failed command.
func fail(err error) int {
	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

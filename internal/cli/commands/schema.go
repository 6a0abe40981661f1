package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/ministore/docdb/docdb"
	"github.com/ministore/docdb/docdb/schema"
	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

func RunSchema(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "schema requires a subcommand: show|validate|compare|set")
		return 2
	}
	verb := argv[0]
	args := argv[1:]
	switch verb {
	case "show":
		return runSchemaShow(ctx, g, args)
	case "validate":
		return runSchemaValidate(ctx, g, args)
	case "compare":
		return runSchemaCompare(ctx, g, args)
	case "set":
		return runSchemaSet(ctx, g, args)
	case "--help", "-h", "help":
		fmt.Fprintln(os.Stdout, "schema subcommands: show|validate|compare|set")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown schema subcommand: %s\n", verb)
		return 2
	}
}

func runSchemaShow(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("schema show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var as string
	fs.StringVar(&as, "as", "xml", "xml|json")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	db, err := cliutil.Open(ctx, g, true)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	var out []byte
	switch as {
	case "xml":
		out, err = schema.ToXML(db.Schema())
	case "json":
		out, err = schema.ToJSON(db.Schema())
	default:
		fmt.Fprintf(os.Stderr, "unknown schema format %q\n", as)
		return 2
	}
	if err != nil {
		return fail(err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return 0
}

// schemaFile parses the --file flag of a schema subcommand.
func schemaFile(name string, argv []string) (*schema.Schema, int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var path string
	fs.StringVar(&path, "file", "", "schema file (XML or JSON)")
	fs.StringVar(&path, "f", "", "schema file")
	if err := fs.Parse(argv); err != nil {
		return nil, 2
	}
	if path == "" && fs.NArg() == 1 {
		path = fs.Arg(0)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing --file")
		return nil, 2
	}
	s, err := cliutil.ReadSchema(path)
	if err != nil {
		return nil, fail(err)
	}
	return s, 0
}

func runSchemaValidate(_ context.Context, g cliopt.GlobalOptions, argv []string) int {
	s, code := schemaFile("schema validate", argv)
	if s == nil {
		return code
	}
	err := s.Validate()
	var issues docdb.ValidationIssues
	if err != nil && !errors.As(err, &issues) {
		return fail(err)
	}
	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		out := make([]map[string]string, len(issues))
		for i, is := range issues {
			out[i] = map[string]string{"severity": is.Severity.String(), "path": is.Path, "message": is.Message}
		}
		cliutil.PrintJSON(os.Stdout, out)
	} else {
		for _, is := range issues {
			fmt.Fprintln(os.Stdout, is.String())
		}
		if len(issues) == 0 {
			fmt.Fprintln(os.Stdout, "schema is valid")
		}
	}
	if issues.HasErrors() {
		return 1
	}
	return 0
}

func printChanges(g cliopt.GlobalOptions, changes schema.Changes) {
	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(os.Stdout, map[string]any{
			"changes": changes,
			"level":   changes.Max(),
			"reindex": changes.MustReindex(),
		})
		return
	}
	if len(changes) == 0 {
		fmt.Fprintln(os.Stdout, "no changes")
		return
	}
	for _, ch := range changes {
		fmt.Fprintf(os.Stdout, "[%d] %s\n", ch.Level, ch.Message)
	}
	switch {
	case changes.MustReindex():
		fmt.Fprintln(os.Stdout, "\nexisting records must be reindexed")
	case changes.Max() == schema.LevelReindexRecommended:
		fmt.Fprintln(os.Stdout, "\nreindexing is recommended")
	}
}

func runSchemaCompare(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	next, code := schemaFile("schema compare", argv)
	if next == nil {
		return code
	}
	db, err := cliutil.Open(ctx, g, true)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	if err := next.Compile(); err != nil {
		return fail(err)
	}
	changes, err := schema.Compare(db.Schema(), next)
	if err != nil {
		return fail(err)
	}
	printChanges(g, changes)
	return 0
}

func runSchemaSet(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	next, code := schemaFile("schema set", argv)
	if next == nil {
		return code
	}
	db, err := cliutil.Open(ctx, g, false)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	changes, err := db.SetSchema(ctx, next)
	if err != nil {
		return fail(err)
	}
	printChanges(g, changes)
	return 0
}

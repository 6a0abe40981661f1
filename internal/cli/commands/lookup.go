package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ministore/docdb/docdb/lookup"
	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

func RunLookup(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var name string
	var max int
	fs.StringVar(&name, "name", "", "lookup table, index or alias")
	fs.StringVar(&name, "n", "", "lookup table, index or alias")
	fs.IntVar(&max, "max", lookup.DefaultMax, "maximum number of entries")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "missing --name")
		return 2
	}
	input := strings.Join(fs.Args(), " ")

	db, err := cliutil.Open(ctx, g, true)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	results, err := db.Lookup(ctx, name, input, max)
	if err != nil {
		return fail(err)
	}

	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(os.Stdout, results)
		return 0
	}
	for _, r := range results {
		fmt.Fprintf(os.Stdout, "%6d  %s\n", r.Count, r.Highlight("[", "]"))
	}
	return 0
}

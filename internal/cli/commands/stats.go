package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

func RunStats(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	db, err := cliutil.Open(ctx, g, true)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	stats, err := db.Stats(ctx)
	if err != nil {
		return fail(err)
	}

	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(os.Stdout, stats)
		return 0
	}
	s := db.Schema()
	fmt.Fprintf(os.Stdout, "Backend:       %s\n", stats.Backend)
	fmt.Fprintf(os.Stdout, "Location:      %s\n", stats.Location)
	fmt.Fprintf(os.Stdout, "Records:       %d\n", stats.Documents)
	fmt.Fprintf(os.Stdout, "Last id:       %d\n", stats.LastDocID)
	fmt.Fprintf(os.Stdout, "Avg length:    %.1f terms\n", stats.AvgLength)
	fmt.Fprintf(os.Stdout, "Fields:        %d\n", stats.Fields)
	fmt.Fprintf(os.Stdout, "Indices:       %d\n", stats.Indices)
	fmt.Fprintf(os.Stdout, "Aliases:       %d\n", len(s.AllAliases()))
	fmt.Fprintf(os.Stdout, "Lookup tables: %d\n", len(s.AllLookupTables()))
	fmt.Fprintf(os.Stdout, "Sort keys:     %d\n", len(s.AllSortKeys()))
	fmt.Fprintf(os.Stdout, "Created:       %s\n", s.Creation)
	fmt.Fprintf(os.Stdout, "Updated:       %s\n", s.LastUpdate)
	return 0
}

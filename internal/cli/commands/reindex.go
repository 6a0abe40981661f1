package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

func RunReindex(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("reindex", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	db, err := cliutil.Open(ctx, g, false)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	stats, err := db.Reindex(ctx)
	if err != nil {
		if stats.Scratch != "" {
			fmt.Fprintf(os.Stderr, "the partial rebuild is left at %s\n", stats.Scratch)
		}
		return fail(err)
	}
	fmt.Fprintf(os.Stdout, "reindexed %d records in %s\n", stats.Records, stats.Elapsed.Round(1e6))
	return 0
}

package commands

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

func RunGet(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var id uint
	fs.UintVar(&id, "id", 0, "record id")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if id == 0 {
		fmt.Fprintln(os.Stderr, "missing --id")
		return 2
	}
	db, err := cliutil.Open(ctx, g, true)
	if err != nil {
		return fail(err)
	}
	defer db.Close()
	rec, err := db.Get(ctx, uint32(id))
	if err != nil {
		return fail(err)
	}
	cliutil.PrintJSON(os.Stdout, cliutil.RecordJSON(uint32(id), rec.Map()))
	return 0
}

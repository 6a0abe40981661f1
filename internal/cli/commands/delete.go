package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

func RunDelete(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var ids cliutil.MultiString
	fs.Var(&ids, "id", "record id (repeatable)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	ids = append(ids, fs.Args()...)
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "missing --id")
		return 2
	}
	db, err := cliutil.Open(ctx, g, false)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	deleted := 0
	for _, raw := range ids {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			fmt.Fprintf(os.Stderr, "invalid record id %q\n", raw)
			return 2
		}
		if err := db.DeleteRecord(ctx, uint32(id)); err != nil {
			return fail(err)
		}
		deleted++
	}
	fmt.Fprintf(os.Stdout, "deleted %d\n", deleted)
	return 0
}

package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

func RunPut(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var id uint
	var importPath string
	var sets cliutil.MultiString
	fs.UintVar(&id, "id", 0, "record to update with --set (default: add a record)")
	fs.StringVar(&importPath, "import", "", "JSON lines file (default: stdin)")
	fs.Var(&sets, "set", "set Field=value (repeatable)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	db, err := cliutil.Open(ctx, g, false)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	// single record mode
	if len(sets) > 0 {
		pairs, err := cliutil.ParsePairs(sets)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		fields := make(map[string]any, len(pairs)+1)
		for name, values := range pairs {
			if len(values) == 1 {
				fields[name] = values[0]
			} else {
				fields[name] = values
			}
		}
		if id != 0 {
			fields[cliutil.IDKey] = float64(id)
		}
		saved, err := cliutil.Save(ctx, db, fields)
		if err != nil {
			return fail(err)
		}
		fmt.Fprintf(os.Stdout, "saved %d\n", saved)
		return 0
	}

	// import mode
	var r io.Reader = os.Stdin
	if importPath != "" {
		f, err := os.Open(importPath)
		if err != nil {
			return fail(err)
		}
		defer f.Close()
		r = f
	}
	format := cliutil.ParseOutputFormat(g.Format)
	var ids []uint32
	count, err := cliutil.Import(ctx, db, r, func(id uint32) { ids = append(ids, id) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "imported %d before failing\n", count)
		return fail(err)
	}
	if format == cliutil.FormatJSON {
		cliutil.PrintJSON(os.Stdout, map[string]any{"imported": count, "ids": ids})
		return 0
	}
	fmt.Fprintln(os.Stdout, "imported "+strconv.Itoa(count))
	return 0
}

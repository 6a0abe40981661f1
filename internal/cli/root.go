package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/ministore/docdb/internal/cli/commands"
	"github.com/ministore/docdb/internal/cliopt"
)

// Execute runs the CLI and returns an exit code.
func Execute(argv []string) int {
	globalFS := flag.NewFlagSet("docdb", flag.ContinueOnError)
	globalFS.SetOutput(os.Stderr)
	g := cliopt.DefaultGlobalOptions()
	cliopt.BindGlobalFlags(globalFS, &g)

	if err := globalFS.Parse(argv); err != nil {
		// flag package already printed the error
		return 2
	}

	args := globalFS.Args()
	if len(args) == 0 {
		PrintRootHelp(os.Stdout)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	verb := args[0]
	rest := args[1:]

	switch verb {
	case "--help", "-h", "help":
		PrintRootHelp(os.Stdout)
		return 0
	case "create":
		return commands.RunCreate(ctx, g, rest)
	case "schema":
		return commands.RunSchema(ctx, g, rest)
	case "put":
		return commands.RunPut(ctx, g, rest)
	case "get":
		return commands.RunGet(ctx, g, rest)
	case "delete":
		return commands.RunDelete(ctx, g, rest)
	case "search":
		return commands.RunSearch(ctx, g, rest)
	case "lookup":
		return commands.RunLookup(ctx, g, rest)
	case "reindex":
		return commands.RunReindex(ctx, g, rest)
	case "stats":
		return commands.RunStats(ctx, g, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", verb)
		PrintRootHelp(os.Stderr)
		return 2
	}
}

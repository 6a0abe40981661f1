package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ministore/docdb/docdb"
	"github.com/ministore/docdb/internal/cliopt"
	"github.com/ministore/docdb/internal/cliutil"
)

type searchHit struct {
	ID        uint32         `json:"id"`
	Rank      int            `json:"rank"`
	Score     float64        `json:"score"`
	Percent   int            `json:"percent"`
	Collapsed int            `json:"collapsed,omitempty"`
	Record    map[string]any `json:"record"`
}

type searchOutput struct {
	Info   docdb.SearchInfo              `json:"info"`
	Hits   []searchHit                   `json:"hits"`
	Facets map[string][]docdb.FacetEntry `json:"facets,omitempty"`
}

func RunSearch(ctx context.Context, g cliopt.GlobalOptions, argv []string) int {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var equations, auto, filters, docset, facets cliutil.MultiString
	var opts docdb.SearchOptions
	var show string
	var all, count bool
	var limit int
	fs.Var(&equations, "q", "equation (repeatable, combined with AND)")
	fs.Var(&auto, "auto", "index=value criterion; prefix the index with + or - (repeatable)")
	fs.Var(&filters, "filter", "index=value filter (repeatable)")
	fs.Var(&docset, "docset", "index=value exact document set (repeatable)")
	fs.Var(&facets, "facet", "lookup table to count over the matches (repeatable)")
	fs.StringVar(&opts.DefaultOp, "op", "", "default operator: or|and")
	fs.StringVar(&opts.Boost, "boost", "", "boost expression, e.g. title:2*word")
	fs.StringVar(&opts.Sort, "sort", "", "sort: auto|%|+|-|key,-key")
	fs.IntVar(&opts.Start, "start", 1, "rank of the first result")
	fs.IntVar(&limit, "max", docdb.DefaultMax, "results per page; 0 only counts")
	fs.BoolVar(&all, "all", false, "return every result")
	fs.BoolVar(&count, "count", false, "only count the results")
	fs.Float64Var(&opts.MinScore, "min-score", 0, "minimum score")
	fs.IntVar(&opts.MinPercent, "min-percent", 0, "minimum percentage of the best score")
	fs.StringVar(&opts.Collapse, "collapse", "", "sort key to collapse duplicates on")
	fs.StringVar(&opts.Weighting, "weighting", "", "weighting scheme: bm25|trad|bool")
	fs.BoolVar(&opts.Spelling, "spelling", false, "suggest a corrected equation")
	fs.StringVar(&show, "show", "", "fields to print, comma separated (default: all)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	opts.Equation = append(equations, fs.Args()...)
	switch {
	case count:
		limit = docdb.CountOnly
	case all:
		limit = docdb.Unlimited
	}
	opts.Max = docdb.Limit(limit)
	var err error
	if opts.Auto, err = cliutil.ParsePairs(auto); err == nil {
		if opts.Filter, err = cliutil.ParsePairs(filters); err == nil {
			opts.DocSet, err = cliutil.ParsePairs(docset)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	opts.Facets = facets

	db, err := cliutil.Open(ctx, g, true)
	if err != nil {
		return fail(err)
	}
	defer db.Close()

	s := db.NewSession()
	if _, err := s.Search(ctx, opts); err != nil {
		return fail(err)
	}
	out := searchOutput{Info: s.Info()}
	for view, err := range s.Records(ctx) {
		if err != nil {
			return fail(err)
		}
		out.Hits = append(out.Hits, searchHit{
			ID:        view.ID,
			Rank:      view.Rank,
			Score:     view.Score,
			Percent:   view.Percent,
			Collapsed: view.Collapsed,
			Record:    pick(view.Record.Map(), show),
		})
	}
	for _, name := range facets {
		entries, err := s.Facets(name)
		if err != nil {
			return fail(err)
		}
		if out.Facets == nil {
			out.Facets = make(map[string][]docdb.FacetEntry)
		}
		out.Facets[name] = entries
	}

	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(os.Stdout, out)
		return 0
	}
	printSearch(out, s.Count(docdb.CountEstimated))
	return 0
}

// pick keeps the comma separated fields of show; an empty show keeps all.
func pick(fields map[string]any, show string) map[string]any {
	if strings.TrimSpace(show) == "" {
		return fields
	}
	out := make(map[string]any)
	for _, name := range strings.Split(show, ",") {
		name = strings.TrimSpace(name)
		if v, ok := fields[name]; ok {
			out[name] = v
		}
	}
	return out
}

func printSearch(out searchOutput, total int) {
	info := out.Info
	fmt.Fprintf(os.Stdout, "Found %d records in %dms (query %s, sort %s)\n", total, info.Elapsed.Milliseconds(), info.Query, info.Sort)
	if len(info.Stopped) > 0 {
		fmt.Fprintf(os.Stdout, "Ignored: %s\n", strings.Join(info.Stopped, " "))
	}
	if info.Suggestion != "" {
		fmt.Fprintf(os.Stdout, "Did you mean: %s\n", info.Suggestion)
	}
	for _, h := range out.Hits {
		record, _ := json.Marshal(h.Record)
		line := fmt.Sprintf("%4d. [%d] %3d%% %s", h.Rank, h.ID, h.Percent, record)
		if h.Collapsed > 0 {
			line += fmt.Sprintf(" (+%d similar)", h.Collapsed)
		}
		fmt.Fprintln(os.Stdout, line)
	}
	for name, entries := range out.Facets {
		fmt.Fprintf(os.Stdout, "\n%s:\n", name)
		for _, e := range entries {
			fmt.Fprintf(os.Stdout, "  %6d  %s\n", e.Count, e.Value)
		}
	}
}

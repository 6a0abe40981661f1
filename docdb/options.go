package docdb

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/lookup"
	"github.com/ministore/docdb/docdb/metrics"
)

// Special values of SearchOptions.Max.
const (
	Unlimited = -1
	CountOnly = 0
)

// Limit returns a SearchOptions.Max of n.
func Limit(n int) *int { return &n }

const (
	DefaultMax = 10
	// unlimitedPage is the page size used to walk an unlimited result set.
	unlimitedPage = 100
	// reindexBatch is the number of records written per transaction while
	// reindexing.
	reindexBatch = 500
)

// Options configures a database handle.
type Options struct {
	// ReadOnly rejects every write.
	ReadOnly bool
	Logger   zerolog.Logger
	// Metrics receives the handle's instrumentation; nil gets a private
	// registry.
	Metrics *metrics.Metrics
	Now     func() time.Time
	// LockRetry bounds the wait for another writer.
	LockRetry engine.RetryPolicy
	// SearchDefaults fills in the options a search leaves empty.
	SearchDefaults SearchOptions
	// LookupBudget bounds the dictionary seeks of a lookup table search.
	LookupBudget int
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		Logger:         zerolog.Nop(),
		Now:            time.Now,
		LockRetry:      engine.DefaultRetryPolicy(),
		SearchDefaults: DefaultSearchOptions(),
		LookupBudget:   lookup.DefaultSeekBudget,
	}
}

// withDefaults completes opts where it was left at zero values.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Now == nil {
		o.Now = d.Now
	}
	if o.LockRetry.Attempts == 0 {
		o.LockRetry = d.LockRetry
	}
	if o.LookupBudget <= 0 {
		o.LookupBudget = d.LookupBudget
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New(nil)
	}
	o.SearchDefaults = o.SearchDefaults.merge(d.SearchDefaults)
	return o
}

// SearchOptions configures a search. Maps are keyed by index or alias
// name.
type SearchOptions struct {
	// Equation lists equations combined with AND.
	Equation []string
	// Auto maps an index or alias, optionally prefixed with "+" (required)
	// or "-" (excluded), to values.
	Auto map[string][]string
	// Filter restricts the matches without changing their weight.
	Filter map[string][]string
	// DocSet restricts the matches to documents indexing one of the exact
	// terms given per index.
	DocSet          map[string][]string
	DefaultEquation []string
	DefaultFilter   map[string][]string
	// DefaultOp joins adjacent words of an equation: "or" or "and".
	DefaultOp string
	// Boost is an expression such as "title:2*word" favoring matches.
	Boost string
	// Sort is "auto", "%", "+", "-" or a list of sort keys.
	Sort        string
	DefaultSort string
	// Start is the 1-based rank of the first result.
	Start int
	// Max is the page size, Unlimited or CountOnly. nil means the default.
	Max          *int
	MinScore     float64
	MinPercent   int
	Collapse     string
	Weighting    string
	Facets       []string
	CheckAtLeast int
	// Spelling computes a corrected equation with the results.
	Spelling bool
}

// DefaultSearchOptions returns the defaults merged into every search.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		DefaultOp:   "or",
		Sort:        "auto",
		DefaultSort: "-",
		Start:       1,
		Max:         Limit(DefaultMax),
		Weighting:   string(engine.WeightBM25),
	}
}

// merge returns o with its empty options taken from d.
func (o SearchOptions) merge(d SearchOptions) SearchOptions {
	if len(nonBlank(o.Equation)) == 0 {
		o.Equation = d.Equation
	}
	if len(o.Auto) == 0 {
		o.Auto = d.Auto
	}
	if len(o.Filter) == 0 {
		o.Filter = d.Filter
	}
	if len(o.DocSet) == 0 {
		o.DocSet = d.DocSet
	}
	if len(nonBlank(o.DefaultEquation)) == 0 {
		o.DefaultEquation = d.DefaultEquation
	}
	if len(o.DefaultFilter) == 0 {
		o.DefaultFilter = d.DefaultFilter
	}
	if o.DefaultOp == "" {
		o.DefaultOp = d.DefaultOp
	}
	if o.Boost == "" {
		o.Boost = d.Boost
	}
	if o.Sort == "" {
		o.Sort = d.Sort
	}
	if o.DefaultSort == "" {
		o.DefaultSort = d.DefaultSort
	}
	if o.Start <= 0 {
		o.Start = d.Start
	}
	if o.Max == nil {
		o.Max = d.Max
	}
	if o.MinScore == 0 {
		o.MinScore = d.MinScore
	}
	if o.MinPercent == 0 {
		o.MinPercent = d.MinPercent
	}
	if o.Collapse == "" {
		o.Collapse = d.Collapse
	}
	if o.Weighting == "" {
		o.Weighting = d.Weighting
	}
	if len(o.Facets) == 0 {
		o.Facets = d.Facets
	}
	if o.CheckAtLeast == 0 {
		o.CheckAtLeast = d.CheckAtLeast
	}
	o.Spelling = o.Spelling || d.Spelling
	return o
}

func nonBlank(list []string) []string {
	var out []string
	for _, s := range list {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

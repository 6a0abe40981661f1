// Package encoder turns records into the terms, lookup entries and sort
// values written to the engine.
//
// Every index owns the term prefix "{index id}:" and every lookup table the
// prefix "T{table id}:". Under an index prefix, words are stored as folded
// tokens, whole values as "_token_token_", and multiplicity as "__hasN" or
// "__empty". Sort keys are stored in the value slot numbered by their id.
package encoder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/record"
	"github.com/ministore/docdb/docdb/schema"
	"github.com/ministore/docdb/docdb/textutil"
)

const (
	// MaxTermLength is the longest term, prefix included, in bytes.
	MaxTermLength = 236
	// PositionGap separates the positions of two values of one field.
	PositionGap = 100
	// ValueSep joins the tokens of a whole value.
	ValueSep = "_"
	// EmptyTerm marks an empty field in count mode.
	EmptyTerm = "__empty"
	// HasPrefix precedes the value count in count mode.
	HasPrefix = "__has"
)

// IndexPrefix is the term prefix of an index.
func IndexPrefix(id int) string { return strconv.Itoa(id) + ":" }

// LookupPrefix is the term prefix of a lookup table.
func LookupPrefix(id int) string { return "T" + strconv.Itoa(id) + ":" }

// Term is an indexed term. Position is 0 for terms without position.
type Term struct {
	Text     string
	Prefix   string
	WDF      int
	Position int
}

// Full returns the term as stored: prefix and text.
func (t Term) Full() string { return t.Prefix + t.Text }

// LookupEntry is a lookup table entry.
type LookupEntry struct {
	Text   string
	Prefix string
}

func (e LookupEntry) Full() string { return e.Prefix + e.Text }

// SortValue is the encoded value of a sort key.
type SortValue struct {
	Slot  int
	Value []byte
}

// Output is everything written for one record.
type Output struct {
	Terms      []Term
	Lookups    []LookupEntry
	SortValues []SortValue
	Blob       []byte
	// Spellings lists the words added to the spelling dictionary.
	Spellings []string
}

// Document builds the engine document of the output.
func (o *Output) Document() *engine.Document {
	d := engine.NewDocument()
	d.SetData(o.Blob)
	for _, t := range o.Terms {
		switch {
		case t.Position > 0:
			d.AddPosting(t.Full(), t.Position, t.WDF)
		case t.WDF > 0:
			d.AddTerm(t.Full(), t.WDF)
		default:
			d.AddBooleanTerm(t.Full())
		}
	}
	for _, e := range o.Lookups {
		d.AddBooleanTerm(e.Full())
	}
	for _, v := range o.SortValues {
		d.SetValue(v.Slot, v.Value)
	}
	return d
}

// Encoder encodes records of one compiled schema.
type Encoder struct {
	schema    *schema.Schema
	stopwords map[int]textutil.Stopwords
}

// New returns an encoder for s, which must be compiled.
func New(s *schema.Schema) (*Encoder, error) {
	if !s.Compiled() {
		if err := s.Compile(); err != nil {
			return nil, err
		}
	}
	e := &Encoder{schema: s, stopwords: make(map[int]textutil.Stopwords)}
	if !s.IndexStopwords {
		for _, f := range s.AllFields() {
			if sw := textutil.ParseStopwords(s.StopwordsFor(f)); len(sw) > 0 {
				e.stopwords[f.ID] = sw
			}
		}
	}
	return e, nil
}

func (e *Encoder) Schema() *schema.Schema { return e.schema }

// Encode encodes r. The same record always produces the same output.
func (e *Encoder) Encode(r *record.Record) (*Output, error) {
	out := &Output{}
	for _, ix := range e.schema.AllIndices() {
		e.encodeIndex(out, r, ix)
	}
	for _, t := range e.schema.AllLookupTables() {
		e.encodeLookup(out, r, t)
	}
	for _, k := range e.schema.AllSortKeys() {
		v, err := e.SortValue(r, k)
		if err != nil {
			return nil, err
		}
		out.SortValues = append(out.SortValues, SortValue{Slot: k.ID, Value: v})
	}

	blob, err := record.EncodeWithSpellings(r, out.Spellings)
	if err != nil {
		return nil, err
	}
	out.Blob = blob
	return out, nil
}

func (e *Encoder) encodeIndex(out *Output, r *record.Record, ix *schema.Index) {
	prefix := IndexPrefix(ix.ID)
	budget := MaxTermLength - len(prefix)
	boolean := ix.Type == schema.IndexBoolean
	spelling := ix.Spelling && !boolean
	pos := 1

	for _, f := range ix.Fields() {
		weight := f.Weight
		if boolean {
			weight = 0
		}
		values := r.Strings(f.ID)
		start, end := textutil.ParseBound(f.Start), textutil.ParseBound(f.End)
		sw := e.stopwords[f.ID]

		if f.Count {
			text := EmptyTerm
			if len(values) > 0 {
				text = HasPrefix + strconv.Itoa(len(values))
			}
			out.Terms = append(out.Terms, Term{Text: text, Prefix: prefix, WDF: weight})
		}

		for _, v := range values {
			tokens := textutil.Tokenize(textutil.Extract(v, start, end))
			if f.Words || f.Phrases {
				for _, tok := range tokens {
					p := pos
					pos++
					if sw.Contains(tok) && !f.Phrases {
						continue
					}
					tok = textutil.Truncate(tok, budget)
					t := Term{Text: tok, Prefix: prefix, WDF: weight}
					if f.Phrases {
						t.Position = p
					}
					out.Terms = append(out.Terms, t)
					if spelling && !sw.Contains(tok) {
						out.Spellings = append(out.Spellings, tok)
					}
				}
				pos += PositionGap
			}
			if f.Values {
				if text := ValueTerm(tokens, budget); text != "" {
					out.Terms = append(out.Terms, Term{Text: text, Prefix: prefix, WDF: weight})
				}
			}
		}
	}
}

// ValueTerm joins the tokens of a whole value as "_a_b_", cut to budget
// bytes. It returns "" for no tokens.
func ValueTerm(tokens []string, budget int) string {
	if len(tokens) == 0 {
		return ""
	}
	body := textutil.Truncate(strings.Join(tokens, ValueSep), budget-2*len(ValueSep))
	return ValueSep + body + ValueSep
}

// ValueStem is the prefix of the value terms starting with tokens, used for
// trailing wildcards: "_a_b".
func ValueStem(tokens []string, budget int) string {
	if len(tokens) == 0 {
		return ValueSep
	}
	return ValueSep + textutil.Truncate(strings.Join(tokens, ValueSep), budget-len(ValueSep))
}

func (e *Encoder) encodeLookup(out *Output, r *record.Record, t *schema.LookupTable) {
	prefix := LookupPrefix(t.ID)
	budget := MaxTermLength - len(prefix)
	seen := make(map[string]bool)
	for _, f := range t.Fields() {
		start, end := textutil.ParseBound(f.Start), textutil.ParseBound(f.End)
		for _, v := range textutil.SliceValues(r.Strings(f.ID), f.StartValue, f.EndValue) {
			entry := textutil.Truncate(textutil.CollapseSpaces(textutil.Extract(v, start, end)), budget)
			if entry == "" || seen[entry] {
				continue
			}
			seen[entry] = true
			out.Lookups = append(out.Lookups, LookupEntry{Text: entry, Prefix: prefix})
		}
	}
}

// SortValue computes the slot value of a sort key: the first field of the
// key yielding a non-empty extract, encoded by the key type.
func (e *Encoder) SortValue(r *record.Record, k *schema.SortKey) ([]byte, error) {
	var text string
	for _, f := range k.Fields() {
		values := r.Strings(f.ID)
		if len(values) == 0 {
			continue
		}
		s := textutil.Extract(values[0], textutil.ParseBound(f.Start), textutil.ParseBound(f.End))
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if f.Length > 0 {
			if runes := []rune(s); len(runes) > f.Length {
				s = string(runes[:f.Length])
			}
		}
		text = s
		break
	}

	switch k.Type {
	case schema.SortString:
		return StringKey(text), nil
	case schema.SortNumber:
		return NumberKey(text), nil
	}
	return nil, errs.New(errs.ErrInvalidSortType, fmt.Sprintf("sort key %s has type %q", k.Name, k.Type)).WithField(k.Name)
}

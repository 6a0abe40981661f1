// Package engine is the inverted index behind a docdb database: documents
// made of weighted, positioned terms and value slots, a query tree, and its
// evaluation into ranked match sets over a pluggable storage backend.
package engine

import (
	"sort"
)

// TermEntry is the occurrence of a term in one document.
type TermEntry struct {
	WDF       int
	Positions []int
}

// Document is the unit stored by a backend: an opaque data blob, terms and
// value slots.
type Document struct {
	data   []byte
	terms  map[string]*TermEntry
	values map[int][]byte
}

func NewDocument() *Document {
	return &Document{
		terms:  make(map[string]*TermEntry),
		values: make(map[int][]byte),
	}
}

func (d *Document) SetData(data []byte) { d.data = data }

func (d *Document) Data() []byte { return d.data }

func (d *Document) entry(term string) *TermEntry {
	e, ok := d.terms[term]
	if !ok {
		e = &TermEntry{}
		d.terms[term] = e
	}
	return e
}

// AddTerm adds wdf to the within-document frequency of term.
func (d *Document) AddTerm(term string, wdf int) {
	d.entry(term).WDF += wdf
}

// AddPosting records term at a position and adds wdf to its frequency.
func (d *Document) AddPosting(term string, pos, wdf int) {
	e := d.entry(term)
	e.WDF += wdf
	i := sort.SearchInts(e.Positions, pos)
	if i < len(e.Positions) && e.Positions[i] == pos {
		return
	}
	e.Positions = append(e.Positions, 0)
	copy(e.Positions[i+1:], e.Positions[i:])
	e.Positions[i] = pos
}

// AddBooleanTerm adds a term that does not contribute to the weight.
func (d *Document) AddBooleanTerm(term string) {
	d.entry(term)
}

func (d *Document) SetValue(slot int, value []byte) {
	if len(value) == 0 {
		delete(d.values, slot)
		return
	}
	d.values[slot] = value
}

func (d *Document) Value(slot int) []byte { return d.values[slot] }

// Values returns the slot map of the document. Callers must not modify it.
func (d *Document) Values() map[int][]byte { return d.values }

// Term returns the entry of a term.
func (d *Document) Term(term string) (TermEntry, bool) {
	e, ok := d.terms[term]
	if !ok {
		return TermEntry{}, false
	}
	return *e, true
}

// Terms returns the terms of the document in byte order.
func (d *Document) Terms() []string {
	out := make([]string, 0, len(d.terms))
	for t := range d.terms {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Length is the sum of the within-document frequencies.
func (d *Document) Length() int {
	n := 0
	for _, e := range d.terms {
		n += e.WDF
	}
	return n
}

package engine

import (
	"bytes"
	"strconv"
	"strings"
)

// SortKind selects the result order.
type SortKind int

const (
	SortRelevance SortKind = iota
	SortDocIDAsc
	SortDocIDDesc
	// SortValues orders by value slots, ties broken by document id.
	SortValues
	// SortValuesThenRelevance orders by value slots, then by weight.
	SortValuesThenRelevance
	// SortRelevanceThenValues orders by weight, then by value slots.
	SortRelevanceThenValues
)

// SortKey is one value slot of a multi-key order.
type SortKey struct {
	Slot    int
	Reverse bool
}

// SortOrder is the complete ordering of a match set.
type SortOrder struct {
	Kind SortKind
	Keys []SortKey
}

// ByRelevance is the default order.
var ByRelevance = SortOrder{Kind: SortRelevance}

// UsesRelevance reports whether weights take part in the order.
func (s SortOrder) UsesRelevance() bool {
	switch s.Kind {
	case SortRelevance, SortValuesThenRelevance, SortRelevanceThenValues:
		return true
	}
	return false
}

func (s SortOrder) String() string {
	switch s.Kind {
	case SortRelevance:
		return "relevance"
	case SortDocIDAsc:
		return "docid"
	case SortDocIDDesc:
		return "docid desc"
	}
	var parts []string
	if s.Kind == SortRelevanceThenValues {
		parts = append(parts, "relevance")
	}
	for _, k := range s.Keys {
		p := "slot " + strconv.Itoa(k.Slot)
		if k.Reverse {
			p += " desc"
		}
		parts = append(parts, p)
	}
	if s.Kind == SortValuesThenRelevance {
		parts = append(parts, "relevance")
	}
	return strings.Join(parts, ", ")
}

type hit struct {
	doc    uint32
	weight float64
	keys   [][]byte
}

// less reports whether a ranks before b.
func (s SortOrder) less(a, b *hit) bool {
	switch s.Kind {
	case SortDocIDAsc:
		return a.doc < b.doc
	case SortDocIDDesc:
		return a.doc > b.doc
	case SortRelevance:
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		return a.doc < b.doc
	case SortRelevanceThenValues:
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		if c := s.compareKeys(a, b); c != 0 {
			return c < 0
		}
		return a.doc < b.doc
	case SortValuesThenRelevance:
		if c := s.compareKeys(a, b); c != 0 {
			return c < 0
		}
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		return a.doc < b.doc
	default:
		if c := s.compareKeys(a, b); c != 0 {
			return c < 0
		}
		return a.doc < b.doc
	}
}

func (s SortOrder) compareKeys(a, b *hit) int {
	for i, k := range s.Keys {
		c := bytes.Compare(a.keys[i], b.keys[i])
		if k.Reverse {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

package querybuild

import (
	"strings"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/schema"
)

// Sort spec tokens.
const (
	SortAuto      = "auto"
	SortRelevance = "%"
	SortDocIDAsc  = "+"
	SortDocIDDesc = "-"
)

// ParseSort reads a sort spec: "%" for relevance, "+" or "-" for document
// id order, or sort key names with an optional "+" or "-" suffix, separated
// by spaces or commas. In a list, "%" may only come first or last, and
// document id order cannot be combined with anything.
func ParseSort(s *schema.Schema, spec string) (engine.SortOrder, error) {
	parts := strings.FieldsFunc(spec, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	if len(parts) == 0 {
		return engine.ByRelevance, nil
	}

	if len(parts) == 1 {
		switch parts[0] {
		case SortRelevance:
			return engine.ByRelevance, nil
		case SortDocIDAsc:
			return engine.SortOrder{Kind: engine.SortDocIDAsc}, nil
		case SortDocIDDesc:
			return engine.SortOrder{Kind: engine.SortDocIDDesc}, nil
		}
	}

	order := engine.SortOrder{Kind: engine.SortValues}
	for i, part := range parts {
		switch part {
		case SortDocIDAsc, SortDocIDDesc:
			return engine.SortOrder{}, errs.Newf(errs.ErrSortSpec, "sort %q: document id order cannot be combined", spec)
		case SortRelevance:
			switch {
			case i == 0:
				order.Kind = engine.SortRelevanceThenValues
			case i == len(parts)-1 && order.Kind == engine.SortValues:
				order.Kind = engine.SortValuesThenRelevance
			default:
				return engine.SortOrder{}, errs.Newf(errs.ErrSortSpec, "sort %q: relevance must come first or last", spec)
			}
			continue
		}

		name, reverse := part, false
		switch {
		case strings.HasSuffix(part, "-"):
			name, reverse = strings.TrimSuffix(part, "-"), true
		case strings.HasSuffix(part, "+"):
			name = strings.TrimSuffix(part, "+")
		}
		key := s.SortKey(name)
		if key == nil {
			return engine.SortOrder{}, errs.Newf(errs.ErrSortSpec, "sort %q: unknown sort key %q", spec, name).WithField(name)
		}
		order.Keys = append(order.Keys, engine.SortKey{Slot: key.ID, Reverse: reverse})
	}
	if len(order.Keys) == 0 {
		return engine.SortOrder{}, errs.Newf(errs.ErrSortSpec, "sort %q: no sort key", spec)
	}
	return order, nil
}

package schema

import (
	"fmt"
	"slices"
	"sort"
)

// Change levels.
const (
	// LevelLive changes apply to an existing database as is.
	LevelLive = 0
	// LevelReindexRecommended changes leave stale terms behind.
	LevelReindexRecommended = 1
	// LevelReindexRequired changes make existing records inconsistent.
	LevelReindexRequired = 2
)

// Change is one human readable difference between two schemas.
type Change struct {
	Message string
	Level   int
}

// Changes is the ordered change list produced by Compare.
type Changes []Change

// Max returns the highest level, or -1 for an empty list.
func (c Changes) Max() int {
	m := -1
	for _, ch := range c {
		if ch.Level > m {
			m = ch.Level
		}
	}
	return m
}

// MustReindex reports whether at least one change requires a reindex.
func (c Changes) MustReindex() bool { return c.Max() > LevelReindexRecommended }

func (c *Changes) add(level int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for i, ch := range *c {
		if ch.Message == msg {
			if level > ch.Level {
				(*c)[i].Level = level
			}
			return
		}
	}
	*c = append(*c, Change{Message: msg, Level: level})
}

// diffRules grades the changes of one top-level collection.
type diffRules struct {
	created, deleted, renamed, reordered int
	// props maps a declared property to its level; unlisted ones are live.
	props map[string]int
	// propLevel overrides props for value-dependent levels.
	propLevel func(prop string, old, new any) (int, bool)

	childAdded, childRemoved, childReordered int
	childProps                               map[string]int
}

var schemaPropLevels = map[string]int{
	"stopwords":      LevelReindexRequired,
	"indexstopwords": LevelReindexRequired,
}

var schemaPropIgnored = map[string]bool{
	"creation": true, "lastupdate": true, "version": true,
	"lastid.field": true, "lastid.index": true, "lastid.alias": true,
	"lastid.lookuptable": true, "lastid.sortkey": true,
}

var rules = map[Kind]diffRules{
	KindFields: {
		created: LevelLive, deleted: LevelReindexRecommended,
		props: map[string]int{
			"type":             LevelReindexRequired,
			"defaultstopwords": LevelReindexRequired,
			"stopwords":        LevelReindexRequired,
		},
	},
	KindIndices: {
		created: LevelReindexRequired, deleted: LevelReindexRecommended,
		props: map[string]int{"type": LevelReindexRequired},
		propLevel: func(prop string, _, new any) (int, bool) {
			if prop != "spelling" {
				return 0, false
			}
			if on, _ := new.(bool); on {
				return LevelReindexRequired, true
			}
			return LevelReindexRecommended, true
		},
		childAdded: LevelReindexRequired, childRemoved: LevelReindexRequired,
		childReordered: LevelReindexRecommended,
		childProps: map[string]int{
			"words": LevelReindexRequired, "phrases": LevelReindexRequired,
			"values": LevelReindexRequired, "count": LevelReindexRequired,
			"start": LevelReindexRequired, "end": LevelReindexRequired,
			"weight": LevelReindexRequired,
		},
	},
	KindAliases: {},
	KindLookupTables: {
		created: LevelReindexRequired, deleted: LevelReindexRecommended,
		props:      map[string]int{"type": LevelReindexRequired},
		childAdded: LevelReindexRequired, childRemoved: LevelReindexRequired,
		childProps: map[string]int{
			"startvalue": LevelReindexRequired, "endvalue": LevelReindexRequired,
			"start": LevelReindexRequired, "end": LevelReindexRequired,
		},
	},
	KindSortKeys: {
		created: LevelReindexRequired, deleted: LevelReindexRecommended,
		props:      map[string]int{"type": LevelReindexRequired},
		childAdded: LevelReindexRequired, childRemoved: LevelReindexRequired,
		childReordered: LevelReindexRequired,
		childProps: map[string]int{
			"start": LevelReindexRequired, "end": LevelReindexRequired,
			"length": LevelReindexRequired,
		},
	},
}

// Compare lists what changes from old to new. Both schemas are compiled
// first when needed. Members are matched by _id, never by position.
func Compare(old, new *Schema) (Changes, error) {
	for _, s := range []*Schema{old, new} {
		if !s.Compiled() {
			if err := s.Compile(); err != nil {
				return nil, err
			}
		}
	}

	var out Changes
	diffProps(&out, "schema", old, new, func(prop string, _, _ any) (int, bool) {
		if schemaPropIgnored[prop] {
			return 0, false
		}
		return schemaPropLevels[prop], true
	})
	for i, oc := range old.Collections() {
		diffCollection(&out, oc, new.Collections()[i], rules[oc.kind])
	}
	return out, nil
}

func diffCollection(out *Changes, oc, nc *Collection, r diffRules) {
	label := oc.accepts.String()
	oldByID, newByID := indexByID(oc), indexByID(nc)

	for _, n := range oc.order {
		if _, ok := newByID[IDOf(n)]; !ok {
			out.add(r.deleted, "%s %q deleted", label, NameOf(n))
		}
	}
	for _, n := range nc.order {
		if _, ok := oldByID[IDOf(n)]; !ok {
			out.add(r.created, "%s %q created", label, NameOf(n))
		}
	}
	if reordered(oc, nc) {
		out.add(r.reordered, "%s reordered", oc.kind)
	}

	for _, n := range nc.order {
		o, ok := oldByID[IDOf(n)]
		if !ok {
			continue
		}
		name := NameOf(n)
		if NameOf(o) != name {
			out.add(r.renamed, "%s %q renamed to %q", label, NameOf(o), name)
		}
		what := fmt.Sprintf("%s %q", label, name)
		diffProps(out, what, o, n, func(prop string, ov, nv any) (int, bool) {
			if r.propLevel != nil {
				if level, ok := r.propLevel(prop, ov, nv); ok {
					return level, true
				}
			}
			return r.props[prop], true
		})

		och, nch := o.base().children, n.base().children
		if och == nil || nch == nil {
			continue
		}
		diffChildren(out, what, och, nch, r)
	}
}

func diffChildren(out *Changes, owner string, oc, nc *Collection, r diffRules) {
	label := oc.accepts.String()
	oldByID, newByID := indexByID(oc), indexByID(nc)
	for _, n := range oc.order {
		if _, ok := newByID[IDOf(n)]; !ok {
			out.add(r.childRemoved, "%s: %s %q removed", owner, label, NameOf(n))
		}
	}
	for _, n := range nc.order {
		o, ok := oldByID[IDOf(n)]
		if !ok {
			out.add(r.childAdded, "%s: %s %q added", owner, label, NameOf(n))
			continue
		}
		diffProps(out, fmt.Sprintf("%s: %s %q", owner, label, NameOf(n)), o, n, func(prop string, _, _ any) (int, bool) {
			return r.childProps[prop], true
		})
	}
	if reordered(oc, nc) {
		out.add(r.childReordered, "%s: %s reordered", owner, oc.kind)
	}
}

// diffProps reports every declared or extra property whose value differs.
// level returns false for properties that are not compared.
func diffProps(out *Changes, what string, o, n Node, level func(prop string, old, new any) (int, bool)) {
	for _, p := range variantOf(n).props {
		if p.name == "_id" || p.name == "name" {
			continue
		}
		ov, _ := GetProp(o, p.name)
		nv, _ := GetProp(n, p.name)
		if ov == nv {
			continue
		}
		l, ok := level(p.name, ov, nv)
		if !ok {
			continue
		}
		out.add(l, "%s: %s changed from %s to %s", what, p.name, quote(ov), quote(nv))
	}

	keys := make(map[string]bool)
	for k := range o.base().Extra {
		keys[k] = true
	}
	for k := range n.base().Extra {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	for _, k := range sorted {
		ov, oldOK := o.base().Extra[k]
		nv, newOK := n.base().Extra[k]
		switch {
		case !oldOK:
			out.add(LevelLive, "%s: %s set to %q", what, k, nv)
		case !newOK:
			out.add(LevelLive, "%s: %s removed", what, k)
		case ov != nv:
			out.add(LevelLive, "%s: %s changed from %q to %q", what, k, ov, nv)
		}
	}
}

func quote(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}

func indexByID(c *Collection) map[int]Node {
	m := make(map[int]Node, len(c.order))
	for _, n := range c.order {
		m[IDOf(n)] = n
	}
	return m
}

// reordered reports whether the members present on both sides changed
// their relative order.
func reordered(oc, nc *Collection) bool {
	newByID := indexByID(nc)
	oldByID := indexByID(oc)
	var a, b []int
	for _, n := range oc.order {
		if _, ok := newByID[IDOf(n)]; ok {
			a = append(a, IDOf(n))
		}
	}
	for _, n := range nc.order {
		if _, ok := oldByID[IDOf(n)]; ok {
			b = append(b, IDOf(n))
		}
	}
	return !slices.Equal(a, b)
}

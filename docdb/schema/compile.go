package schema

import (
	"strings"

	"github.com/ministore/docdb/docdb/errs"
)

var fieldTypes = map[string]FieldType{
	"":           FieldText,
	"text":       FieldText,
	"string":     FieldText,
	"int":        FieldInt,
	"integer":    FieldInt,
	"autonumber": FieldAutoNumber,
	"bool":       FieldBool,
	"boolean":    FieldBool,
}

var indexTypes = map[string]IndexType{
	"":              IndexProbabilistic,
	"probabilistic": IndexProbabilistic,
	"boolean":       IndexBoolean,
	"bool":          IndexBoolean,
}

// Compile prepares the schema for indexing and querying. It re-keys the
// collections, allocates missing ids, normalizes types and resolves the
// references of index fields, alias indices, lookup table fields and sort
// key fields. Compiling an already compiled schema changes nothing.
func (s *Schema) Compile() error {
	// 1. re-key
	for _, c := range s.Collections() {
		if err := c.rekey(); err != nil {
			return err
		}
		for _, n := range c.order {
			if ch := n.base().children; ch != nil {
				if err := ch.rekey(); err != nil {
					return err
				}
			}
		}
	}

	// 2. ids
	if err := allocateIDs(s.Fields, &s.LastFieldID); err != nil {
		return err
	}
	if err := allocateIDs(s.Indices, &s.LastIndexID); err != nil {
		return err
	}
	if err := allocateIDs(s.Aliases, &s.LastAliasID); err != nil {
		return err
	}
	if err := allocateIDs(s.LookupTables, &s.LastLookupTableID); err != nil {
		return err
	}
	if err := allocateIDs(s.SortKeys, &s.LastSortKeyID); err != nil {
		return err
	}

	// 3. field types
	for _, f := range s.AllFields() {
		t, ok := fieldTypes[strings.ToLower(strings.TrimSpace(string(f.Type)))]
		if !ok {
			return errs.Newf(errs.ErrInvalidFieldType, "field %q has invalid type %q", f.Name, f.Type).WithField(f.Name)
		}
		f.Type = t
	}

	// 4. references
	for _, ix := range s.AllIndices() {
		for _, f := range ix.Fields() {
			if err := resolveRef(ix.children, f, &f.ID, &f.Name, s.Fields); err != nil {
				return err
			}
		}
	}
	for _, a := range s.AllAliases() {
		for _, ai := range a.Indices() {
			if err := resolveRef(a.children, ai, &ai.ID, &ai.Name, s.Indices); err != nil {
				return err
			}
		}
	}
	for _, t := range s.AllLookupTables() {
		for _, f := range t.Fields() {
			if err := resolveRef(t.children, f, &f.ID, &f.Name, s.Fields); err != nil {
				return err
			}
		}
	}
	for _, k := range s.AllSortKeys() {
		for _, f := range k.Fields() {
			if err := resolveRef(k.children, f, &f.ID, &f.Name, s.Fields); err != nil {
				return err
			}
		}
	}

	// 5. index, alias, lookup table and sort key types
	for _, ix := range s.AllIndices() {
		t, ok := indexTypes[strings.ToLower(strings.TrimSpace(string(ix.Type)))]
		if !ok {
			return errs.Newf(errs.ErrInvalidIndexType, "index %q has invalid type %q", ix.Name, ix.Type).WithField(ix.Name)
		}
		ix.Type = t
	}
	for _, a := range s.AllAliases() {
		t, ok := indexTypes[strings.ToLower(strings.TrimSpace(string(a.Type)))]
		if !ok {
			return errs.Newf(errs.ErrInvalidIndexType, "alias %q has invalid type %q", a.Name, a.Type).WithField(a.Name)
		}
		a.Type = t
	}
	for _, t := range s.AllLookupTables() {
		switch LookupType(strings.ToLower(strings.TrimSpace(string(t.Type)))) {
		case "", LookupSimple:
			t.Type = LookupSimple
		default:
			return errs.Newf(errs.ErrInvalidLookupType, "lookup table %q has invalid type %q", t.Name, t.Type).WithField(t.Name)
		}
	}
	for _, k := range s.AllSortKeys() {
		switch typ := SortKeyType(strings.ToLower(strings.TrimSpace(string(k.Type)))); typ {
		case "":
			k.Type = SortString
		case SortString, SortNumber:
			k.Type = typ
		default:
			return errs.Newf(errs.ErrInvalidSortType, "sort key %q has invalid type %q", k.Name, k.Type).WithField(k.Name)
		}
	}

	s.Version = FormatVersion
	s.compiled = true
	return nil
}

// allocateIDs gives an id to every node lacking one. The counter never goes
// back, so the id of a removed node is never handed out again.
func allocateIDs(c *Collection, last *int) error {
	seen := make(map[int]Node, len(c.order))
	for _, n := range c.order {
		id := IDOf(n)
		if id == 0 {
			continue
		}
		if other, dup := seen[id]; dup {
			return errs.Newf(errs.ErrInvalidProperty, "%s %q and %q share _id %d", n.Kind(), NameOf(other), NameOf(n), id)
		}
		seen[id] = n
		if id > *last {
			*last = id
		}
	}
	for _, n := range c.order {
		if IDOf(n) != 0 {
			continue
		}
		*last++
		setField(fieldOf(n, "_id"), *last)
	}
	return nil
}

// resolveRef binds a referencing node to its target by name. When the name
// no longer resolves but the recorded id does, the target was renamed and
// the reference follows it.
func resolveRef(siblings *Collection, n Node, id *int, name *string, targets *Collection) error {
	if target := targets.Get(*name); target != nil {
		*id = IDOf(target)
		return nil
	}
	if *id != 0 {
		for _, target := range targets.order {
			if IDOf(target) == *id {
				if err := siblings.rename(n, NameOf(target)); err != nil {
					return err
				}
				*name = NameOf(target)
				return nil
			}
		}
	}
	return errs.Newf(errs.ErrUnknownFieldRef, "%s %q references unknown %s %q",
		Parent(siblings).Kind(), NameOf(Parent(siblings)), targets.accepts, *name).WithField(*name)
}

// Package schema implements the typed schema tree of a docdb database:
// fields, indices, aliases, lookup tables and sort keys, their compilation,
// validation, comparison and serialization.
package schema

import (
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/textutil"
)

// Kind identifies a node variant.
type Kind int

const (
	KindSchema Kind = iota
	KindFields
	KindField
	KindIndices
	KindIndex
	KindIndexField
	KindAliases
	KindAlias
	KindAliasIndex
	KindLookupTables
	KindLookupTable
	KindLookupTableField
	KindSortKeys
	KindSortKey
	KindSortKeyField

	kindCount
)

var kindNames = [kindCount]string{
	KindSchema:           "schema",
	KindFields:           "fields",
	KindField:            "field",
	KindIndices:          "indices",
	KindIndex:            "index",
	KindIndexField:       "indexfield",
	KindAliases:          "aliases",
	KindAlias:            "alias",
	KindAliasIndex:       "aliasindex",
	KindLookupTables:     "lookuptables",
	KindLookupTable:      "lookuptable",
	KindLookupTableField: "lookuptablefield",
	KindSortKeys:         "sortkeys",
	KindSortKey:          "sortkey",
	KindSortKeyField:     "sortkeyfield",
}

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind maps a node type name to its kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), true
		}
	}
	return 0, false
}

// childKind is the only kind a node of the given kind accepts as child.
var childKind = map[Kind]Kind{
	KindFields:       KindField,
	KindIndices:      KindIndex,
	KindIndex:        KindIndexField,
	KindAliases:      KindAlias,
	KindAlias:        KindAliasIndex,
	KindLookupTables: KindLookupTable,
	KindLookupTable:  KindLookupTableField,
	KindSortKeys:     KindSortKey,
	KindSortKey:      KindSortKeyField,
}

// Node is implemented by every schema node variant.
type Node interface {
	Kind() Kind
	base() *nodeBase
}

type nodeBase struct {
	parent   Node
	children *Collection

	// Extra holds properties that no variant declares. They are kept as-is
	// across serialization.
	Extra map[string]string
}

func (b *nodeBase) base() *nodeBase { return b }

// Parent returns the node holding n, or nil for a detached node or the root.
func Parent(n Node) Node { return n.base().parent }

// Children returns the child collection of n, nil for leaves.
func Children(n Node) *Collection {
	if c, ok := n.(*Collection); ok {
		return c
	}
	return n.base().children
}

// NameOf returns the name property of n ("" for collections and the root).
func NameOf(n Node) string {
	v, _ := GetProp(n, "name")
	s, _ := v.(string)
	return s
}

// KeyOf returns the normalized name of n.
func KeyOf(n Node) string { return textutil.NormalizeName(NameOf(n)) }

// IDOf returns the _id property of n (0 when not compiled or not applicable).
func IDOf(n Node) int {
	v, _ := GetProp(n, "_id")
	i, _ := v.(int)
	return i
}

// root walks up to the schema holding n.
func root(n Node) *Schema {
	for n != nil {
		if s, ok := n.(*Schema); ok {
			return s
		}
		n = n.base().parent
	}
	return nil
}

// touch invalidates the compiled state of the schema holding n.
func touch(n Node) {
	if s := root(n); s != nil {
		s.compiled = false
	}
}

// Create instantiates a node from its type name and initial properties.
func Create(nodetype string, props map[string]any) (Node, error) {
	kind, ok := ParseKind(nodetype)
	if !ok {
		return nil, errs.Newf(errs.ErrUnknownNodeType, "unknown node type %q", nodetype)
	}
	n := newNode(kind)
	for name, v := range props {
		if err := SetProp(n, name, v); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func newNode(kind Kind) Node {
	var n Node
	switch kind {
	case KindSchema:
		return NewSchema()
	case KindFields, KindIndices, KindAliases, KindLookupTables, KindSortKeys:
		return newCollection(kind)
	case KindField:
		n = &Field{}
	case KindIndex:
		n = &Index{}
	case KindIndexField:
		n = &IndexField{}
	case KindAlias:
		n = &Alias{}
	case KindAliasIndex:
		n = &AliasIndex{}
	case KindLookupTable:
		n = &LookupTable{}
	case KindLookupTableField:
		n = &LookupTableField{}
	case KindSortKey:
		n = &SortKey{}
	case KindSortKeyField:
		n = &SortKeyField{}
	}
	applyDefaults(n)
	if _, ok := childKind[kind]; ok {
		c := newCollection(kind)
		c.parent = n
		n.base().children = c
	}
	return n
}

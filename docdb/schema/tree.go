package schema

import (
	"fmt"
	"reflect"

	"github.com/ministore/docdb/docdb/errs"
)

// Tree keys shared by every serialized form.
const (
	nodeTypeKey = "_nodetype"
	childrenKey = "children"
)

// toTree converts n into the generic form used by the JSON and binary codecs:
// one map per node holding its non-default properties, its type under
// "_nodetype" and its members under "children".
func toTree(n Node) map[string]any {
	m := Props(n)
	m[nodeTypeKey] = n.Kind().String()
	switch v := n.(type) {
	case *Schema:
		cols := make([]any, 0, 5)
		for _, c := range v.Collections() {
			cols = append(cols, toTree(c))
		}
		m[childrenKey] = cols
	case *Collection:
		m[childrenKey] = membersTree(v)
	default:
		if ch := n.base().children; ch != nil && ch.Len() > 0 {
			m[childrenKey] = membersTree(ch)
		}
	}
	return m
}

func membersTree(c *Collection) []any {
	out := make([]any, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, toTree(n))
	}
	return out
}

// fromTree rebuilds a node from its generic form. Members are added through
// their collection so name uniqueness and child types are enforced.
func fromTree(m map[string]any) (Node, error) {
	nt, ok := m[nodeTypeKey]
	if !ok {
		return nil, errs.New(errs.ErrSchemaFormat, "node without _nodetype")
	}
	kind, ok := ParseKind(stringify(nt))
	if !ok {
		return nil, errs.Newf(errs.ErrUnknownNodeType, "unknown node type %q", stringify(nt))
	}
	n := newNode(kind)
	for k, v := range m {
		if k == nodeTypeKey || k == childrenKey {
			continue
		}
		if err := SetProp(n, k, v); err != nil {
			return nil, err
		}
	}

	items, err := asList(m[childrenKey])
	if err != nil {
		return nil, err
	}
	switch v := n.(type) {
	case *Schema:
		for _, item := range items {
			cm, err := asMap(item)
			if err != nil {
				return nil, err
			}
			child, err := fromTree(cm)
			if err != nil {
				return nil, err
			}
			src, ok := child.(*Collection)
			if !ok || v.Collection(src.kind) == nil {
				return nil, errs.Newf(errs.ErrInvalidChildType, "schema cannot hold a %s", child.Kind())
			}
			dst := v.Collection(src.kind)
			for _, member := range src.Nodes() {
				if err := dst.Add(member); err != nil {
					return nil, err
				}
			}
			dst.Extra = src.Extra
		}
	default:
		dst := Children(n)
		if dst == nil && len(items) > 0 {
			return nil, errs.Newf(errs.ErrInvalidChildType, "%s cannot have children", kind)
		}
		for _, item := range items {
			cm, err := asMap(item)
			if err != nil {
				return nil, err
			}
			child, err := fromTree(cm)
			if err != nil {
				return nil, err
			}
			if err := dst.Add(child); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}

func asList(v any) ([]any, error) {
	switch l := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return l, nil
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, nil
	}
	return nil, errs.Newf(errs.ErrSchemaFormat, "children must be a list, got %T", v)
}

func asMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[stringify(k)] = val
		}
		return out, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		return out, nil
	}
	return nil, errs.Newf(errs.ErrSchemaFormat, "node must be a map, got %T", v)
}

// Equal reports whether two schemas serialize identically.
func Equal(a, b *Schema) bool {
	return reflect.DeepEqual(toTree(a), toTree(b))
}

package schema

import (
	"bytes"
	"encoding/xml"
	"io"
	"sort"
	"strings"

	"github.com/ministore/docdb/docdb/errs"
)

// extraElement carries an extra property whose name is not a valid XML
// attribute name.
const extraElement = "property"

// ToXML writes one element per node. Short properties become attributes,
// long text properties become child elements and members are wrapped in a
// <children> element. Default values are omitted.
func ToXML(s *Schema) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := writeXML(enc, s); err != nil {
		return nil, errs.Wrap(errs.ErrSchemaFormat, "encode xml", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, errs.Wrap(errs.ErrSchemaFormat, "encode xml", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeXML(enc *xml.Encoder, n Node) error {
	start := xml.StartElement{Name: xml.Name{Local: n.Kind().String()}}
	var long []*propDef
	props := Props(n)
	for _, p := range variantOf(n).props {
		v, ok := props[p.name]
		if !ok {
			continue
		}
		if p.long {
			long = append(long, p)
			continue
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: p.name}, Value: stringify(v)})
	}
	var odd []string
	for _, k := range sortedExtras(n) {
		if !validXMLName(k) {
			odd = append(odd, k)
			continue
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: k}, Value: n.base().Extra[k]})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}

	for _, p := range long {
		if err := textElement(enc, xml.StartElement{Name: xml.Name{Local: p.name}}, stringify(props[p.name])); err != nil {
			return err
		}
	}
	for _, k := range odd {
		el := xml.StartElement{
			Name: xml.Name{Local: extraElement},
			Attr: []xml.Attr{{Name: xml.Name{Local: "name"}, Value: k}},
		}
		if err := textElement(enc, el, n.base().Extra[k]); err != nil {
			return err
		}
	}

	var members []Node
	switch v := n.(type) {
	case *Schema:
		for _, c := range v.Collections() {
			members = append(members, c)
		}
	default:
		members = Children(n).Nodes()
	}
	if len(members) > 0 {
		wrap := xml.StartElement{Name: xml.Name{Local: childrenKey}}
		if err := enc.EncodeToken(wrap); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeXML(enc, m); err != nil {
				return err
			}
		}
		if err := enc.EncodeToken(wrap.End()); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func textElement(enc *xml.Encoder, start xml.StartElement, text string) error {
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return enc.EncodeToken(start.End())
}

func sortedExtras(n Node) []string {
	keys := make([]string, 0, len(n.base().Extra))
	for k := range n.base().Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validXMLName(s string) bool {
	if s == "" || strings.HasPrefix(strings.ToLower(s), "xml") {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && (r == '-' || r == '.' || r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return true
}

// element is a parsed XML element.
type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     strings.Builder
}

func (e *element) attr(name string) string {
	for _, a := range e.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// FromXML reads a schema written by ToXML. Documents of the older layout,
// where members sit directly under their collection, where collections use
// the names "indexes", "lookups" or "sort", or where members of an index,
// lookup table or sort key are wrapped in <fields>, are upgraded on the fly.
// The result is not compiled.
func FromXML(data []byte) (*Schema, error) {
	root, err := parseXML(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.ErrSchemaFormat, "decode xml", err)
	}
	if root == nil || root.name != KindSchema.String() {
		return nil, errs.New(errs.ErrSchemaFormat, "xml root element must be <schema>")
	}
	tree, err := elementTree(root, KindSchema)
	if err != nil {
		return nil, err
	}
	return schemaFromTree(tree)
}

func parseXML(r io.Reader) (*element, error) {
	dec := xml.NewDecoder(r)
	var stack []*element
	var root *element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			e := &element{name: t.Name.Local, attrs: t.Copy().Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, e)
			} else if root == nil {
				root = e
			}
			stack = append(stack, e)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	return root, nil
}

// collectionTags maps current and legacy collection tags to their kind.
var collectionTags = map[string]Kind{
	"fields":       KindFields,
	"indices":      KindIndices,
	"indexes":      KindIndices,
	"aliases":      KindAliases,
	"lookuptables": KindLookupTables,
	"lookups":      KindLookupTables,
	"sortkeys":     KindSortKeys,
	"sort":         KindSortKeys,
}

// memberTags maps, per container kind, the tags of its members.
var memberTags = map[Kind]map[string]Kind{
	KindFields:       {"field": KindField},
	KindIndices:      {"index": KindIndex},
	KindAliases:      {"alias": KindAlias},
	KindLookupTables: {"lookuptable": KindLookupTable, "lookup": KindLookupTable},
	KindSortKeys:     {"sortkey": KindSortKey},
	KindIndex:        {"indexfield": KindIndexField, "field": KindIndexField},
	KindAlias:        {"aliasindex": KindAliasIndex, "index": KindAliasIndex},
	KindLookupTable:  {"lookuptablefield": KindLookupTableField, "field": KindLookupTableField},
	KindSortKey:      {"sortkeyfield": KindSortKeyField, "field": KindSortKeyField},
}

// memberWrappers are legacy wrappers flattened into their container.
var memberWrappers = map[Kind]map[string]bool{
	KindIndex:       {"fields": true},
	KindAlias:       {"indices": true, "indexes": true},
	KindLookupTable: {"fields": true},
	KindSortKey:     {"fields": true},
}

func memberKind(container Kind, tag string) (Kind, bool) {
	if container == KindSchema {
		k, ok := collectionTags[tag]
		return k, ok
	}
	k, ok := memberTags[container][tag]
	return k, ok
}

func elementTree(e *element, kind Kind) (map[string]any, error) {
	m := map[string]any{nodeTypeKey: kind.String()}
	for _, a := range e.attrs {
		m[a.Name.Local] = a.Value
	}
	var members []any
	addMember := func(c *element) error {
		mk, ok := memberKind(kind, c.name)
		if !ok {
			return errs.Newf(errs.ErrInvalidChildType, "%s cannot hold <%s>", kind, c.name)
		}
		child, err := elementTree(c, mk)
		if err != nil {
			return err
		}
		members = append(members, child)
		return nil
	}

	for _, c := range e.children {
		switch {
		case c.name == childrenKey:
			for _, gc := range c.children {
				if err := addMember(gc); err != nil {
					return nil, err
				}
			}
		case c.name == extraElement && c.attr("name") != "":
			m[c.attr("name")] = c.text.String()
		case memberWrappers[kind][c.name]:
			for _, gc := range c.children {
				if err := addMember(gc); err != nil {
					return nil, err
				}
			}
		default:
			if _, ok := memberKind(kind, c.name); ok {
				if err := addMember(c); err != nil {
					return nil, err
				}
				continue
			}
			if len(c.attrs) > 0 || len(c.children) > 0 {
				return nil, errs.Newf(errs.ErrInvalidChildType, "%s cannot hold <%s>", kind, c.name)
			}
			// property written as an element
			m[c.name] = c.text.String()
		}
	}
	if len(members) > 0 {
		m[childrenKey] = members
	}
	return m, nil
}

package schema

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/ministore/docdb/docdb/errs"
)

// propDef describes one declared property of a node variant.
type propDef struct {
	name  string
	index int
	kind  reflect.Kind
	def   any
	long  bool
}

type variantDef struct {
	props  []*propDef
	byName map[string]*propDef
}

var variants = map[reflect.Type]*variantDef{}

func init() {
	for _, n := range []Node{
		&Schema{}, &Collection{}, &Field{}, &Index{}, &IndexField{}, &Alias{}, &AliasIndex{},
		&LookupTable{}, &LookupTableField{}, &SortKey{}, &SortKeyField{},
	} {
		t := reflect.TypeOf(n).Elem()
		variants[t] = describe(t)
	}
}

func describe(t reflect.Type) *variantDef {
	vd := &variantDef{byName: make(map[string]*propDef)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("prop")
		if !ok {
			continue
		}
		parts := strings.Split(tag, ",")
		p := &propDef{name: parts[0], index: i, kind: sf.Type.Kind()}
		var def string
		for _, opt := range parts[1:] {
			switch {
			case opt == "long":
				p.long = true
			case strings.HasPrefix(opt, "default="):
				def = strings.TrimPrefix(opt, "default=")
			}
		}
		switch p.kind {
		case reflect.String:
			p.def = def
		case reflect.Int:
			n, _ := strconv.Atoi(def)
			p.def = n
		case reflect.Bool:
			p.def = def == "true"
		default:
			panic(fmt.Sprintf("schema: unsupported property type %s for %s.%s", sf.Type, t.Name(), sf.Name))
		}
		vd.props = append(vd.props, p)
		vd.byName[p.name] = p
	}
	return vd
}

func variantOf(n Node) *variantDef {
	return variants[reflect.TypeOf(n).Elem()]
}

func applyDefaults(n Node) {
	v := reflect.ValueOf(n).Elem()
	for _, p := range variantOf(n).props {
		setField(v.Field(p.index), p.def)
	}
}

func setField(f reflect.Value, value any) {
	switch f.Kind() {
	case reflect.String:
		f.SetString(value.(string))
	case reflect.Int:
		f.SetInt(int64(value.(int)))
	case reflect.Bool:
		f.SetBool(value.(bool))
	}
}

func fieldValue(f reflect.Value) any {
	switch f.Kind() {
	case reflect.String:
		return f.String()
	case reflect.Int:
		return int(f.Int())
	case reflect.Bool:
		return f.Bool()
	}
	return nil
}

// IsDeclared reports whether the variant of n declares the property.
func IsDeclared(n Node, name string) bool {
	_, ok := variantOf(n).byName[name]
	return ok
}

// GetProp returns a property value. Declared properties are typed (string,
// int or bool); extra properties are strings.
func GetProp(n Node, name string) (any, bool) {
	if p, ok := variantOf(n).byName[name]; ok {
		return fieldValue(reflect.ValueOf(n).Elem().Field(p.index)), true
	}
	v, ok := n.base().Extra[name]
	if !ok {
		return nil, false
	}
	return v, true
}

// SetProp assigns a property, converting value to the declared type.
// Renaming a node re-keys its parent collection.
func SetProp(n Node, name string, value any) error {
	p, declared := variantOf(n).byName[name]
	if !declared {
		if name == "" || name == "_nodetype" || name == "children" {
			return errs.Newf(errs.ErrInvalidProperty, "reserved property name %q", name)
		}
		b := n.base()
		if b.Extra == nil {
			b.Extra = make(map[string]string)
		}
		b.Extra[name] = stringify(value)
		touch(n)
		return nil
	}
	converted, err := convert(p, value)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidProperty, fmt.Sprintf("%s.%s", n.Kind(), name), err)
	}
	if name == "name" {
		if c, ok := n.base().parent.(*Collection); ok {
			if err := c.rename(n, converted.(string)); err != nil {
				return err
			}
		}
	}
	setField(reflect.ValueOf(n).Elem().Field(p.index), converted)
	touch(n)
	return nil
}

// RemoveProp resets a declared property to its default and deletes an extra
// property.
func RemoveProp(n Node, name string) error {
	if p, ok := variantOf(n).byName[name]; ok {
		return SetProp(n, name, p.def)
	}
	delete(n.base().Extra, name)
	touch(n)
	return nil
}

// Props returns the properties of n that differ from their defaults, extra
// properties included.
func Props(n Node) map[string]any {
	out := make(map[string]any)
	v := reflect.ValueOf(n).Elem()
	for _, p := range variantOf(n).props {
		val := fieldValue(v.Field(p.index))
		if val != p.def {
			out[p.name] = val
		}
	}
	for k, val := range n.base().Extra {
		out[k] = val
	}
	return out
}

func convert(p *propDef, value any) (any, error) {
	switch p.kind {
	case reflect.String:
		return stringify(value), nil
	case reflect.Int:
		return toInt(value)
	case reflect.Bool:
		return toBool(value)
	}
	return nil, fmt.Errorf("unsupported property kind %s", p.kind)
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.String {
			return rv.String()
		}
		return fmt.Sprint(value)
	}
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case []byte:
		return toInt(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", value)
	}
}

func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int(f), nil
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case []byte:
		return toBool(string(v))
	case string:
		return ParseBool(v)
	default:
		n, err := toInt(value)
		if err != nil {
			return false, fmt.Errorf("not a boolean: %v", value)
		}
		return n != 0, nil
	}
}

// ParseBool accepts true/false, 1/0, yes/no and on/off in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

func fieldOf(n Node, name string) reflect.Value {
	p := variantOf(n).byName[name]
	return reflect.ValueOf(n).Elem().Field(p.index)
}

// Package record holds the in-memory projection of a stored record and its
// stored blob codec.
package record

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/schema"
)

// Record maps field ids to ordered values. Every field is multi-valued;
// values are typed by field type: string for text, int64 for int and
// autonumber, bool for bool.
type Record struct {
	schema *schema.Schema
	values map[int][]any
}

// New returns an empty record for a compiled schema.
func New(s *schema.Schema) *Record {
	return &Record{schema: s, values: make(map[int][]any)}
}

// Schema returns the schema the record was built for.
func (r *Record) Schema() *schema.Schema { return r.schema }

func (r *Record) field(name string) (*schema.Field, error) {
	f := r.schema.Field(name)
	if f == nil {
		return nil, errs.New(errs.ErrUnknownField, "unknown field").WithField(name)
	}
	return f, nil
}

// Set replaces the values of a field. value may be a scalar or a slice;
// nil, empty strings and empty slices clear the field.
func (r *Record) Set(name string, value any) error {
	f, err := r.field(name)
	if err != nil {
		return err
	}
	values, err := Convert(f, value)
	if err != nil {
		return err
	}
	r.SetValues(f.ID, values)
	return nil
}

// SetValues stores already converted values under a field id.
func (r *Record) SetValues(id int, values []any) {
	if len(values) == 0 {
		delete(r.values, id)
		return
	}
	r.values[id] = values
}

// Get returns the values of a field, nil when it is empty.
func (r *Record) Get(name string) ([]any, error) {
	f, err := r.field(name)
	if err != nil {
		return nil, err
	}
	return r.values[f.ID], nil
}

// First returns the first value of a field, or nil.
func (r *Record) First(name string) (any, error) {
	values, err := r.Get(name)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return values[0], nil
}

// Values returns the values stored under a field id.
func (r *Record) Values(id int) []any { return r.values[id] }

// Strings returns the values of a field id rendered as text.
func (r *Record) Strings(id int) []string {
	values := r.values[id]
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, Format(v))
	}
	return out
}

// IsEmpty reports whether no field holds a value.
func (r *Record) IsEmpty() bool { return len(r.values) == 0 }

// IDs returns the ids of non-empty fields in ascending order.
func (r *Record) IDs() []int {
	ids := make([]int, 0, len(r.values))
	for id := range r.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Map returns the record keyed by field name in schema order. Single values
// are returned as scalars, multiple values as slices.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, len(r.values))
	for _, f := range r.schema.AllFields() {
		values := r.values[f.ID]
		switch len(values) {
		case 0:
		case 1:
			out[f.Name] = values[0]
		default:
			out[f.Name] = append([]any(nil), values...)
		}
	}
	return out
}

// Clone returns an independent copy of r.
func (r *Record) Clone() *Record {
	c := New(r.schema)
	for id, values := range r.values {
		c.values[id] = append([]any(nil), values...)
	}
	return c
}

// Format renders a typed value as text.
func Format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Convert turns caller input into typed values for field f. Scalars and
// slices are accepted; nil entries and empty strings are dropped.
func Convert(f *schema.Field, value any) ([]any, error) {
	var items []any
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string, []byte:
		items = []any{v}
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			for i := 0; i < rv.Len(); i++ {
				items = append(items, rv.Index(i).Interface())
			}
		} else {
			items = []any{value}
		}
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		v, ok, err := convertOne(f.Type, item)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidValue, fmt.Sprintf("field %s", f.Name), err).WithField(f.Name)
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func convertOne(typ schema.FieldType, item any) (any, bool, error) {
	if b, isBytes := item.([]byte); isBytes {
		item = string(b)
	}
	if item == nil {
		return nil, false, nil
	}
	if s, isString := item.(string); isString && s == "" {
		return nil, false, nil
	}

	switch typ {
	case schema.FieldInt, schema.FieldAutoNumber:
		n, err := toInt64(item)
		return n, err == nil, err
	case schema.FieldBool:
		b, err := toBool(item)
		return b, err == nil, err
	default:
		return toText(item), true, nil
	}
}

func toText(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func toInt64(item any) (int64, error) {
	switch v := item.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer overflow: %d", v)
		}
		return int64(v), nil
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(v)
		n, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return n, nil
		}
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return floatToInt64(f)
		}
		return 0, fmt.Errorf("cannot parse %q as integer", v)
	default:
		return 0, fmt.Errorf("invalid integer value type: %T", item)
	}
}

func floatToInt64(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int64(f), nil
}

func toBool(item any) (bool, error) {
	switch v := item.(type) {
	case bool:
		return v, nil
	case string:
		return schema.ParseBool(v)
	default:
		n, err := toInt64(item)
		if err != nil {
			return false, fmt.Errorf("invalid bool value type: %T", item)
		}
		return n != 0, nil
	}
}

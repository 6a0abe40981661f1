package encoder

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/ministore/docdb/docdb/textutil"
)

// EmptyStringKey is the slot value of an empty string key. It sorts after
// every folded string.
var EmptyStringKey = []byte{0xff}

// StringKey encodes text for a string sort key: folded, spaces collapsed.
func StringKey(text string) []byte {
	s := textutil.CollapseSpaces(textutil.Fold(text))
	if s == "" {
		return EmptyStringKey
	}
	return []byte(s)
}

// NumberKey encodes text for a number sort key. Text that is not a number
// sorts as +Inf.
func NumberKey(text string) []byte {
	s := strings.TrimSpace(text)
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) {
		f = math.Inf(1)
	}
	return SortableFloat(f)
}

// SortableFloat encodes f in eight bytes whose byte order is the numeric
// order.
func SortableFloat(f float64) []byte {
	if f == 0 {
		f = 0 // -0 and +0 share one key
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	return binary.BigEndian.AppendUint64(nil, bits)
}

// FloatFromKey decodes a value written by SortableFloat.
func FloatFromKey(key []byte) (float64, bool) {
	if len(key) != 8 {
		return 0, false
	}
	bits := binary.BigEndian.Uint64(key)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), true
}

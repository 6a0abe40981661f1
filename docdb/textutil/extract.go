package textutil

import (
	"strconv"
	"strings"
)

// Bound is a start or end selector: either a rune position (1-based,
// negative values count from the end) or a delimiter string.
type Bound struct {
	Pos   int
	Delim string
}

// IsZero reports whether the bound selects nothing.
func (b Bound) IsZero() bool { return b.Pos == 0 && b.Delim == "" }

// IsPos reports whether the bound is a position.
func (b Bound) IsPos() bool { return b.Pos != 0 }

// ParseBound interprets a start/end property value.
func ParseBound(s string) Bound {
	s = strings.TrimSpace(s)
	if s == "" {
		return Bound{}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Bound{Pos: n}
	}
	return Bound{Delim: s}
}

// Extract returns the part of s selected by start and end.
//
// Positions: start n keeps runes from the n-th on, end m keeps runes up to the
// m-th included; negative values count from the end (-1 is the last rune).
// Delimiters: start keeps what follows its first occurrence (nothing when it
// is absent), end keeps what precedes its first occurrence after start.
func Extract(s string, start, end Bound) string {
	if start.IsZero() && end.IsZero() {
		return s
	}
	if start.Delim != "" {
		i := strings.Index(s, start.Delim)
		if i < 0 {
			return ""
		}
		s = s[i+len(start.Delim):]
	}
	if end.Delim != "" {
		if i := strings.Index(s, end.Delim); i >= 0 {
			s = s[:i]
		}
	}
	if !start.IsPos() && !end.IsPos() {
		return s
	}

	r := []rune(s)
	from, to := 0, len(r)
	if start.IsPos() {
		from = resolvePos(start.Pos, len(r)) - 1
	}
	if end.IsPos() {
		to = resolvePos(end.Pos, len(r))
	}
	if from < 0 {
		from = 0
	}
	if to > len(r) {
		to = len(r)
	}
	if from >= to {
		return ""
	}
	return string(r[from:to])
}

func resolvePos(pos, n int) int {
	if pos < 0 {
		return n + pos + 1
	}
	return pos
}

// ValidRange reports whether a start/end pair is coherent. Two positions of
// the same sign must not be reversed.
func ValidRange(start, end Bound) bool {
	if !start.IsPos() || !end.IsPos() {
		return true
	}
	if (start.Pos > 0) != (end.Pos > 0) {
		return true
	}
	return start.Pos <= end.Pos
}

// SliceValues applies a 1-based inclusive start/end selection to a value
// list. Zero end means "up to the last value"; negative values count from the
// end.
func SliceValues[T any](values []T, start, end int) []T {
	n := len(values)
	if n == 0 {
		return values
	}
	from := 1
	if start != 0 {
		from = resolvePos(start, n)
	}
	to := n
	if end != 0 {
		to = resolvePos(end, n)
	}
	if from < 1 {
		from = 1
	}
	if to > n {
		to = n
	}
	if from > to {
		return nil
	}
	return values[from-1 : to]
}

// Package sqlbuilder assembles statements with backend-specific
// placeholders.
package sqlbuilder

import (
	"strconv"
	"strings"
)

type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota
	PlaceholderDollar
)

type Builder struct {
	Style PlaceholderStyle
	args  []any
}

func New(style PlaceholderStyle) *Builder {
	return &Builder{Style: style, args: make([]any, 0)}
}

// Arg records v and returns its placeholder.
func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	switch b.Style {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(len(b.args))
	default:
		return "?"
	}
}

func (b *Builder) Args() []any { return b.args }
func (b *Builder) Len() int    { return len(b.args) }

// Row returns a parenthesized placeholder tuple for one row of values.
func (b *Builder) Row(values ...any) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(b.Arg(v))
	}
	sb.WriteByte(')')
	return sb.String()
}

// Insert builds a multi-row statement: prefix followed by one tuple per row.
func Insert(style PlaceholderStyle, prefix string, rows [][]any) (string, []any) {
	b := New(style)
	var sb strings.Builder
	sb.WriteString(prefix)
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(b.Row(row...))
	}
	return sb.String(), b.Args()
}

// Chunk splits rows into batches holding at most maxArgs arguments.
func Chunk(rows [][]any, maxArgs int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := maxArgs / len(rows[0])
	if per < 1 {
		per = 1
	}
	var out [][][]any
	for len(rows) > per {
		out = append(out, rows[:per])
		rows = rows[per:]
	}
	return append(out, rows)
}

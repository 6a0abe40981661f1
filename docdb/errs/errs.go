// Package errs holds the error taxonomy shared by every docdb package.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	// schema
	ErrUnknownNodeType   Kind = "unknown_node_type"
	ErrInvalidChildType  Kind = "invalid_child_type"
	ErrDuplicateName     Kind = "duplicate_name"
	ErrUnknownFieldRef   Kind = "unknown_field_reference"
	ErrInvalidFieldType  Kind = "invalid_field_type"
	ErrInvalidIndexType  Kind = "invalid_index_type"
	ErrInvalidLookupType Kind = "invalid_lookup_type"
	ErrInvalidSortType   Kind = "invalid_sortkey_type"
	ErrInvalidProperty   Kind = "invalid_property"
	ErrSchemaFormat      Kind = "schema_format"

	// query
	ErrBoostSyntax      Kind = "boost_syntax"
	ErrUnknownLookup    Kind = "unknown_lookup"
	ErrNoSearchCriteria Kind = "no_search_criteria"
	ErrQuerySyntax      Kind = "query_syntax"
	ErrSortSpec         Kind = "sort_spec"
	ErrUnknownIndex     Kind = "unknown_index"

	// edit state
	ErrNoEdit          Kind = "no_edit"
	ErrEditInProgress  Kind = "edit_in_progress"
	ErrReadOnly        Kind = "read_only"
	ErrNoCurrentRecord Kind = "no_current_record"
	ErrInvalidValue    Kind = "invalid_value"
	ErrUnknownField    Kind = "unknown_field"

	// engine
	ErrDatabaseLocked  Kind = "database_locked"
	ErrCorruptMetadata Kind = "corrupt_metadata"
	ErrEngine          Kind = "engine"
	ErrNotFound        Kind = "not_found"
	ErrExists          Kind = "exists"
	ErrIO              Kind = "io"
)

// Class groups kinds into the four families callers react to.
type Class string

const (
	SchemaError    Class = "schema"
	QueryError     Class = "query"
	EditStateError Class = "edit_state"
	EngineError    Class = "engine"
)

var classes = map[Kind]Class{
	ErrUnknownNodeType:   SchemaError,
	ErrInvalidChildType:  SchemaError,
	ErrDuplicateName:     SchemaError,
	ErrUnknownFieldRef:   SchemaError,
	ErrInvalidFieldType:  SchemaError,
	ErrInvalidIndexType:  SchemaError,
	ErrInvalidLookupType: SchemaError,
	ErrInvalidSortType:   SchemaError,
	ErrInvalidProperty:   SchemaError,
	ErrSchemaFormat:      SchemaError,

	ErrBoostSyntax:      QueryError,
	ErrUnknownLookup:    QueryError,
	ErrNoSearchCriteria: QueryError,
	ErrQuerySyntax:      QueryError,
	ErrSortSpec:         QueryError,
	ErrUnknownIndex:     QueryError,

	ErrNoEdit:          EditStateError,
	ErrEditInProgress:  EditStateError,
	ErrReadOnly:        EditStateError,
	ErrNoCurrentRecord: EditStateError,
	ErrInvalidValue:    EditStateError,
	ErrUnknownField:    EditStateError,

	ErrDatabaseLocked:  EngineError,
	ErrCorruptMetadata: EngineError,
	ErrEngine:          EngineError,
	ErrNotFound:        EngineError,
	ErrExists:          EngineError,
	ErrIO:              EngineError,
}

// Class returns the family of the kind. Unknown kinds are engine errors.
func (k Kind) Class() Class {
	if c, ok := classes[k]; ok {
		return c
	}
	return EngineError
}

type Error struct {
	Kind    Kind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// WithField returns a copy of e naming the offending field or node.
func (e *Error) WithField(field string) *Error {
	c := *e
	c.Field = field
	return &c
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ClassOf reports the class of the first *Error in err's chain.
func ClassOf(err error) (Class, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Class(), true
	}
	return "", false
}

func IsSchemaError(err error) bool    { return isClass(err, SchemaError) }
func IsQueryError(err error) bool     { return isClass(err, QueryError) }
func IsEditStateError(err error) bool { return isClass(err, EditStateError) }
func IsEngineError(err error) bool    { return isClass(err, EngineError) }

func isClass(err error, c Class) bool {
	got, ok := ClassOf(err)
	return ok && got == c
}

// Severity grades a validation issue.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ValidationIssue is one advisory finding of schema validation.
type ValidationIssue struct {
	Severity Severity
	Path     string
	Message  string
}

func (v ValidationIssue) String() string {
	if v.Path == "" {
		return fmt.Sprintf("%s: %s", v.Severity, v.Message)
	}
	return fmt.Sprintf("%s: %s: %s", v.Severity, v.Path, v.Message)
}

// ValidationIssues is the ordered list returned by schema validation.
// It implements error so a clean schema can be reported as nil.
type ValidationIssues []ValidationIssue

func (v ValidationIssues) Error() string {
	parts := make([]string, len(v))
	for i, issue := range v {
		parts[i] = issue.String()
	}
	return "schema validation: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any issue is a hard error.
func (v ValidationIssues) HasErrors() bool {
	for _, issue := range v {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the hard errors.
func (v ValidationIssues) Errors() ValidationIssues {
	var out ValidationIssues
	for _, issue := range v {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

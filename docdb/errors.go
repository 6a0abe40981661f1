package docdb

import (
	"context"
	"errors"

	"github.com/ministore/docdb/docdb/engine"
	"github.com/ministore/docdb/docdb/errs"
	"github.com/ministore/docdb/docdb/storage"
)

// Re-exported error types, so that callers need not import errs.
type (
	Error            = errs.Error
	ErrorKind        = errs.Kind
	ErrorClass       = errs.Class
	ValidationIssue  = errs.ValidationIssue
	ValidationIssues = errs.ValidationIssues
)

const (
	ErrNoEdit            = errs.ErrNoEdit
	ErrEditInProgress    = errs.ErrEditInProgress
	ErrReadOnly          = errs.ErrReadOnly
	ErrNoCurrentRecord   = errs.ErrNoCurrentRecord
	ErrUnknownField      = errs.ErrUnknownField
	ErrInvalidValue      = errs.ErrInvalidValue
	ErrDatabaseLocked    = errs.ErrDatabaseLocked
	ErrCorruptMetadata   = errs.ErrCorruptMetadata
	ErrNotFound          = errs.ErrNotFound
	ErrExists            = errs.ErrExists
	ErrEngine            = errs.ErrEngine
	ErrQuerySyntax       = errs.ErrQuerySyntax
	ErrNoSearchCriteria  = errs.ErrNoSearchCriteria
	ErrUnknownIndex      = errs.ErrUnknownIndex
	ErrUnknownLookup     = errs.ErrUnknownLookup
	ErrSortSpec          = errs.ErrSortSpec
	ErrBoostSyntax       = errs.ErrBoostSyntax
	ErrSchemaFormat      = errs.ErrSchemaFormat
	ErrDuplicateName     = errs.ErrDuplicateName
	ErrUnknownFieldRef   = errs.ErrUnknownFieldRef
	ErrInvalidFieldType  = errs.ErrInvalidFieldType
	ErrInvalidIndexType  = errs.ErrInvalidIndexType
	ErrInvalidSortType   = errs.ErrInvalidSortType
	ErrInvalidLookupType = errs.ErrInvalidLookupType
)

func IsKind(err error, kind ErrorKind) bool { return errs.IsKind(err, kind) }

// engineError converts a failure of the engine or the storage layer into
// an *Error. Errors that already are one pass through unchanged, and so do
// context cancellations.
func engineError(msg string, err error) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	switch {
	case errors.As(err, &e):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, engine.ErrLocked):
		return errs.Wrap(errs.ErrDatabaseLocked, msg, err)
	case errors.Is(err, engine.ErrDocNotFound), errors.Is(err, storage.ErrNotFound):
		return errs.Wrap(errs.ErrNotFound, msg, err)
	case errors.Is(err, storage.ErrExists):
		return errs.Wrap(errs.ErrExists, msg, err)
	case errors.Is(err, storage.ErrNotDocDB):
		return errs.Wrap(errs.ErrCorruptMetadata, msg, err)
	default:
		return errs.Wrap(errs.ErrEngine, msg, err)
	}
}

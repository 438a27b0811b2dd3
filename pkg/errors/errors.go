// Package errors provides error handling for railyard.
//
// It re-exports github.com/cockroachdb/errors so that every package wraps,
// marks and inspects errors the same way:
//
//	if err := lay.RemovePiece(id); err != nil {
//	    return errors.Wrapf(err, "remove %s", id)
//	}
//
//	if errors.Is(err, layout.ErrUnknownCatalogID) {
//	    // recoverable, report to the user
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing hints and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
	FlattenHints  = crdb.FlattenHints
)

// Inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// AssertionFailedf reports a broken internal invariant.
var AssertionFailedf = crdb.AssertionFailedf

// Common sentinel errors shared across packages. Wrap them to add context;
// errors.Is still matches the sentinel.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = New("not found")

	// ErrInvalidArgument indicates a malformed request.
	ErrInvalidArgument = New("invalid argument")

	// ErrConflict indicates an id or state conflict.
	ErrConflict = New("conflict")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// WrapNotFound marks err as a not-found error and adds context.
func WrapNotFound(err error, context string) error {
	return Wrap(Mark(err, ErrNotFound), context)
}

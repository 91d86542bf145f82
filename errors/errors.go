// Package errors provides error handling for strata.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Error marks, so a wrapped driver error still matches a sentinel
//
// On top of that it defines the error kinds every core operation returns:
//
//	ErrValidation      missing tenant, empty name, malformed value
//	ErrNotFound        entity, attribute or schema absent
//	ErrTenantMismatch  relationship endpoints outside the caller's tenant
//	ErrStore           underlying store failure, driver error kept as cause
//	ErrConflict        duplicate write; tolerated by schema registration
//
// Usage:
//
//	if name == "" {
//	    return nil, errors.NewValidationError("entity name cannot be empty")
//	}
//
//	if _, err := db.ExecContext(ctx, q, args...); err != nil {
//	    return nil, errors.WrapStore(err, "insert entity")
//	}
//
//	if errors.IsNotFoundError(err) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
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

// CombineErrors keeps the first error and attaches the second as secondary
var CombineErrors = crdb.CombineErrors

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Sentinel error kinds. Wrap or mark these; never compare error strings.
var (
	// ErrValidation indicates the caller supplied invalid input
	ErrValidation = New("validation failed")

	// ErrNotFound indicates the requested entity, attribute or schema does not exist
	ErrNotFound = New("not found")

	// ErrTenantMismatch indicates an entity belongs to a different tenant than the call
	ErrTenantMismatch = New("tenant mismatch")

	// ErrStore indicates the underlying store failed
	ErrStore = New("store error")

	// ErrConflict indicates a duplicate write (e.g. code or schema already taken)
	ErrConflict = New("resource conflict")
)

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Wrap(ErrValidation, Newf(format, args...).Error())
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewTenantMismatchError creates a tenant-mismatch error with a formatted message
func NewTenantMismatchError(format string, args ...interface{}) error {
	return Wrap(ErrTenantMismatch, Newf(format, args...).Error())
}

// NewConflictError creates a conflict error with a formatted message
func NewConflictError(format string, args ...interface{}) error {
	return Wrap(ErrConflict, Newf(format, args...).Error())
}

// WrapStore wraps a store failure with the operation that hit it.
// The driver error stays reachable through errors.As; the result matches ErrStore.
func WrapStore(err error, op string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrap(err, op), ErrStore)
}

// WrapStoref is WrapStore with a formatted operation description
func WrapStoref(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, format, args...), ErrStore)
}

// IsValidationError checks if an error is or wraps ErrValidation
func IsValidationError(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsTenantMismatchError checks if an error is or wraps ErrTenantMismatch
func IsTenantMismatchError(err error) bool {
	return err != nil && Is(err, ErrTenantMismatch)
}

// IsStoreError checks if an error is or wraps ErrStore
func IsStoreError(err error) bool {
	return err != nil && Is(err, ErrStore)
}

// IsConflictError checks if an error is or wraps ErrConflict
func IsConflictError(err error) bool {
	return err != nil && Is(err, ErrConflict)
}

// Kind returns the short name of the error kind, or "internal" for anything else.
// Used by the CLI and MCP surfaces when rendering failures.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidationError(err):
		return "validation"
	case IsNotFoundError(err):
		return "not_found"
	case IsTenantMismatchError(err):
		return "tenant_mismatch"
	case IsConflictError(err):
		return "conflict"
	case IsStoreError(err):
		return "store"
	default:
		return "internal"
	}
}

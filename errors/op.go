package errors

import "strings"

// OpError attaches the failing operation and its entity/field context to an error.
// The wrapped error keeps its kind: errors.Is(opErr, ErrNotFound) still works.
type OpError struct {
	Op       string
	Tenant   string
	EntityID string
	Field    string
	Err      error
}

// Error implements the error interface
func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Tenant != "" {
		b.WriteString(" tenant=")
		b.WriteString(e.Tenant)
	}
	if e.EntityID != "" {
		b.WriteString(" entity=")
		b.WriteString(e.EntityID)
	}
	if e.Field != "" {
		b.WriteString(" field=")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *OpError) Unwrap() error {
	return e.Err
}

// WithOp wraps err in an OpError. Returns nil when err is nil.
func WithOp(err error, op, tenant, entityID, field string) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Tenant: tenant, EntityID: entityID, Field: field, Err: err}
}

// OpContext extracts the outermost OpError from err, if any
func OpContext(err error) (*OpError, bool) {
	var opErr *OpError
	if As(err, &opErr) {
		return opErr, true
	}
	return nil, false
}

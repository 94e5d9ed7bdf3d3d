package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a backend failure.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindTransient        ErrorKind = "transient"
	KindInvalid          ErrorKind = "invalid"
)

// OperationError is a classified failure of a backend operation.
type OperationError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *OperationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// NewError builds a classified error.
func NewError(kind ErrorKind, op string, err error) error {
	return &OperationError{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a message.
func Errorf(kind ErrorKind, op, format string, args ...any) error {
	return &OperationError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err. Unclassified errors, deadlines
// and cancellations count as transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	// timeouts, cancellations and network failures all land here
	return KindTransient
}

// IsTransient reports whether err may be retried.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

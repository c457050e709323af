package main

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure returned by the catalog, the borrower registry
// and the loan ledger wraps exactly one of them so callers can use errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidFormat = errors.New("invalid format")
	ErrInvalidStock  = errors.New("invalid stock")
	ErrOutOfStock    = errors.New("out of stock")
	ErrInvalidState  = errors.New("invalid state")
	ErrForbidden     = errors.New("forbidden")

	// ErrDuplicateKey is raised by the storage layer only. Services must
	// translate it into ErrConflict before returning.
	ErrDuplicateKey = errors.New("duplicate key")
)

// Error is a domain failure carrying a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound failure.
func NotFound(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

// Conflict builds an ErrConflict failure.
func Conflict(format string, args ...interface{}) error {
	return newError(ErrConflict, format, args...)
}

// InvalidFormat builds an ErrInvalidFormat failure.
func InvalidFormat(format string, args ...interface{}) error {
	return newError(ErrInvalidFormat, format, args...)
}

// InvalidStock builds an ErrInvalidStock failure.
func InvalidStock(format string, args ...interface{}) error {
	return newError(ErrInvalidStock, format, args...)
}

// OutOfStock builds an ErrOutOfStock failure.
func OutOfStock(format string, args ...interface{}) error {
	return newError(ErrOutOfStock, format, args...)
}

// InvalidState builds an ErrInvalidState failure.
func InvalidState(format string, args ...interface{}) error {
	return newError(ErrInvalidState, format, args...)
}

// Forbidden builds an ErrForbidden failure.
func Forbidden(format string, args ...interface{}) error {
	return newError(ErrForbidden, format, args...)
}

// DuplicateKeyError reports a uniqueness violation detected by a store.
type DuplicateKeyError struct {
	Collection string
	Field      string
	Value      interface{}
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: duplicate key %s=%v", e.Collection, e.Field, e.Value)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

// AsDuplicateKey reports whether err carries a store uniqueness violation.
func AsDuplicateKey(err error) (*DuplicateKeyError, bool) {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}

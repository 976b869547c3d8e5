// Package domain holds the quote model, the category filter rules, the
// reconciliation algorithm and the error taxonomy shared by every layer.
//
// Errors here describe what went wrong in terms of quotes; adapters decide
// how each kind is rendered on the wire.
package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is. Every typed error below unwraps to one
// or more of them.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrInvalidFormat = errors.New("invalid format")
	ErrCorrupt       = errors.New("corrupt data")
	ErrEmptyPool     = errors.New("no quotes for category")
	ErrUnavailable   = errors.New("unavailable")
)

// NotFoundError names a missing entity and, when it has one, its ID.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}

	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError rejects a value supplied by the caller. Field is empty when
// the problem is not tied to one input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}

	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// FormatError rejects a whole document, such as an import file that is not
// a JSON array. It matches ErrInvalidFormat and ErrValidation.
type FormatError struct {
	Document string
	Reason   string
	Cause    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("malformed %s: %s", e.Document, e.Reason)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

func (e *FormatError) Unwrap() []error {
	return withCause(e.Cause, ErrInvalidFormat, ErrValidation)
}

func NewFormatError(document, reason string, cause error) error {
	return &FormatError{Document: document, Reason: reason, Cause: cause}
}

// CorruptionError reports a stored value under Key that no longer decodes.
type CorruptionError struct {
	Key   string
	Cause error
}

func (e *CorruptionError) Error() string {
	msg := fmt.Sprintf("stored %q is corrupt", e.Key)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

func (e *CorruptionError) Unwrap() []error {
	return withCause(e.Cause, ErrCorrupt)
}

func NewCorruptionError(key string, cause error) error {
	return &CorruptionError{Key: key, Cause: cause}
}

// EmptyPoolError means the category filter left nothing to show. It matches
// ErrEmptyPool and ErrNotFound.
type EmptyPoolError struct {
	Category string
}

func (e *EmptyPoolError) Error() string {
	if IsAllCategory(e.Category) {
		return "no quotes available"
	}

	return fmt.Sprintf("no quotes for category %q", e.Category)
}

func (e *EmptyPoolError) Unwrap() []error {
	return []error{ErrEmptyPool, ErrNotFound}
}

func NewEmptyPoolError(category string) error {
	return &EmptyPoolError{Category: category}
}

// UnavailableError reports that the named dependency could not serve the call.
type UnavailableError struct {
	Service string
	Reason  string
}

func (e *UnavailableError) Error() string {
	if e.Reason == "" {
		return e.Service + " unavailable"
	}

	return fmt.Sprintf("%s unavailable: %s", e.Service, e.Reason)
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

func NewUnavailableError(service, reason string) error {
	return &UnavailableError{Service: service, Reason: reason}
}

func withCause(cause error, sentinels ...error) []error {
	if cause == nil {
		return sentinels
	}

	return append(sentinels, cause)
}

func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsInvalidFormat(err error) bool { return errors.Is(err, ErrInvalidFormat) }
func IsCorrupt(err error) bool       { return errors.Is(err, ErrCorrupt) }
func IsEmptyPool(err error) bool     { return errors.Is(err, ErrEmptyPool) }
func IsUnavailable(err error) bool   { return errors.Is(err, ErrUnavailable) }

package domain

import (
	"errors"
	"fmt"
)

// IndexError represents an index-level error with a structured error code.
// The surrounding system maps codes to user-facing responses; this module
// only classifies.
type IndexError struct {
	Code    string // Error code (e.g., "LX-SCHM-4220")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *IndexError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison by code.
func (e *IndexError) Is(target error) bool {
	t, ok := target.(*IndexError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewIndexError creates a new IndexError with the given code and message.
func NewIndexError(code, message string) *IndexError {
	return &IndexError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *IndexError) WithDetails(details string) *IndexError {
	return &IndexError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *IndexError) WithCause(cause error) *IndexError {
	return &IndexError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsIndexError checks if an error is an IndexError with the given code.
// If code is empty, it only checks whether the error is an IndexError.
func IsIndexError(err error, code string) bool {
	var ie *IndexError
	if errors.As(err, &ie) {
		if code == "" {
			return true
		}
		return ie.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's an IndexError.
func GetErrorCode(err error) string {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// ============================================================================
// I/O and corruption errors (IO, CORR)
// ============================================================================

var (
	// ErrIndexIO indicates a filesystem create/read/write failure.
	ErrIndexIO = NewIndexError("LX-IO-5000", "index i/o failure")

	// ErrCorruptedPayload indicates a stored document payload could not
	// be decoded. This signals internal data corruption and is never
	// retried.
	ErrCorruptedPayload = NewIndexError("LX-CORR-5001", "stored document payload is corrupted")

	// ErrUnknownFieldID indicates a field id with no entry in the
	// fields-ids map.
	ErrUnknownFieldID = NewIndexError("LX-CORR-5002", "unresolvable field id")
)

// ============================================================================
// Schema errors (SCHM)
// ============================================================================

var (
	// ErrInvalidMeta indicates a malformed or incompatible snapshot meta
	// record.
	ErrInvalidMeta = NewIndexError("LX-SCHM-4220", "malformed snapshot meta")

	// ErrInvalidSettings indicates settings validation failed.
	ErrInvalidSettings = NewIndexError("LX-SCHM-4221", "settings validation failed")
)

// ============================================================================
// Document errors (DOCS)
// ============================================================================

var (
	// ErrMalformedDocument indicates a malformed line in a document stream.
	ErrMalformedDocument = NewIndexError("LX-DOCS-4000", "malformed document line")

	// ErrMissingPrimaryKey indicates no primary key was set and none
	// could be inferred from the documents.
	ErrMissingPrimaryKey = NewIndexError("LX-DOCS-4001", "no primary key could be inferred")

	// ErrMissingDocumentID indicates a document without a value for the
	// primary key field.
	ErrMissingDocumentID = NewIndexError("LX-DOCS-4002", "document is missing a primary key value")

	// ErrInvalidDocumentID indicates a primary key value that is neither
	// a string nor a number.
	ErrInvalidDocumentID = NewIndexError("LX-DOCS-4003", "document id must be a string or a number")

	// ErrFieldLimitReached indicates the field id space is exhausted.
	ErrFieldLimitReached = NewIndexError("LX-DOCS-4004", "maximum number of fields reached")
)

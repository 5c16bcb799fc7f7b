package services

import (
	"errors"
	"net/http"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// ErrorKind classifies every failure the service layer can surface.
// The set is closed: handlers and clients switch on it exhaustively.
type ErrorKind int

const (
	// KindUnclassified covers anything the other kinds do not.
	KindUnclassified ErrorKind = iota
	// KindValidationFailed means the request payload was rejected.
	KindValidationFailed
	// KindStoreUnavailable means the database could not be reached.
	KindStoreUnavailable
	// KindDuplicateUnresolved means a duplicate key was detected but
	// the winning row could not be read back.
	KindDuplicateUnresolved
	// KindReferentialInvalid means the payload referenced data that
	// does not exist.
	KindReferentialInvalid
	// KindNotFound means the requested record does not exist.
	KindNotFound
)

// Error is the single error type crossing the service boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to its response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidationFailed, KindReferentialInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindDuplicateUnresolved:
		return http.StatusConflict
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validationFailed(message string) *Error {
	return &Error{Kind: KindValidationFailed, Message: message}
}

func storeUnavailable(err error) *Error {
	return &Error{
		Kind:    KindStoreUnavailable,
		Message: "Database unavailable. Please try again.",
		Err:     err,
	}
}

func duplicateUnresolved(err error) *Error {
	return &Error{
		Kind:    KindDuplicateUnresolved,
		Message: "Duplicate request.",
		Err:     err,
	}
}

func referentialInvalid(err error) *Error {
	return &Error{
		Kind:    KindReferentialInvalid,
		Message: "Invalid data reference.",
		Err:     err,
	}
}

func notFound(err error) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: "Record not found.",
		Err:     err,
	}
}

func unclassified(err error) *Error {
	return &Error{
		Kind:    KindUnclassified,
		Message: "Unexpected server error.",
		Err:     err,
	}
}

// validationMessage translates the domain sentinels into the exact
// client-facing field messages.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyIdempotencyKey):
		return "idempotencyKey is required."
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a positive number with up to 2 decimals."
	case errors.Is(err, core.ErrEmptyCategory):
		return "Category is required."
	case errors.Is(err, core.ErrEmptyDescription):
		return "Description is required."
	case errors.Is(err, core.ErrInvalidDate):
		return "Date is required and must be valid."
	default:
		return "Invalid request."
	}
}

// mapStorageError classifies a storage failure. Unique violations are
// handled by the caller before reaching this point.
func mapStorageError(err error) *Error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return notFound(err)
	case storage.IsForeignKeyViolation(err):
		return referentialInvalid(err)
	case storage.IsUnavailable(err):
		return storeUnavailable(err)
	default:
		return unclassified(err)
	}
}

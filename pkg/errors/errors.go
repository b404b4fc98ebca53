// Package errors defines the sentinel errors shared by the index, search and
// service layers, plus an AppError wrapper that carries an HTTP status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Index format invariants. Any of these means the index being built or read
// is corrupt and the operation must be abandoned.
var (
	ErrTermOutOfOrder    = errors.New("term out of order")
	ErrPointerOutOfOrder = errors.New("posting pointer out of order")
	ErrDocsOutOfOrder    = errors.New("document numbers out of order")
	ErrCorruptIndex      = errors.New("corrupt index")
)

// Capacity and caller-contract violations.
var (
	ErrTooManyClauses  = errors.New("too many required or prohibited clauses")
	ErrDocumentDeleted = errors.New("document is deleted")
	ErrNoFieldValue    = errors.New("field has neither string nor reader value")
	ErrFieldConflict   = errors.New("conflicting field flags")
	ErrInvalidInput    = errors.New("invalid input")
)

// Storage errors.
var (
	ErrFileExists      = errors.New("file already exists")
	ErrFileNotFound    = errors.New("file not found")
	ErrDirectoryClosed = errors.New("directory is closed")
	ErrLockHeld        = errors.New("index is locked by another writer")
)

// Service errors.
var (
	ErrTimeout     = errors.New("operation timed out")
	ErrUnavailable = errors.New("dependency unavailable")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Corruptf wraps ErrCorruptIndex with a formatted detail message.
func Corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptIndex, fmt.Sprintf(format, args...))
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDocumentDeleted):
		return http.StatusGone
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrTooManyClauses),
		errors.Is(err, ErrNoFieldValue), errors.Is(err, ErrFieldConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrLockHeld), errors.Is(err, ErrFileExists):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

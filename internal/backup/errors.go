package backup

import (
	"context"
	"errors"
	"fmt"

	kerrors "github.com/kamiai/kamiai/internal/errors"
)

// ErrorCode represents specific backup error types
type ErrorCode int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorCode = iota
	// ErrConfig represents a configuration error
	ErrConfig
	// ErrIO represents an I/O error
	ErrIO
	// ErrDatabase represents a repository failure
	ErrDatabase
	// ErrCorruption represents an undecodable bundle
	ErrCorruption
	// ErrNotFound represents a missing resource
	ErrNotFound
	// ErrLocked represents an operation already in progress
	ErrLocked
	// ErrTimeout represents an operation timeout
	ErrTimeout
	// ErrCanceled represents a canceled operation
	ErrCanceled
	// ErrValidation represents a validation error
	ErrValidation
	// ErrEncryption represents an encryption/decryption error
	ErrEncryption
	// ErrNetwork represents a failed remote round trip
	ErrNetwork
)

var codeNames = map[ErrorCode]string{
	ErrUnknown:    "unknown",
	ErrConfig:     "config",
	ErrIO:         "io",
	ErrDatabase:   "database",
	ErrCorruption: "corruption",
	ErrNotFound:   "not_found",
	ErrLocked:     "locked",
	ErrTimeout:    "timeout",
	ErrCanceled:   "canceled",
	ErrValidation: "validation",
	ErrEncryption: "encryption",
	ErrNetwork:    "network",
}

// String returns the metric label of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Error represents a backup operation error
type Error struct {
	Code    ErrorCode // Error classification
	Message string    // Human-readable error message
	Err     error     // Original error if any
}

// getErrorPrefix returns the appropriate emoji prefix based on error code
func (e *Error) getErrorPrefix() string {
	switch e.Code {
	case ErrConfig, ErrNotFound, ErrLocked, ErrTimeout, ErrValidation:
		return "⚠️"
	case ErrDatabase, ErrCorruption, ErrEncryption:
		return "🚨"
	case ErrCanceled:
		return "ℹ️"
	default:
		return "❌"
	}
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.getErrorPrefix(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", e.getErrorPrefix(), e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCategory maps the code onto the shared error categories, so a backup
// error wrapped by an enhanced error keeps a meaningful category.
func (e *Error) ErrorCategory() kerrors.ErrorCategory {
	switch e.Code {
	case ErrConfig:
		return kerrors.CategoryConfiguration
	case ErrIO:
		return kerrors.CategoryFileIO
	case ErrDatabase:
		return kerrors.CategoryStorage
	case ErrCorruption:
		return kerrors.CategoryFileParsing
	case ErrNotFound:
		return kerrors.CategoryNotFound
	case ErrLocked:
		return kerrors.CategoryConflict
	case ErrTimeout:
		return kerrors.CategoryTimeout
	case ErrCanceled:
		return kerrors.CategoryCancellation
	case ErrValidation:
		return kerrors.CategoryValidation
	case ErrEncryption:
		return kerrors.CategoryEncryption
	case ErrNetwork:
		return kerrors.CategoryCloudSync
	default:
		return kerrors.CategoryBackup
	}
}

// NewError creates a new backup error
func NewError(code ErrorCode, message string, err error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrSyncInProgress is returned to a caller that starts a cloud sync while
// another one is running.
var ErrSyncInProgress = NewError(ErrLocked, "cloud sync already in progress", nil)

// IsErrorCode checks if an error is a backup error with the specified code
func IsErrorCode(err error, code ErrorCode) bool {
	var backupErr *Error
	if err == nil {
		return false
	}
	if errors.As(err, &backupErr) {
		return backupErr.Code == code
	}
	return false
}

// CodeOf returns the code of a backup error, ErrUnknown otherwise.
func CodeOf(err error) ErrorCode {
	var backupErr *Error
	if errors.As(err, &backupErr) {
		return backupErr.Code
	}
	return ErrUnknown
}

// contextError maps context expiry onto backup codes and wraps anything else
// with fallback.
func contextError(err error, fallback ErrorCode, message string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrTimeout, message, err)
	case errors.Is(err, context.Canceled):
		return NewError(ErrCanceled, message, err)
	}
	var backupErr *Error
	if errors.As(err, &backupErr) {
		return err
	}
	return NewError(fallback, message, err)
}

package datastore

import (
	"fmt"

	"github.com/kamiai/kamiai/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrModelNotFound indicates the requested saved model does not exist.
	ErrModelNotFound = errors.NewStd("model not found")

	// ErrSampleNotFound indicates the requested training sample does not exist.
	ErrSampleNotFound = errors.NewStd("sample not found")

	// ErrSettingNotFound indicates no value is stored under the key.
	ErrSettingNotFound = errors.NewStd("setting not found")

	// ErrStorageUnavailable wraps every failure of the underlying database.
	ErrStorageUnavailable = errors.NewStd("storage unavailable")

	// ErrSettingCorrupt indicates a stored setting does not decode into the
	// requested type.
	ErrSettingCorrupt = errors.NewStd("setting is corrupt")
)

// storageError wraps a database failure as ErrStorageUnavailable.
func storageError(err error, operation string, context ...any) error {
	builder := errors.New(fmt.Errorf("%w: %w", ErrStorageUnavailable, err)).
		Component("datastore").
		Category(errors.CategoryStorage).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder.Build()
}

// notFoundError marks sentinel as a not-found error.
func notFoundError(sentinel error, operation, id string) error {
	return errors.New(sentinel).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("operation", operation).
		Context("id", id).
		Build()
}

// corruptError wraps a decode failure of a stored value as ErrSettingCorrupt.
func corruptError(err error, operation, key string) error {
	return errors.New(fmt.Errorf("%w: %w", ErrSettingCorrupt, err)).
		Component("datastore").
		Category(errors.CategoryFileParsing).
		Context("operation", operation).
		Context("key", key).
		Build()
}

// validationError creates a validation error for bad repository input.
func validationError(message, field string) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

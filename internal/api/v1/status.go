package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/buildinfo"
	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/session"
	"github.com/kamiai/kamiai/internal/workspace"
)

// statusFor maps an error onto the HTTP status returned to the client.
func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}

	var be *backup.Error
	if errors.As(err, &be) {
		return backupStatus(be.Code)
	}

	switch {
	case errors.Is(err, datastore.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, datastore.ErrSettingCorrupt):
		return http.StatusInternalServerError
	case errors.Is(err, datastore.ErrModelNotFound),
		errors.Is(err, datastore.ErrSampleNotFound),
		errors.Is(err, datastore.ErrSettingNotFound),
		errors.Is(err, workspace.ErrClassNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, buildinfo.ErrUpdateCheckDisabled):
		return http.StatusNotFound
	case errors.Is(err, session.ErrModuleNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, classifier.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return categoryStatus(ee.Category)
	}
	return http.StatusInternalServerError
}

func categoryStatus(c errors.ErrorCategory) int {
	switch c {
	case errors.CategoryValidation, errors.CategoryFileParsing:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict, errors.CategoryState:
		return http.StatusConflict
	case errors.CategoryStorage, errors.CategoryDatabase,
		errors.CategoryModelLoad, errors.CategoryModelInit:
		return http.StatusServiceUnavailable
	case errors.CategoryNotImplemented:
		return http.StatusNotImplemented
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func backupStatus(code backup.ErrorCode) int {
	switch code {
	case backup.ErrValidation, backup.ErrCorruption, backup.ErrEncryption, backup.ErrConfig:
		return http.StatusBadRequest
	case backup.ErrNotFound:
		return http.StatusNotFound
	case backup.ErrLocked:
		return http.StatusConflict
	case backup.ErrDatabase:
		return http.StatusServiceUnavailable
	case backup.ErrNetwork:
		return http.StatusBadGateway
	case backup.ErrTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

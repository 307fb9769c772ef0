package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/classifier"
	"github.com/kamiai/kamiai/internal/datastore"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/session"
	"github.com/kamiai/kamiai/internal/workspace"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()
	t.Attr("component", "api")

	category := func(c errors.ErrorCategory) error {
		return errors.Newf("boom").Component("test").Category(c).Build()
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"echo error", echo.NewHTTPError(http.StatusTeapot), http.StatusTeapot},
		{"sync in progress", backup.ErrSyncInProgress, http.StatusConflict},
		{"backup corruption", backup.NewError(backup.ErrCorruption, "bad", nil), http.StatusBadRequest},
		{"backup network", backup.NewError(backup.ErrNetwork, "down", nil), http.StatusBadGateway},
		{"backup io", backup.NewError(backup.ErrIO, "disk", nil), http.StatusInternalServerError},
		{"storage", fmt.Errorf("op: %w", datastore.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{"corrupt setting", fmt.Errorf("load: %w", datastore.ErrSettingCorrupt), http.StatusInternalServerError},
		{"model not found", datastore.ErrModelNotFound, http.StatusNotFound},
		{"class not found", workspace.ErrClassNotFound, http.StatusNotFound},
		{"not ready", workspace.ErrNotReady, http.StatusConflict},
		{"module not implemented", session.ErrModuleNotImplemented, http.StatusNotImplemented},
		{"dimension mismatch", classifier.ErrDimensionMismatch, http.StatusBadRequest},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"validation category", category(errors.CategoryValidation), http.StatusBadRequest},
		{"state category", category(errors.CategoryState), http.StatusConflict},
		{"model load category", category(errors.CategoryModelLoad), http.StatusServiceUnavailable},
		{"timeout category", category(errors.CategoryTimeout), http.StatusGatewayTimeout},
		{"plain error", fmt.Errorf("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

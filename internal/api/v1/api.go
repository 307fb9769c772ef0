// Package api implements the v1 JSON endpoints of the KamiAI HTTP server.
package api

import (
	"crypto/rand"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/core"
	"github.com/kamiai/kamiai/internal/errors"
	"github.com/kamiai/kamiai/internal/logger"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group
	Core  *core.Core

	logger    logger.Logger
	startTime time.Time
}

// New creates the controller and registers its routes under /api/v1.
func New(e *echo.Echo, c *core.Core) *Controller {
	ctrl := &Controller{
		Echo:      e,
		Group:     e.Group("/api/v1"),
		Core:      c,
		logger:    logger.Global().Module("api").Module("v1"),
		startTime: time.Now(),
	}
	ctrl.initRoutes()
	return ctrl
}

// initRoutes registers every route of the API.
func (c *Controller) initRoutes() {
	c.initSessionRoutes()
	c.initWorkspaceRoutes()
	c.initLiveRoutes()
	c.initModelRoutes()
	c.initBackupRoutes()
	c.initStoreRoutes()
	c.initSystemRoutes()
	c.initDeviceRoutes()
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates a new API error response.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns an 8 character identifier for log correlation.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError logs err and writes it as an ErrorResponse with code.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.logger.Error("API error", fields...)
	} else {
		c.logger.Debug("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// fail writes err with the status derived from its kind.
func (c *Controller) fail(ctx echo.Context, err error, message string) error {
	return c.HandleError(ctx, err, message, statusFor(err))
}

// readBody returns the raw request body. An empty body is a validation error.
func readBody(ctx echo.Context) ([]byte, error) {
	data, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryHTTP).
			Build()
	}
	if len(data) == 0 {
		return nil, validationError("request body is empty", "body")
	}
	return data, nil
}

// bindJSON decodes the JSON request body into dst.
func bindJSON(ctx echo.Context, dst any) error {
	if err := ctx.Bind(dst); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "bind").
			Build()
	}
	return nil
}

func validationError(message, field string) error {
	return errors.Newf("%s", message).
		Component("api").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

// successResponse is the body of actions that return no resource.
type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

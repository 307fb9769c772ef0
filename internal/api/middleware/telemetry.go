package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kamiai/kamiai/internal/observability/metrics"
)

// unmatchedRoute labels requests that hit no registered route, so scanners
// cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

// TelemetryMiddleware records HTTP request metrics.
type TelemetryMiddleware struct {
	httpMetrics *metrics.HTTPMetrics
}

// NewTelemetryMiddleware creates a new telemetry middleware instance.
func NewTelemetryMiddleware(httpMetrics *metrics.HTTPMetrics) *TelemetryMiddleware {
	return &TelemetryMiddleware{httpMetrics: httpMetrics}
}

// Middleware returns the Echo middleware function. Paths are labeled with
// the route template, so /api/v1/models/:id is one series.
func (tm *TelemetryMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tm.httpMetrics == nil {
				return next(c)
			}

			tm.httpMetrics.RequestStarted()
			defer tm.httpMetrics.RequestFinished()

			start := time.Now()
			err := next(c)
			duration := time.Since(start).Seconds()

			path := c.Path()
			if path == "" {
				path = unmatchedRoute
			}
			method := c.Request().Method

			status := c.Response().Status
			if err != nil {
				// The error handler has not written the response yet.
				status = statusOf(err)
				tm.httpMetrics.RecordHTTPRequestError(method, path, categorizeError(err))
			}
			if status == 0 {
				status = http.StatusOK
			}

			tm.httpMetrics.RecordHTTPRequest(method, path, status, duration)
			tm.httpMetrics.RecordHTTPResponseSize(method, path, c.Response().Size)
			return err
		}
	}
}

func statusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}

func categorizeError(err error) string {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return "internal"
	}
	switch {
	case he.Code == http.StatusNotFound:
		return "not_found"
	case he.Code == http.StatusRequestEntityTooLarge:
		return "body_too_large"
	case he.Code >= 500:
		return "server"
	default:
		return "client"
	}
}

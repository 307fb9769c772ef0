package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// HSTSMaxAge is one year in seconds.
const HSTSMaxAge = 31536000

// jsonOnlyCSP forbids every subresource; the server only answers JSON and
// bundle downloads.
const jsonOnlyCSP = "default-src 'none'; frame-ancestors 'none'"

// SecurityConfig configures CORS and response headers.
type SecurityConfig struct {
	AllowedOrigins        []string
	HSTSMaxAge            int
	ContentSecurityPolicy string
}

// DefaultSecurityConfig allows any origin. Devices on the local network post
// frames from wherever they are served.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AllowedOrigins:        []string{"*"},
		HSTSMaxAge:            HSTSMaxAge,
		ContentSecurityPolicy: jsonOnlyCSP,
	}
}

// NewCORS returns the CORS middleware. Credentials are allowed only for an
// explicit origin list.
func NewCORS(config SecurityConfig) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPut,
			http.MethodPatch,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		// bundle downloads carry their filename here
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
		AllowCredentials: len(config.AllowedOrigins) > 0 && !slices.Contains(config.AllowedOrigins, "*"),
	})
}

// NewSecureHeaders sets the hardening headers on every response.
func NewSecureHeaders(config SecurityConfig) echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            config.HSTSMaxAge,
		ContentSecurityPolicy: config.ContentSecurityPolicy,
	})
}

// NewBodyLimit rejects request bodies above limit with 413.
func NewBodyLimit(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}

// NewGzip compresses responses except the Prometheus scrape endpoint,
// which negotiates its own encoding.
func NewGzip() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	})
}

// Package api provides the HTTP server for KamiAI. The JSON endpoints live
// in the v1 subpackage.
package api

import (
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/kamiai/kamiai/internal/conf"
	"github.com/kamiai/kamiai/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

const (
	DefaultPort            = "8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 2 * time.Minute // bundle exports can be large
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultBodyLimit fits camera frames and backup bundles.
	DefaultBodyLimit = "64M"
)

// bodyLimitPattern is the size syntax accepted by echo's BodyLimit middleware.
var bodyLimitPattern = regexp.MustCompile(`(?i)^\d+(\.\d+)?[KMGTP]?B?$`)

// Config holds the HTTP server configuration.
type Config struct {
	Host string // empty binds every interface
	Port string

	AllowedOrigins []string // CORS

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// BodyLimit caps uploaded frames and restore bundles, e.g. "64M".
	BodyLimit string

	Debug bool
}

// DefaultConfig returns the configuration used for unset settings.
func DefaultConfig() *Config {
	return &Config{
		Port:            DefaultPort,
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings overlays the webserver settings on DefaultConfig.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	ws := settings.WebServer
	cfg.Host = ws.Host
	if ws.Port != "" {
		cfg.Port = ws.Port
	}
	if len(ws.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = ws.AllowedOrigins
	}
	if ws.BodyLimit != "" {
		cfg.BodyLimit = ws.BodyLimit
	}
	cfg.Debug = settings.Debug
	return cfg
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return fmt.Errorf("port is required")
	case c.ReadTimeout <= 0:
		return fmt.Errorf("read timeout must be positive")
	case c.WriteTimeout <= 0:
		return fmt.Errorf("write timeout must be positive")
	case c.BodyLimit == "":
		return fmt.Errorf("body limit is required")
	case !bodyLimitPattern.MatchString(c.BodyLimit):
		return fmt.Errorf("body limit %q is not a size such as 64M", c.BodyLimit)
	}
	return nil
}

// Address returns the listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) String() string {
	return fmt.Sprintf("address=%s body_limit=%s origins=%v debug=%v",
		c.Address(), c.BodyLimit, c.AllowedOrigins, c.Debug)
}

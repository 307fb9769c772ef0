// Package conf provides configuration management for KamiAI.
package conf

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger each call because the central logger is installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}

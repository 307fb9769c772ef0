package core

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the core package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("core")
}

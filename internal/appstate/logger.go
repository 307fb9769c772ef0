package appstate

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the appstate package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("appstate")
}

package notify

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the notify package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notify")
}

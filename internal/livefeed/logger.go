package livefeed

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the livefeed package logger scoped to the livefeed module.
func GetLogger() logger.Logger {
	return logger.Global().Module("livefeed")
}

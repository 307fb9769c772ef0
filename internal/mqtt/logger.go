package mqtt

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the mqtt package logger scoped to the mqtt module.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}

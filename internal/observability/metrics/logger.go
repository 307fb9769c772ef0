package metrics

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the metrics package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("metrics")
}

package workspace

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the workspace package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("workspace")
}

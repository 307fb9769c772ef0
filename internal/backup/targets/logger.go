// Package targets provides backup target implementations.
package targets

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the backup targets package logger scoped to the backup module.
func GetLogger() logger.Logger {
	return logger.Global().Module("backup").Module("targets")
}

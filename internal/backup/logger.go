// Package backup builds, exports, syncs and restores full application
// bundles.
package backup

import "github.com/kamiai/kamiai/internal/logger"

// GetLogger returns the backup package logger scoped to the backup module.
func GetLogger() logger.Logger {
	return logger.Global().Module("backup")
}

// Field constructors re-exported for use in this package.
var (
	logString = logger.String
	logError  = logger.Error
	logInt    = logger.Int
	logInt64  = logger.Int64
)

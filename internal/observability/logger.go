package observability

import (
	"fmt"

	"github.com/kamiai/kamiai/internal/logger"
)

// GetLogger returns the observability package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("observability")
}

// promLogger adapts the package logger to promhttp.Logger.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	GetLogger().Error("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}

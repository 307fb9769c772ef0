package mobilenet

import (
	"sync"

	"github.com/kamiai/kamiai/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the extractor logger scoped to the embedding module.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("embedding").Module("mobilenet")
	})
	return serviceLogger
}

package targets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kamiai/kamiai/internal/backup"
	"github.com/kamiai/kamiai/internal/logger"
)

// Retry and file constants shared by targets.
const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 200 * time.Millisecond

	dirPermissions  = 0o700
	filePermissions = 0o600
	maxFilenameLen  = 255
)

// transientErrorPatterns contains substrings that indicate a transient/retriable error
var transientErrorPatterns = []string{
	"connection reset",
	"connection refused",
	"connection closed",
	"timeout",
	"temporary",
	"broken pipe",
	"no route to host",
	"EOF",
	"resource temporarily unavailable",
}

// IsTransientError determines if an error is likely transient and can be retried.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if os.IsTimeout(err) {
		return true
	}

	errStr := err.Error()
	for _, pattern := range transientErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultRetryBackoff,
	}
}

// WithRetry executes an operation with retry logic for transient errors.
// The operation is retried up to MaxRetries times with linear backoff.
func WithRetry(ctx context.Context, cfg RetryConfig, log logger.Logger, op func() error) error {
	var lastErr error

	for attempt := range cfg.MaxRetries {
		select {
		case <-ctx.Done():
			return backup.NewError(backup.ErrCanceled, "operation canceled", ctx.Err())
		default:
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return err
		}
		lastErr = err
		log.Debug("retrying after transient error",
			logger.Error(err),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", cfg.MaxRetries))

		// Linear backoff: backoff * (attempt + 1) gives 1x, 2x, 3x delays
		select {
		case <-ctx.Done():
			return backup.NewError(backup.ErrCanceled, "operation canceled", ctx.Err())
		case <-time.After(cfg.Backoff * time.Duration(attempt+1)):
		}
	}

	return backup.NewError(backup.ErrNetwork, "operation failed after retries", lastErr)
}

// validateFilename rejects names that would escape the target directory.
func validateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return backup.NewError(backup.ErrValidation, "backup filename is required", nil)
	case len(name) > maxFilenameLen:
		return backup.NewError(backup.ErrValidation, "backup filename too long", nil)
	case strings.ContainsAny(name, `/\`) || filepath.Base(name) != name:
		return backup.NewError(backup.ErrValidation, "backup filename must not contain path separators", nil)
	}
	return nil
}

package targets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kamiai/kamiai/internal/backup"
)

func TestIsTransientError(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(errors.New("permission denied")))
	assert.True(t, IsTransientError(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransientError(errors.New("temporary server error")))
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxRetries: 3, Backoff: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := WithRetry(t.Context(), cfg, GetLogger(), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		t.Parallel()
		calls := 0
		permanent := errors.New("bad credentials")
		err := WithRetry(t.Context(), cfg, GetLogger(), func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up as network error", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := WithRetry(t.Context(), cfg, GetLogger(), func() error {
			calls++
			return errors.New("i/o timeout")
		})
		assert.True(t, backup.IsErrorCode(err, backup.ErrNetwork))
		assert.Equal(t, 3, calls)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		err := WithRetry(ctx, cfg, GetLogger(), func() error { return nil })
		assert.True(t, backup.IsErrorCode(err, backup.ErrCanceled))
	})
}

package mobilenet

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/errors"
)

func TestDetermineThreadCount(t *testing.T) {
	cpus := runtime.NumCPU()

	assert.Equal(t, 1, determineThreadCount(1))
	assert.Equal(t, cpus, determineThreadCount(cpus+100))

	auto := determineThreadCount(0)
	assert.GreaterOrEqual(t, auto, 1)
	assert.LessOrEqual(t, auto, cpus)
}

func TestNewMissingModelIsModelLoadError(t *testing.T) {
	_, err := New(context.Background(), Options{
		ModelPath: filepath.Join(t.TempDir(), "missing.tflite"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestNewHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, Options{ModelPath: "unused.tflite"})
	require.ErrorIs(t, err, context.Canceled)
}

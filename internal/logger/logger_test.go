package logger_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamiai/kamiai/internal/logger"
)

func TestModuleLoggerWritesModuleAndFields(t *testing.T) {
	var buf bytes.Buffer
	cl := logger.NewWriterLogger(&buf, logger.LogLevelDebug)

	log := cl.Module("backup").Module("targets")
	log.Info("bundle written",
		logger.String("path", "/tmp/x.kami"),
		logger.Int("models", 3),
		logger.Error(errors.New("boom")),
		logger.Duration("elapsed", 1500*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "module=backup.targets")
	assert.Contains(t, out, "models=3")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.NotContains(t, out, "time=")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cl := logger.NewWriterLogger(&buf, logger.LogLevelWarn)
	log := cl.Module("session")

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")
	log.Log(logger.LogLevelError, "also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "also shown")
}

func TestWithAccumulatesFieldsWithoutMutatingParent(t *testing.T) {
	var buf bytes.Buffer
	parent := logger.NewWriterLogger(&buf, logger.LogLevelInfo).Module("api")
	child := parent.With(logger.String("request_id", "r-1"))

	parent.Info("parent line")
	child.Info("child line")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "request_id")
	assert.Contains(t, lines[1], "request_id=r-1")
}

func TestWithContextAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWriterLogger(&buf, logger.LogLevelInfo).Module("api")

	ctx := logger.WithTraceID(context.Background(), "abc-123")
	log.WithContext(ctx).Info("request")

	assert.Contains(t, buf.String(), "trace_id=abc-123")
}

func TestCentralLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "kamiai.log")

	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput: &logger.FileOutput{
			Enabled: true,
			Path:    path,
			Level:   "debug",
		},
		ModuleLevels: map[string]string{"datastore": "error"},
	})
	require.NoError(t, err)

	cl.Module("workspace").Info("model saved", logger.String("model_id", "m1"))
	cl.Module("datastore").Module("sqlite").Info("suppressed by module level")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"model saved"`)
	assert.Contains(t, string(data), `"module":"workspace"`)
	assert.NotContains(t, string(data), "suppressed")
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestRotateStartsNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kamiai.log")

	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		Console:    &logger.ConsoleOutput{Enabled: false},
		FileOutput: &logger.FileOutput{Enabled: true, Path: path},
	})
	require.NoError(t, err)

	cl.Module("main").Info("before rotation")
	require.NoError(t, cl.Rotate())
	cl.Module("main").Info("after rotation")
	require.NoError(t, cl.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after rotation")
	assert.NotContains(t, string(data), "before rotation")

	var nilLogger *logger.CentralLogger
	assert.NoError(t, nilLogger.Rotate())
	assert.NoError(t, logger.NewWriterLogger(nil, logger.LogLevelInfo).Rotate(), "no file output")
}

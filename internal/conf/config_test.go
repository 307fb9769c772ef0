package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	settings, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "KamiAI", settings.Main.Name)
	assert.Equal(t, "tflite", settings.Vision.Backend)
	assert.Equal(t, 8, settings.Vision.GridSize)
	assert.Equal(t, 1, settings.Vision.K)
	assert.Equal(t, "cosine", settings.Vision.Metric)
	assert.Equal(t, 60, settings.Vision.FPS)
	assert.Equal(t, 100*time.Millisecond, settings.Vision.CaptureInterval)
	assert.Equal(t, "manual", settings.Backup.Auto.Interval)
	assert.Equal(t, 10*time.Minute, settings.IoT.DeviceTTL)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestEmbeddedConfigMatchesDefaults(t *testing.T) {
	data, err := configFiles.ReadFile("config.yaml")
	require.NoError(t, err)

	settings, err := LoadFile(writeConfig(t, string(data)))
	require.NoError(t, err)

	defaults, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, defaults.Vision, settings.Vision)
	assert.Equal(t, defaults.Backup, settings.Backup)
	assert.Equal(t, defaults.WebServer, settings.WebServer)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
vision:
  k: 3
  metric: euclidean
  captureinterval: 250ms
backup:
  auto:
    enabled: true
    interval: weekly
`)
	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, settings.Vision.K)
	assert.Equal(t, "euclidean", settings.Vision.Metric)
	assert.Equal(t, 250*time.Millisecond, settings.Vision.CaptureInterval)
	assert.True(t, settings.Backup.Auto.Enabled)
	assert.Equal(t, "weekly", settings.Backup.Auto.Interval)
	assert.Same(t, settings, GetSettings())
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("KAMIAI_VISION_K", "5")

	settings, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 5, settings.Vision.K)
}

func TestValidateSettingsCollectsErrors(t *testing.T) {
	settings, err := LoadFile("")
	require.NoError(t, err)

	settings.Vision.K = 0
	settings.Vision.Metric = "manhattan"
	settings.Backup.Auto.Interval = "hourly"
	settings.Backup.GitHub.Enabled = true

	err = ValidateSettings(settings)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
	assert.Contains(t, ve.Errors[0], "vision.k")
	assert.Contains(t, ve.Errors[1], "backup.auto.interval")
}

func TestValidateVisionBackend(t *testing.T) {
	settings, err := LoadFile("")
	require.NoError(t, err)

	settings.Vision.Backend = "onnx"
	err = ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision.backend")

	settings.Vision.Backend = "grid"
	settings.Vision.GridSize = 0
	err = ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision.gridsize")
}

func TestValidateNotificationSettings(t *testing.T) {
	settings, err := LoadFile("")
	require.NoError(t, err)
	assert.False(t, settings.Notification.Enabled)
	assert.Equal(t, 10*time.Second, settings.Notification.Timeout)

	settings.Notification.Enabled = true
	err = ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification.urls")

	settings.Notification.URLs = []string{"telegram://token@telegram?chats=1"}
	settings.Notification.Types = []string{"error", "detection"}
	err = ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notification.types")

	settings.Notification.Types = []string{"error"}
	assert.NoError(t, ValidateSettings(settings))
}

func TestValidateStorageDriver(t *testing.T) {
	settings, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", settings.Storage.Driver)
	assert.Equal(t, "3306", settings.Storage.MySQL.Port)

	settings.Storage.Driver = "postgres"
	err = ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver")

	settings.Storage.Driver = "mysql"
	err = ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.mysql")

	settings.Storage.MySQL.Username = "kami"
	assert.NoError(t, ValidateSettings(settings))
}

func TestEncryptionRequiresPassphrase(t *testing.T) {
	path := writeConfig(t, `
backup:
  encryption: true
  passphrase: short
`)
	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passphrase")
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	settings, err := LoadFile("")
	require.NoError(t, err)
	settings.Vision.K = 7
	settings.Backup.GitHub.Owner = "someone"

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveYAMLConfig(path, settings))

	reloaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, reloaded.Vision.K)
	assert.Equal(t, "someone", reloaded.Backup.GitHub.Owner)
	assert.Equal(t, settings.Vision.CaptureInterval, reloaded.Vision.CaptureInterval)
}

func TestResolvePath(t *testing.T) {
	s := &Settings{Main: MainSettings{DataDir: "/var/lib/kamiai"}}
	assert.Equal(t, "/var/lib/kamiai/kamiai.db", s.ResolvePath("kamiai.db"))
	assert.Equal(t, "/tmp/x.db", s.ResolvePath("/tmp/x.db"))
	assert.Empty(t, s.ResolvePath(""))
}

func TestValidateUpdateSettings(t *testing.T) {
	settings, err := LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, settings.Update.VersionURL)
	assert.Equal(t, 10*time.Second, settings.Update.Timeout)

	settings.Update.VersionURL = "ftp://updates.example.com/version"
	err = ValidateSettings(settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update.versionurl")

	settings.Update.VersionURL = "https://updates.example.com/kamiai/version.txt"
	assert.NoError(t, ValidateSettings(settings))
}

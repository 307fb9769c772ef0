// config.go: settings struct for KamiAI and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kamiai/kamiai/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings contains general application settings.
type MainSettings struct {
	Name    string // node name shown in the API and MQTT payloads
	DataDir string // directory for the database and backup state
}

// VisionSettings contains settings for the vision module.
type VisionSettings struct {
	Backend         string        // "tflite" or "grid"
	ModelPath       string        // path to the TFLite feature extractor
	GridSize        int           // cells per side for the grid backend
	Threads         int           // interpreter threads, 0 = physical cores
	K               int           // neighbors considered by the classifier
	Metric          string        // "cosine" or "euclidean"
	KeepSamples     bool          // persist raw training frames with saved models
	FPS             int           // live prediction rate ceiling
	CaptureInterval time.Duration // training capture cadence while a class is held
}

// StorageSettings contains settings for the model repository.
type StorageSettings struct {
	Driver             string        // sqlite or mysql
	Path               string        // sqlite database file
	MySQL              MySQLSettings // used when Driver is mysql
	SlowQueryThreshold time.Duration // queries slower than this are logged at warn
}

// MySQLSettings contains the MySQL connection settings.
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// AutoBackupSettings controls the scheduled local backup.
type AutoBackupSettings struct {
	Enabled  bool
	Interval string // "daily", "weekly" or "manual"
}

// GitHubTarget configures backup sync to a GitHub repository.
type GitHubTarget struct {
	Enabled bool
	Owner   string
	Repo    string
	Branch  string
	Path    string // directory inside the repository
	Token   string
	APIURL  string
}

// GoogleDriveTarget configures backup sync to Google Drive.
type GoogleDriveTarget struct {
	Enabled         bool
	CredentialsFile string // service account or OAuth client JSON
	Token           string // static OAuth access token, used when no credentials file is set
	FolderID        string
}

// BackupConfig contains backup and restore settings.
type BackupConfig struct {
	Dir        string        // local export directory
	StateFile  string        // backup history file, relative paths resolve under main.datadir
	Encryption bool          // encrypt local exports
	Passphrase string        // passphrase for export encryption
	Timeout    time.Duration // upper bound for one backup or sync operation
	Auto       AutoBackupSettings
	GitHub     GitHubTarget
	Google     GoogleDriveTarget
}

// WebServerSettings contains settings for the HTTP API.
type WebServerSettings struct {
	Enabled        bool
	Host           string
	Port           string
	AllowedOrigins []string // CORS origins, empty allows any
	BodyLimit      string   // largest accepted request body, e.g. "64M"
}

// MQTTSettings contains settings for publishing live predictions.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Retain   bool
}

// TelemetrySettings controls error reporting.
type TelemetrySettings struct {
	Enabled bool
	DSN     string
}

// NotificationSettings configures push notifications. URLs use the shoutrrr
// service format, e.g. telegram://token@telegram?chats=123.
type NotificationSettings struct {
	Enabled bool
	URLs    []string
	Types   []string      // delivered types; empty delivers all
	Timeout time.Duration // per send
}

// UpdateSettings configures the release check. An empty VersionURL
// disables it.
type UpdateSettings struct {
	VersionURL  string // plain text document holding the latest version
	DownloadURL string
	Timeout     time.Duration
}

// IoTSettings contains settings for the device registry.
type IoTSettings struct {
	DeviceTTL time.Duration // registrations expire after this long without a refresh
}

// Settings contains all configuration options for KamiAI.
type Settings struct {
	Debug        bool
	Main         MainSettings
	Logging      logger.LoggingConfig
	Vision       VisionSettings
	Storage      StorageSettings
	Backup       BackupConfig
	WebServer    WebServerSettings
	MQTT         MQTTSettings
	Notification NotificationSettings
	Telemetry    TelemetrySettings
	IoT          IoTSettings
	Update       UpdateSettings
}

var (
	settingsInstance *Settings
	settingsPath     string
	settingsMutex    sync.RWMutex
)

// Load reads config.yaml from the default config paths, creating it from the
// embedded defaults when no file exists yet.
func Load() (*Settings, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, err
	}

	for _, dir := range configPaths {
		candidate := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return LoadFile(candidate)
		}
	}

	configPath := filepath.Join(configPaths[0], "config.yaml")
	if err := writeDefaultConfig(configPath); err != nil {
		return nil, err
	}
	GetLogger().Info("created default config file", logger.String("path", configPath))
	return LoadFile(configPath)
}

// LoadFile reads settings from a specific YAML file plus KAMIAI_* environment overrides.
// An empty path loads defaults and environment only.
func LoadFile(path string) (*Settings, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsPath = path
	settingsMutex.Unlock()

	return settings, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("KAMIAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaultConfig(v)
	return v
}

func writeDefaultConfig(configPath string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}

// GetSettings returns the most recently loaded settings
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveSettings writes the current settings back to the file they were loaded from.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	if settingsInstance == nil || settingsPath == "" {
		return errors.New("no settings file loaded")
	}
	return SaveYAMLConfig(settingsPath, settingsInstance)
}

// SaveYAMLConfig overwrites configPath with settings, going through a temp file
// in the same directory so readers never see a partial file.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// ResolvePath returns p unchanged when absolute, otherwise joined to main.datadir.
func (s *Settings) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Main.DataDir, p)
}

// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
)

// Accepted values for enumerated settings
var (
	validMetrics        = []string{"cosine", "euclidean"}
	validBackends       = []string{"tflite", "grid"}
	validBackupInterval = []string{"daily", "weekly", "manual"}
	validNotifyTypes    = []string{"info", "warning", "error"}
	validStorageDrivers = []string{"sqlite", "mysql"}
)

const (
	maxLiveFPS          = 60
	minPassphraseLength = 8
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, check := range []func(*Settings) error{
		validateVisionSettings,
		validateStorageSettings,
		validateBackupSettings,
		validateWebServerSettings,
		validateMQTTSettings,
		validateNotificationSettings,
		validateUpdateSettings,
	} {
		if err := check(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateVisionSettings(s *Settings) error {
	v := &s.Vision
	switch {
	case !slices.Contains(validBackends, v.Backend):
		return fmt.Errorf("vision.backend must be one of %v, got %q", validBackends, v.Backend)
	case v.Backend == "grid" && v.GridSize < 1:
		return fmt.Errorf("vision.gridsize must be at least 1, got %d", v.GridSize)
	case v.K < 1:
		return fmt.Errorf("vision.k must be at least 1, got %d", v.K)
	case !slices.Contains(validMetrics, v.Metric):
		return fmt.Errorf("vision.metric must be one of %v, got %q", validMetrics, v.Metric)
	case v.FPS < 1 || v.FPS > maxLiveFPS:
		return fmt.Errorf("vision.fps must be between 1 and %d, got %d", maxLiveFPS, v.FPS)
	case v.CaptureInterval <= 0:
		return fmt.Errorf("vision.captureinterval must be positive")
	case v.Threads < 0:
		return fmt.Errorf("vision.threads cannot be negative")
	}
	return nil
}

func validateStorageSettings(s *Settings) error {
	st := &s.Storage
	switch st.Driver {
	case "sqlite":
		if st.Path == "" {
			return fmt.Errorf("storage.path is required")
		}
	case "mysql":
		if st.MySQL.Host == "" || st.MySQL.Database == "" || st.MySQL.Username == "" {
			return fmt.Errorf("storage.mysql needs host, database and username")
		}
		if port, err := strconv.Atoi(st.MySQL.Port); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("storage.mysql.port must be a valid TCP port, got %q", st.MySQL.Port)
		}
	default:
		return fmt.Errorf("storage.driver must be one of %v, got %q", validStorageDrivers, st.Driver)
	}
	return nil
}

func validateBackupSettings(s *Settings) error {
	b := &s.Backup
	if !slices.Contains(validBackupInterval, b.Auto.Interval) {
		return fmt.Errorf("backup.auto.interval must be one of %v, got %q", validBackupInterval, b.Auto.Interval)
	}
	if b.Encryption && len(b.Passphrase) < minPassphraseLength {
		return fmt.Errorf("backup.passphrase must be at least %d characters when encryption is enabled", minPassphraseLength)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("backup.timeout must be positive")
	}
	if b.GitHub.Enabled {
		if b.GitHub.Owner == "" || b.GitHub.Repo == "" || b.GitHub.Token == "" {
			return fmt.Errorf("backup.github requires owner, repo and token")
		}
		if _, err := url.ParseRequestURI(b.GitHub.APIURL); err != nil {
			return fmt.Errorf("backup.github.apiurl is invalid: %w", err)
		}
	}
	if b.Google.Enabled && b.Google.CredentialsFile == "" && b.Google.Token == "" {
		return fmt.Errorf("backup.google requires credentialsfile or token")
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if !s.WebServer.Enabled {
		return nil
	}
	port, err := strconv.Atoi(s.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver.port must be a valid TCP port, got %q", s.WebServer.Port)
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	if s.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if s.MQTT.Topic == "" {
		return fmt.Errorf("mqtt.topic is required when mqtt is enabled")
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	n := &s.Notification
	if !n.Enabled {
		return nil
	}
	if len(n.URLs) == 0 {
		return fmt.Errorf("notification.urls needs at least one URL when notifications are enabled")
	}
	for _, t := range n.Types {
		if !slices.Contains(validNotifyTypes, t) {
			return fmt.Errorf("notification.types must be among %v, got %q", validNotifyTypes, t)
		}
	}
	if n.Timeout < 0 {
		return fmt.Errorf("notification.timeout must not be negative")
	}
	return nil
}

func validateUpdateSettings(s *Settings) error {
	u := &s.Update
	if u.VersionURL == "" {
		return nil
	}
	parsed, err := url.Parse(u.VersionURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("update.versionurl must be an http(s) URL, got %q", u.VersionURL)
	}
	if u.Timeout < 0 {
		return fmt.Errorf("update.timeout must not be negative")
	}
	return nil
}

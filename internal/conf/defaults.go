// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/kamiai/kamiai/internal/logger"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "KamiAI")
	v.SetDefault("main.datadir", "data")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", false)

	v.SetDefault("vision.backend", "tflite")
	v.SetDefault("vision.modelpath", "models/feature_extractor.tflite")
	v.SetDefault("vision.gridsize", 8)
	v.SetDefault("vision.threads", 0)
	v.SetDefault("vision.k", 1)
	v.SetDefault("vision.metric", "cosine")
	v.SetDefault("vision.keepsamples", false)
	v.SetDefault("vision.fps", 60)
	v.SetDefault("vision.captureinterval", 100*time.Millisecond)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "kamiai.db")
	v.SetDefault("storage.mysql.host", "localhost")
	v.SetDefault("storage.mysql.port", "3306")
	v.SetDefault("storage.mysql.username", "")
	v.SetDefault("storage.mysql.password", "")
	v.SetDefault("storage.mysql.database", "kamiai")
	v.SetDefault("storage.slowquerythreshold", 200*time.Millisecond)

	v.SetDefault("backup.dir", "backups")
	v.SetDefault("backup.statefile", "backup-state.json")
	v.SetDefault("backup.encryption", false)
	v.SetDefault("backup.passphrase", "")
	v.SetDefault("backup.timeout", 2*time.Minute)
	v.SetDefault("backup.auto.enabled", false)
	v.SetDefault("backup.auto.interval", "manual")
	v.SetDefault("backup.github.enabled", false)
	v.SetDefault("backup.github.branch", "main")
	v.SetDefault("backup.github.path", "kamiai")
	v.SetDefault("backup.github.apiurl", "https://api.github.com")
	v.SetDefault("backup.google.enabled", false)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.host", "")
	v.SetDefault("webserver.port", "8080")
	v.SetDefault("webserver.allowedorigins", []string{})
	v.SetDefault("webserver.bodylimit", "64M")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "kamiai")
	v.SetDefault("mqtt.clientid", "kamiai")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.types", []string{})
	v.SetDefault("notification.timeout", 10*time.Second)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")

	v.SetDefault("iot.devicettl", 10*time.Minute)

	v.SetDefault("update.versionurl", "")
	v.SetDefault("update.downloadurl", "")
	v.SetDefault("update.timeout", 10*time.Second)
}

// Package datastore persists saved models, training samples and settings
// through GORM, in SQLite by default or in MySQL.
package datastore

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kamiai/kamiai/internal/logger"
)

// Supported dialects.
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
)

// Config holds SQLite configuration.
type Config struct {
	// Path is the SQLite file. ":memory:" opens a private in-memory database.
	Path string
	// SlowQueryThreshold makes slower queries log at warn level.
	SlowQueryThreshold time.Duration
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host               string
	Port               string
	Username           string
	Password           string
	Database           string
	SlowQueryThreshold time.Duration
}

// DSN returns the go-sql-driver connection string.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, net.JoinHostPort(c.Host, c.Port), c.Database)
}

// location names the database without credentials.
func (c MySQLConfig) location() string {
	return "mysql://" + net.JoinHostPort(c.Host, c.Port) + "/" + c.Database
}

// Manager owns the GORM connection.
type Manager struct {
	db       *gorm.DB
	dialect  string
	location string
}

// NewSQLiteManager opens the SQLite database and migrates the schema.
func NewSQLiteManager(cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, validationError("database path is required", "path")
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, storageError(err, "create_data_dir", "path", cfg.Path)
		}
		// Build DSN with recommended SQLite pragmas
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", cfg.Path)
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(DialectSQLite, cfg.SlowQueryThreshold))
	if err != nil {
		return nil, storageError(err, "open", "path", cfg.Path)
	}

	// SQLite serializes writers; a single connection also keeps ":memory:"
	// databases shared across calls.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, storageError(err, "open", "path", cfg.Path)
	}
	sqlDB.SetMaxOpenConns(1)

	return initialize(&Manager{db: db, dialect: DialectSQLite, location: cfg.Path})
}

// NewMySQLManager connects to MySQL and migrates the schema.
func NewMySQLManager(cfg MySQLConfig) (*Manager, error) {
	switch {
	case cfg.Host == "":
		return nil, validationError("mysql host is required", "host")
	case cfg.Database == "":
		return nil, validationError("mysql database is required", "database")
	}
	if cfg.Port == "" {
		cfg.Port = "3306"
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig(DialectMySQL, cfg.SlowQueryThreshold))
	if err != nil {
		return nil, storageError(err, "open", "location", cfg.location())
	}
	return initialize(&Manager{db: db, dialect: DialectMySQL, location: cfg.location()})
}

func gormConfig(dialect string, slow time.Duration) *gorm.Config {
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger().Module(dialect), slow),
	}
}

func initialize(m *Manager) (*Manager, error) {
	if err := m.Initialize(); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// Initialize creates the schema.
func (m *Manager) Initialize() error {
	if err := m.db.AutoMigrate(&SavedModel{}, &TrainingSample{}, &Setting{}); err != nil {
		return storageError(err, "migrate")
	}
	return nil
}

// DB returns the underlying GORM database.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Dialect returns DialectSQLite or DialectMySQL.
func (m *Manager) Dialect() string {
	return m.dialect
}

// Path returns the SQLite file path, or a credential free mysql:// URL.
func (m *Manager) Path() string {
	return m.location
}

// Size returns the SQLite file size in bytes, 0 for in-memory and MySQL
// databases.
func (m *Manager) Size() int64 {
	if m.dialect != DialectSQLite {
		return 0
	}
	info, err := os.Stat(m.location)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close closes the database connection.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

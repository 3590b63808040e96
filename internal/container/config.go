// Package container provides dependency injection and lifecycle management
// for the expense reimbursement service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	OpenAI   OpenAIConfig
	Lark     LarkConfig
	Export   ExportConfig
	Server   ServerConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// BaseDir holds vouchers and staged uploads
	BaseDir string

	// BackupDir receives database snapshots
	BackupDir string

	// MaxUploadSize caps a single uploaded file, in bytes
	MaxUploadSize int64
}

// OpenAIConfig holds OCR settings. An empty APIKey disables OCR.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	PromptsPath string
	Timeout     time.Duration
}

// LarkConfig holds notification settings. Notifications are off unless all three are set.
type LarkConfig struct {
	AppID     string
	AppSecret string
	ChatID    string
}

// ExportConfig holds workbook rendering settings.
type ExportConfig struct {
	CompanyName string
	FontFamily  string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	TempCleanupInterval time.Duration
	TempMaxAge          time.Duration

	// BackupInterval of zero disables scheduled backups
	BackupInterval time.Duration
	BackupKeep     int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/reimbursement.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Storage: StorageConfig{
			BaseDir:       "data/files",
			BackupDir:     "data/backups",
			MaxUploadSize: 20 << 20,
		},
		OpenAI: OpenAIConfig{
			Model:   "gpt-4o",
			Timeout: 60 * time.Second,
		},
		Export: ExportConfig{
			FontFamily: "宋体",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Worker: WorkerConfig{
			TempCleanupInterval: time.Hour,
			TempMaxAge:          24 * time.Hour,
			BackupInterval:      0,
			BackupKeep:          7,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Storage.MaxUploadSize <= 0 {
		return fmt.Errorf("storage.max_upload_size must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Worker.TempCleanupInterval <= 0 {
		return fmt.Errorf("worker.temp_cleanup_interval must be positive")
	}
	if c.Worker.TempMaxAge <= 0 {
		return fmt.Errorf("worker.temp_max_age must be positive")
	}
	if c.Worker.BackupInterval > 0 && c.Storage.BackupDir == "" {
		return fmt.Errorf("storage.backup_dir is required when scheduled backups are on")
	}
	return nil
}

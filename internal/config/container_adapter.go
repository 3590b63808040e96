package config

import (
	"github.com/garyjia/expense-reimbursement/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Storage: container.StorageConfig{
			BaseDir:       c.Storage.BaseDir,
			BackupDir:     c.Storage.BackupDir,
			MaxUploadSize: c.Storage.MaxUploadSize,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:      c.OpenAI.APIKey,
			BaseURL:     c.OpenAI.BaseURL,
			Model:       c.OpenAI.Model,
			PromptsPath: c.OpenAI.PromptsPath,
			Timeout:     c.OpenAI.Timeout,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			ChatID:    c.Lark.NotifyChatID,
		},
		Export: container.ExportConfig{
			CompanyName: c.Export.CompanyName,
			FontFamily:  c.Export.FontFamily,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Worker: container.WorkerConfig{
			TempCleanupInterval: c.Worker.TempCleanupInterval,
			TempMaxAge:          c.Worker.TempMaxAge,
			BackupInterval:      c.Worker.BackupInterval,
			BackupKeep:          c.Worker.BackupKeep,
		},
	}
}

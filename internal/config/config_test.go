package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("configs/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/reimbursement.db", cfg.Database.Path)
	assert.Equal(t, int64(20<<20), cfg.Storage.MaxUploadSize)
	assert.Equal(t, time.Hour, cfg.Worker.TempCleanupInterval)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Empty(t, cfg.OpenAI.APIKey)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
storage:
  base_dir: /srv/files
worker:
  temp_max_age: 2h
logger:
  format: console
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("COMPANY_NAME=示例公司\n"), 0o644))
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_PATH", "/tmp/other.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("COMPANY_NAME") })

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/srv/files", cfg.Storage.BaseDir)
	assert.Equal(t, 2*time.Hour, cfg.Worker.TempMaxAge)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "示例公司", cfg.Export.CompanyName)

	cc := cfg.ToContainerConfig()
	assert.Equal(t, "/srv/files", cc.Storage.BaseDir)
	assert.Equal(t, "sk-test", cc.OpenAI.APIKey)
	assert.NoError(t, cc.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Path: "x.db"},
			Storage:  StorageConfig{BaseDir: "files", MaxUploadSize: 1},
			Worker:   WorkerConfig{TempCleanupInterval: time.Minute, TempMaxAge: time.Hour},
			Logger:   LoggerConfig{Format: "json"},
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"port":          func(c *Config) { c.Server.Port = 0 },
		"db path":       func(c *Config) { c.Database.Path = "" },
		"upload size":   func(c *Config) { c.Storage.MaxUploadSize = 0 },
		"partial lark":  func(c *Config) { c.Lark.AppID = "cli_x" },
		"log format":    func(c *Config) { c.Logger.Format = "xml" },
		"negative back": func(c *Config) { c.Worker.BackupInterval = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiredFieldMissing(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required config")
	assert.Contains(t, err.Error(), "DATABASE_FILE_PATH")
	assert.Contains(t, err.Error(), "database_file_path")
}

func TestNew_WithEnvVar(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DatabaseFilePath)
}

func TestNew_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/newsrack.db
server_port: 8080
database_debug: true
jwt_secret: test-secret-from-file
download_dir: /mnt/downloads
organize_dir: /mnt/library
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/newsrack.db", cfg.DatabaseFilePath)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, cfg.DatabaseDebug)
	assert.Equal(t, "/mnt/downloads", cfg.DownloadDir)
	assert.Equal(t, "/mnt/library", cfg.OrganizeDir)
}

func TestNew_EnvVarOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/from-file.db
download_dir: /data/from-file-downloads
jwt_secret: test-secret-from-file
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("DATABASE_FILE_PATH", "/data/from-env.db")
	t.Setenv("DOWNLOAD_DIR", "/data/from-env-downloads")

	cfg, err := New()
	require.NoError(t, err)
	// Env vars win over the config file, which is how deployments relocate
	// the storage paths.
	assert.Equal(t, "/data/from-env.db", cfg.DatabaseFilePath)
	assert.Equal(t, "/data/from-env-downloads", cfg.DownloadDir)
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.FuzzyThreshold)
	assert.Equal(t, 5, cfg.DuplicateDateThresholdDays)
	assert.Equal(t, "_", cfg.CategoryPrefix)
	assert.Equal(t, 3, cfg.DownloadMaxRetries)
	assert.Equal(t, 10, cfg.DownloadMaxPerBatch)
	assert.Equal(t, 30*time.Second, cfg.DownloadMonitorInterval())
	assert.Equal(t, 1800*time.Second, cfg.AutoDownloadInterval())
	assert.Equal(t, 86400*time.Second, cfg.CleanupCoversInterval())
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.True(t, cfg.AutoTrackImports)
}

func TestNew_ProvidersFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/newsrack.db
jwt_secret: s
providers:
  - type: newznab
    name: primary
    url: https://indexer.example.com
    api_key: abc123
download_client:
  type: sabnzbd
  name: sab
  url: http://localhost:8080
  api_key: def456
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "newznab", cfg.Providers[0].Type)
	assert.Equal(t, "abc123", cfg.Providers[0].APIKey)
	assert.Equal(t, "sabnzbd", cfg.DownloadClient.Type)
}

func TestNewForTest(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, ":memory:", cfg.DatabaseFilePath)
	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "database_file_path", toSnakeCase("DatabaseFilePath"))
	assert.Equal(t, "server_port", toSnakeCase("ServerPort"))
	assert.Equal(t, "download_max_per_batch", toSnakeCase("DownloadMaxPerBatch"))
}

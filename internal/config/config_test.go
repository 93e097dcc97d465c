package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfigFile, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "web", cfg.Mode)
	assert.Equal(t, time.Second, cfg.RetryBase)
	assert.Equal(t, filepath.Join(".notesync", "notesync.db"), cfg.DBPath)
	assert.Equal(t, filepath.Join(".notesync", "queue.pending"), cfg.QueuePath)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "notesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: embedded
data_dir: /var/lib/notesync
cloud_url: https://notes.example.com
retry_base: 250ms
server:
  rate_limit_rps: 3
`), 0o644))

	t.Setenv("NOTESYNC_CLOUD_URL", "http://localhost:9000")
	t.Setenv("NOTESYNC_RATE_LIMIT_BURST", "7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "embedded", cfg.Mode)
	assert.Equal(t, "/var/lib/notesync", cfg.DataDir)
	assert.Equal(t, "http://localhost:9000", cfg.CloudURL, "env wins over file")
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBase)
	assert.Equal(t, 3.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, 7, cfg.Server.RateLimitBurst)
	assert.Equal(t, filepath.Join("/var/lib/notesync", "notesync.db"), cfg.DBPath)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(EnvConfigFile, "")
	t.Setenv("NOTESYNC_LOG_LEVEL", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NOTESYNC_LOG_LEVEL=debug\n"), 0o644))
	// godotenv never overrides variables that are already set
	require.NoError(t, os.Unsetenv("NOTESYNC_LOG_LEVEL"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfigFile, "")

	t.Setenv("NOTESYNC_MODE", "desktop")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("NOTESYNC_MODE", "")
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateServer(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.ValidateServer())
	cfg.Server.Secret = "0123456789abcdef"
	assert.NoError(t, cfg.ValidateServer())
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeemasters/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "2.0", cfg.Cache.Version)
	assert.Equal(t, time.Hour, cfg.Menu.MaxAge)
	assert.Equal(t, []string{"/data/menu.json"}, cfg.Cache.NetworkFirst)
	assert.Contains(t, cfg.Cache.Manifest, "/index.html")
	assert.Equal(t, 10, cfg.Sync.MaxAttempts)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
app:
  port: ":9090"
cache:
  version: "3.1"
  network_timeout: 500ms
menu:
  max_age: 10m
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("SYNC_MAX_ATTEMPTS", "3")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.App.Port)
	assert.Equal(t, "3.1", cfg.Cache.Version)
	assert.Equal(t, 500*time.Millisecond, cfg.Cache.NetworkTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Menu.MaxAge)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongodb")

	_, err := config.Load("")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

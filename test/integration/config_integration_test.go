//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/platform/config"
)

// TestConfig_ShippedProfiles loads the configs/ directory at the repo root.
func TestConfig_ShippedProfiles(t *testing.T) {
	t.Chdir(filepath.Join("..", ".."))

	tests := []struct {
		profile   string
		wantLevel string
		wantPath  string
	}{
		{profile: "", wantLevel: "info", wantPath: "./data/quotes.db"},
		{profile: "local", wantLevel: "debug", wantPath: "./data/quotes-local.db"},
	}

	for _, tt := range tests {
		t.Run("profile="+tt.profile, func(t *testing.T) {
			cfg, err := config.Load(tt.profile)
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			assert.Equal(t, "quote-sync", cfg.App.Name)
			assert.Equal(t, tt.wantLevel, cfg.Log.Level)
			assert.Equal(t, tt.wantPath, cfg.Storage.Path)
			assert.Equal(t, "https://jsonplaceholder.typicode.com", cfg.Services.Remote.BaseURL)
			assert.Equal(t, "Server", cfg.Sync.SentinelCategory)
			assert.Equal(t, 3, cfg.Sync.BatchSize)
			assert.Equal(t, 3*time.Second, cfg.Notify.TTL)
		})
	}
}

func TestConfig_ProfileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))

	writeConfig(t, dir, "base.yaml", `
sync:
  interval: 45s
  batch_size: 5
storage:
  path: /var/lib/quote-sync/base.db
`)
	writeConfig(t, dir, "qa.yaml", `
app:
  environment: qa
sync:
  batch_size: 7
`)

	t.Chdir(dir)
	t.Setenv("APP_SYNC_BATCH_SIZE", "9")
	t.Setenv("APP_NOTIFY_TTL", "1500ms")

	cfg, err := config.Load("qa")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "qa", cfg.App.Environment)
	assert.Equal(t, 45*time.Second, cfg.Sync.Interval, "base file")
	assert.Equal(t, "/var/lib/quote-sync/base.db", cfg.Storage.Path, "base file")
	assert.Equal(t, 9, cfg.Sync.BatchSize, "env beats profile")
	assert.Equal(t, 1500*time.Millisecond, cfg.Notify.TTL)
}

func TestConfig_InvalidProfileFailsValidation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))

	writeConfig(t, dir, "broken.yaml", `
sync:
  batch_size: 0
  interval: 10ms
services:
  remote:
    base_url: not a url
`)

	t.Chdir(dir)

	cfg, err := config.Load("broken")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)

	for _, field := range []string{"sync.batch_size", "sync.interval", "sync.timeout", "services.remote.base_url"} {
		assert.Contains(t, err.Error(), field)
	}
}

func TestConfig_MalformedYAMLFailsLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))

	writeConfig(t, dir, "base.yaml", "sync: [unclosed\n")

	t.Chdir(dir)

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading base config")
}

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", name), []byte(body), 0o600))
}

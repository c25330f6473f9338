package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
listen: ":9000"
backend:
  base_url: "https://intranet.example.org/api/"
  timeout: 3s
feeds:
  - id: auditorium
    url: https://rooms.example.org/auditorium.ics
    room: auditorium
basic_auth:
  username: admin
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "https://intranet.example.org/api", cfg.Backend.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, defaultRefreshCron, cfg.RefreshCron)
	assert.Equal(t, defaultRedisPrefix, cfg.Redis.Prefix)
	require.Len(t, cfg.Feeds, 1)
	assert.Equal(t, "auditorium", cfg.Feeds[0].Room)
	// Incomplete credentials disable auth rather than locking everyone out.
	assert.Nil(t, cfg.BasicAuth)
}

func TestLoad_RejectsEmptyPathAndBadYAML(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Redis.URL = "redis://localhost:6379/0"
	cfg.Export.Enabled = true

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("EVENTDESK_BACKEND_URL", "https://api.example.org/")
	t.Setenv("EVENTDESK_BACKEND_TOKEN", "secret")
	t.Setenv("EVENTDESK_REDIS_URL", "redis://cache:6379/1")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "https://api.example.org", cfg.Backend.BaseURL)
	assert.Equal(t, "secret", cfg.Backend.Token)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	cfg.Timezone = "Nowhere/Invalid"
	loc, err = cfg.Location()
	assert.Error(t, err)
	assert.Equal(t, time.Local, loc)
}

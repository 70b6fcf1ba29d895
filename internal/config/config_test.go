package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "dbstudio", cfg.Name)
	assert.Equal(t, "http://localhost:8080", cfg.GetBaseURL())
	assert.Equal(t, 30*time.Second, cfg.GetAPITimeout())
	assert.Equal(t, "/login", cfg.GetReauthRoute())
	assert.Equal(t, log.InfoLevel, cfg.GetLogLevel())
	assert.Empty(t, cfg.Path())
	assert.False(t, cfg.HasChanged())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
name: studio
api:
  base_url: https://api.example.com
  timeout: 5s
log:
  level: debug
  format: json
editor:
  default_connection: conn-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "studio", cfg.Name)
	assert.Equal(t, "https://api.example.com", cfg.GetBaseURL())
	assert.Equal(t, 5*time.Second, cfg.GetAPITimeout())
	assert.Equal(t, "/login", cfg.GetReauthRoute(), "unset keys keep defaults")
	assert.Equal(t, log.DebugLevel, cfg.GetLogLevel())
	assert.Equal(t, log.JSONFormatter, cfg.GetLogFormatter())
	assert.Equal(t, "conn-1", cfg.GetDefaultConnection())
	assert.Equal(t, path, cfg.Path())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "api:\n  base_url: https://file.example.com\n")

	t.Setenv("DBSTUDIO_API__BASE_URL", "https://env.example.com")
	t.Setenv("DBSTUDIO_DATA_DIR", "/tmp/dbstudio-data")
	t.Setenv("DBSTUDIO_LOG__FORMAT", "logfmt")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.GetBaseURL())
	assert.Equal(t, "/tmp/dbstudio-data", cfg.GetDataDir())
	assert.Equal(t, log.LogfmtFormatter, cfg.GetLogFormatter())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad url", "api:\n  base_url: not-a-url\n", "api.base_url"},
		{"bad timeout", "api:\n  timeout: soon\n", "api.timeout"},
		{"negative timeout", "api:\n  timeout: -1s\n", "api.timeout"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"bad yaml", "api: [\n", "failed to read config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeConfig(t, path, tt.content)

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://saved.example.com"
	cfg.Editor.DefaultConnection = "warehouse"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com", loaded.GetBaseURL())
	assert.Equal(t, "warehouse", loaded.GetDefaultConnection())
	assert.Equal(t, "dbstudio", loaded.Name)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "api:\n  base_url: https://one.example.com\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	writeConfig(t, path, "api:\n  base_url: https://two.example.com\n")
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "https://two.example.com", cfg.GetBaseURL())

	writeConfig(t, path, "api:\n  base_url: nope\n")
	require.Error(t, cfg.Reload())
	assert.Equal(t, "https://two.example.com", cfg.GetBaseURL(), "failed reload keeps values")
}

func TestGetDataDir_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg := DefaultConfig()
	cfg.DataDir = "~/studio"
	assert.Equal(t, filepath.Join(home, "studio"), cfg.GetDataDir())
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "api.base_url", envKey("DBSTUDIO_API__BASE_URL"))
	assert.Equal(t, "data_dir", envKey("DBSTUDIO_DATA_DIR"))
	assert.Equal(t, "editor.default_connection", envKey("DBSTUDIO_EDITOR__DEFAULT_CONNECTION"))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "api:\n  base_url: https://one.example.com\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(cfg, nil)
	require.NoError(t, err)
	defer w.Stop()

	var reloads atomic.Int32
	w.OnReload(func(c *Config) {
		if c.GetBaseURL() == "https://two.example.com" {
			reloads.Add(1)
		}
	})
	require.NoError(t, w.Start())

	writeConfig(t, path, "api:\n  base_url: https://two.example.com\n")

	assert.Eventually(t, func() bool { return reloads.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
	assert.Same(t, cfg, w.GetConfig())
}

func TestWatcher_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	w, err := NewWatcher(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	w.Stop()
	w.Stop()
}

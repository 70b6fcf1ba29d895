// Package config handles configuration loading, saving and hot-reloading.
//
// Values are layered with koanf: built-in defaults, then the YAML file, then
// DBSTUDIO_* environment variables. Nested keys use a double underscore in
// the environment, e.g. DBSTUDIO_API__BASE_URL.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "DBSTUDIO_"

const (
	defaultName        = "dbstudio"
	defaultBaseURL     = "http://localhost:8080"
	defaultTimeout     = 30 * time.Second
	defaultReauthRoute = "/login"
)

// Config represents the application configuration.
type Config struct {
	Name    string       `koanf:"name" yaml:"name"`
	API     APIConfig    `koanf:"api" yaml:"api"`
	DataDir string       `koanf:"data_dir" yaml:"data_dir"`
	Log     LogConfig    `koanf:"log" yaml:"log"`
	Editor  EditorConfig `koanf:"editor" yaml:"editor"`

	// Internal: path to the config file, empty when running on defaults
	path string

	// Internal: last modified time
	modTime time.Time

	mu sync.RWMutex
}

// APIConfig configures the backend client.
type APIConfig struct {
	BaseURL     string `koanf:"base_url" yaml:"base_url"`
	Timeout     string `koanf:"timeout" yaml:"timeout"`
	ReauthRoute string `koanf:"reauth_route" yaml:"reauth_route"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// EditorConfig configures the worksheet editor.
type EditorConfig struct {
	// Connection id assigned to new worksheets.
	DefaultConnection string `koanf:"default_connection" yaml:"default_connection,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: defaultName,
		API: APIConfig{
			BaseURL:     defaultBaseURL,
			Timeout:     defaultTimeout.String(),
			ReauthRoute: defaultReauthRoute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaults() map[string]any {
	return map[string]any{
		"name":             defaultName,
		"api.base_url":     defaultBaseURL,
		"api.timeout":      defaultTimeout.String(),
		"api.reauth_route": defaultReauthRoute,
		"log.level":        "info",
		"log.format":       "text",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".dbstudio", "config.yaml")
	}
	return filepath.Join(dir, "dbstudio", "config.yaml")
}

// Load reads configuration. An empty path loads defaults and environment
// overrides only.
func Load(path string) (*Config, error) {
	var absPath string
	if path != "" {
		p, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		absPath = p
	}

	cfg, err := load(absPath)
	if err != nil {
		return nil, err
	}
	cfg.path = absPath
	cfg.modTime = modTime(absPath)
	return cfg, nil
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// envKey maps DBSTUDIO_API__BASE_URL to api.base_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) validate() error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q must be an http(s) URL", c.API.BaseURL))
	}
	if c.API.Timeout != "" {
		if d, err := time.ParseDuration(c.API.Timeout); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("api.timeout %q must be a positive duration", c.API.Timeout))
		}
	}
	if _, err := log.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		errs = append(errs, fmt.Errorf("log.level %q is not a level", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text, json or logfmt", c.Log.Format))
	}

	return errors.Join(errs...)
}

func modTime(path string) time.Time {
	if path == "" {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Path returns the path to the config file.
func (c *Config) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.path
}

// Reload reloads the configuration from disk. On error the current values
// are kept.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newCfg, err := load(c.path)
	if err != nil {
		return err
	}

	c.Name = newCfg.Name
	c.API = newCfg.API
	c.DataDir = newCfg.DataDir
	c.Log = newCfg.Log
	c.Editor = newCfg.Editor
	c.modTime = modTime(c.path)

	return nil
}

// HasChanged checks if the config file has been modified.
func (c *Config) HasChanged() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		return false
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return false
	}
	return info.ModTime().After(c.modTime)
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	data, err := yamlv3.Marshal(c)
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	header := []byte("# dbstudio configuration. Environment variables DBSTUDIO_* override these values.\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetBaseURL returns the backend base URL.
func (c *Config) GetBaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.API.BaseURL
}

// GetAPITimeout parses and returns the per-request timeout.
func (c *Config) GetAPITimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return defaultTimeout
	}
	return d
}

// GetReauthRoute returns the route users are sent to when a session expires.
func (c *Config) GetReauthRoute() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.API.ReauthRoute == "" {
		return defaultReauthRoute
	}
	return c.API.ReauthRoute
}

// GetLogLevel returns the configured level, info if unset.
func (c *Config) GetLogLevel() log.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// GetLogFormatter returns the configured log formatter.
func (c *Config) GetLogFormatter() log.Formatter {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch strings.ToLower(c.Log.Format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// GetDefaultConnection returns the connection id for new worksheets.
func (c *Config) GetDefaultConnection() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Editor.DefaultConnection
}

// GetDataDir returns the data directory for local storage. "~/" is expanded
// and an empty value falls back to the per-user config directory.
func (c *Config) GetDataDir() string {
	c.mu.RLock()
	dir := c.DataDir
	c.mu.RUnlock()

	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, dir[2:])
		}
	}
	if dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "dbstudio")
	}
	return ".dbstudio"
}

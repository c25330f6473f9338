package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendConfig points at the institution's REST API.
type BackendConfig struct {
	// BaseURL is the API root, e.g. "https://intranet.example.org/api".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Token, if set, is sent as a bearer token.
	Token string `yaml:"token,omitempty" json:"-"`
	// Timeout bounds every backend request.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// RedisConfig enables the last-known-good snapshot cache. An empty URL
// disables it.
type RedisConfig struct {
	URL    string        `yaml:"url" json:"url"`
	Prefix string        `yaml:"prefix" json:"prefix"`
	TTL    time.Duration `yaml:"ttl" json:"ttl"`
}

// FeedConfig describes an external ICS feed of bookings for one room.
type FeedConfig struct {
	// ID is an internal identifier used in event ids and logging.
	ID string `yaml:"id" json:"id"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Room is the room every booking in this feed occupies.
	Room string `yaml:"room" json:"room"`
}

// ExportConfig controls PDF export through headless Chromium.
type ExportConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// ChromePath overrides the Chromium binary; empty means autodetect.
	ChromePath string `yaml:"chrome_path,omitempty" json:"chrome_path,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone backend wall-clock times are read in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron schedule (e.g. "*/5 * * * *") for refetching
	// events and room feeds.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Backend BackendConfig `yaml:"backend" json:"backend"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`

	// Feeds are room booking calendars merged into conflict checks.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`
	// FeedHorizonDays is how far ahead recurring bookings are expanded.
	FeedHorizonDays int `yaml:"feed_horizon_days" json:"feed_horizon_days"`
	// FeedCacheDir stores ETag/Last-Modified metadata and bodies.
	FeedCacheDir string `yaml:"feed_cache_dir" json:"feed_cache_dir"`

	Export ExportConfig `yaml:"export" json:"export"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "America/Sao_Paulo"
	defaultRefreshCron   = "*/5 * * * *"
	defaultBackendURL    = "http://127.0.0.1:3000/api"
	defaultBackendTO     = 10 * time.Second
	defaultRedisPrefix   = "eventdesk"
	defaultRedisTTL      = 24 * time.Hour
	defaultHorizonDays   = 60
	defaultFeedCacheDir  = "./var/feed-cache"
	defaultExportTimeout = 30 * time.Second
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		LogLevel:    "info",
		RefreshCron: defaultRefreshCron,
		Backend: BackendConfig{
			BaseURL: defaultBackendURL,
			Timeout: defaultBackendTO,
		},
		Redis: RedisConfig{
			Prefix: defaultRedisPrefix,
			TTL:    defaultRedisTTL,
		},
		Feeds:           []FeedConfig{},
		FeedHorizonDays: defaultHorizonDays,
		FeedCacheDir:    defaultFeedCacheDir,
		Export: ExportConfig{
			Enabled: false,
			Timeout: defaultExportTimeout,
		},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultBackendURL
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = defaultBackendTO
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = defaultRedisPrefix
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = defaultRedisTTL
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.FeedHorizonDays <= 0 {
		c.FeedHorizonDays = defaultHorizonDays
	}
	if c.FeedCacheDir == "" {
		c.FeedCacheDir = defaultFeedCacheDir
	}
	if c.Export.Timeout <= 0 {
		c.Export.Timeout = defaultExportTimeout
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// ApplyEnv overrides selected settings from the environment so secrets
// need not live in the YAML file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("EVENTDESK_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("EVENTDESK_BACKEND_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("EVENTDESK_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// A missing file is created with the defaults (0600) and the defaults are
// returned. An existing file is unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventdesk-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

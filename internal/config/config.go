// Package config handles lifectx configuration.
//
// Settings come from defaults, then an optional JSON file, then LIFECTX_*
// environment variables, each layer overriding the one before.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// EnvPrefix is the prefix for environment overrides, e.g. LIFECTX_SERVER_PORT
const EnvPrefix = "LIFECTX"

// Storage drivers
const (
	DriverSQLite  = "sqlite"  // modernc.org/sqlite
	DriverSQLite3 = "sqlite3" // mattn/go-sqlite3
	DriverFiles   = "files"   // one JSON file per collection
	DriverMemory  = "memory"  // process-local, nothing survives exit
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir" split_words:"true"`

	Server    ServerConfig    `json:"server"`
	Storage   StorageConfig   `json:"storage"`
	Log       LogConfig       `json:"log"`
	Lifecycle LifecycleConfig `json:"lifecycle"`
	Calendar  CalendarConfig  `json:"calendar"`
	Jobs      JobsConfig      `json:"jobs"`
}

// ServerConfig for HTTP server
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"` // database file, or directory for the files driver
}

// LogConfig for the package logger
type LogConfig struct {
	Level string `json:"level"`
}

// LifecycleConfig controls status transition checking
type LifecycleConfig struct {
	Strict bool `json:"strict"`
}

// CalendarConfig for Google Calendar sync
type CalendarConfig struct {
	Enabled      bool   `json:"enabled"`
	CalendarID   string `json:"calendar_id" split_words:"true"`
	ClientID     string `json:"client_id" split_words:"true"`
	ClientSecret string `json:"client_secret,omitempty" split_words:"true"`
	TokenFile    string `json:"token_file,omitempty" split_words:"true"`
}

// JobsConfig sets the daemon's periodic jobs, in minutes. Zero disables a job.
type JobsConfig struct {
	CalendarSyncMinutes  int `json:"calendar_sync_minutes" split_words:"true"`
	ReminderSweepMinutes int `json:"reminder_sweep_minutes" split_words:"true"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".lifectx"),
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
		},
		Log: LogConfig{
			Level: "info",
		},
		Calendar: CalendarConfig{
			CalendarID: "primary",
		},
		Jobs: JobsConfig{
			CalendarSyncMinutes:  15,
			ReminderSweepMinutes: 1,
		},
	}
}

// Load loads config from file, falling back to defaults, then applies
// environment overrides. The file may use comments and trailing commas.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := json.Unmarshal(standardized, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverSQLite3, DriverFiles, DriverMemory:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	if c.Jobs.CalendarSyncMinutes < 0 || c.Jobs.ReminderSweepMinutes < 0 {
		return fmt.Errorf("jobs: intervals must not be negative")
	}
	if c.Calendar.Enabled && c.Calendar.ClientID == "" {
		return fmt.Errorf("calendar.client_id: required when calendar sync is enabled")
	}
	return nil
}

// DBPath returns the SQLite file path
func (c *Config) DBPath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "lifectx.db")
}

// CollectionsDir returns the directory used by the files driver
func (c *Config) CollectionsDir() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "collections")
}

// TokenPath returns where the calendar OAuth token is kept
func (c *Config) TokenPath() string {
	if c.Calendar.TokenFile != "" {
		return c.Calendar.TokenFile
	}
	return filepath.Join(c.DataDir, "calendar_token.json")
}

// Addr returns host:port for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Every converts a job interval in minutes to a duration
func Every(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	// Secrets come from the environment, never from the file
	safeCfg := *c
	safeCfg.Calendar.ClientSecret = ""

	data, err := json.MarshalIndent(safeCfg, "", "  ")
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}

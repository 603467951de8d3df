// Package config loads remembear's configuration file.
//
// Both YAML and JSON are accepted; YAML is coerced to JSON so one
// strict decoder (DisallowUnknownFields) covers both formats.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"remembear/pkg/logx"
)

type Config struct {
	Database     Database               `json:"database"`
	Logging      Logging                `json:"logging,omitempty"`
	Integrations map[string]Integration `json:"integrations,omitempty"`
	Maintenance  Maintenance            `json:"maintenance,omitempty"`
}

type Database struct {
	Sqlite Sqlite `json:"sqlite"`
}

type Sqlite struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string (e.g. "500ms", "5s").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type Logging struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console,omitempty"`
	File    LoggingFile `json:"file,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Integration enables and configures one notification sink, keyed by
// the integration's name ("console", "telegram").
type Integration struct {
	Enabled bool `json:"enabled"`

	// Telegram only.
	Token      string `json:"token,omitempty"`
	ChatID     int64  `json:"chat_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// Maintenance controls the daemon's periodic housekeeping job.
type Maintenance struct {
	// Spec is a cron expression or descriptor ("@daily"). Empty keeps
	// the default of once a day.
	Spec string `json:"spec,omitempty"`
}

const defaultMaintenanceSpec = "@daily"

// Load reads and strictly decodes the config file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return parse(path, b)
}

func parse(path string, b []byte) (Config, error) {
	jb, format, err := coerceToJSONBytes(path, b)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid %s config: %w", format, err)
	}
	// Reject trailing tokens (e.g. concatenated JSON).
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("invalid config: trailing data")
		}
		return Config{}, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if !c.Logging.Console && !c.Logging.File.Enabled {
		c.Logging.Console = true
	}
	if c.Maintenance.Spec == "" {
		c.Maintenance.Spec = defaultMaintenanceSpec
	}
}

// LogConfig translates the logging section for pkg/logx.
func (c Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
	}
}

// SqliteBusyTimeout parses the configured busy timeout, defaulting to
// zero (driver default) on empty or invalid values.
func (c Config) SqliteBusyTimeout() time.Duration {
	d, err := time.ParseDuration(c.Database.Sqlite.BusyTimeout)
	if err != nil {
		return 0
	}
	return d
}

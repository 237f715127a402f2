// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvBackend  = "MUSICSTREAM_BACKEND"
	EnvLogLevel = "MUSICSTREAM_LOG_LEVEL"
)

// Config represents the application configuration.
type Config struct {
	Stream   StreamConfig            `yaml:"stream"`
	Device   DeviceConfig            `yaml:"device"`
	Logging  LoggingConfig           `yaml:"logging"`
	Playlist PlaylistConfig          `yaml:"playlist"`
	Filters  map[string]FilterConfig `yaml:"filters"`
}

// StreamConfig represents the streaming worker tunables.
type StreamConfig struct {
	BufferCount       int  `yaml:"buffer_count" default:"4" validate:"gte=2,lte=16"`
	ChunkFrames       int  `yaml:"chunk_frames" default:"4096" validate:"gte=256,lte=65536"`
	WakeIntervalMs    int  `yaml:"wake_interval_ms" default:"10" validate:"gte=1,lte=500"`
	JoinTimeoutMs     int  `yaml:"join_timeout_ms" default:"2000" validate:"gte=1,lte=60000"`
	UnderrunWarnAfter int  `yaml:"underrun_warn_after" default:"3" validate:"gte=1"`
	Preload           bool `yaml:"preload"` // decode whole files before playing them
}

// WakeInterval returns the worker wake interval.
func (s StreamConfig) WakeInterval() time.Duration {
	return time.Duration(s.WakeIntervalMs) * time.Millisecond
}

// JoinTimeout returns the bound on waiting for a worker to exit.
func (s StreamConfig) JoinTimeout() time.Duration {
	return time.Duration(s.JoinTimeoutMs) * time.Millisecond
}

// DeviceConfig represents the audio output configuration.
type DeviceConfig struct {
	Backend  string `yaml:"backend" default:"oto" validate:"oneof=oto malgo portaudio null"`
	PeriodMs int    `yaml:"period_ms" default:"10" validate:"gte=1,lte=1000"`
}

// Period returns the output buffer period.
func (d DeviceConfig) Period() time.Duration {
	return time.Duration(d.PeriodMs) * time.Millisecond
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stderr"` // stdout, stderr or file
	File   string `yaml:"file" validate:"required_if=Output file"`
}

// PlaylistConfig lists the tracks played when none are given on the command line.
type PlaylistConfig struct {
	Name   string   `yaml:"name" default:"default"`
	Tracks []string `yaml:"tracks"`
}

// FilterConfig represents a playlist filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	return finish(&cfg)
}

// Default returns the default configuration with environment overrides applied.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	cfg.overrideFromEnv()

	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv(EnvBackend); v != "" {
		c.Device.Backend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

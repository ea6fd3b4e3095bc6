// Package config loads opcon settings from a YAML file and OPCON_*
// environment variables.
//
// Precedence, lowest first: defaults, the file, the environment, then
// command-line flags (applied by the CLI).
//
// Environment Variables:
//
//	OPCON_DB                    - SQLite database path
//	OPCON_SEED                  - seed for the uniform source (unsigned integer)
//	OPCON_LOG_LEVEL             - debug, info, warn or error (default: warn)
//	OPCON_LOG_FORMAT            - text or json (default: text)
//	OPCON_COMM_IN_RANGE         - comm level within effective range (default: 1.0)
//	OPCON_HUMAN_FACTOR_CAP      - counter value at which a factor reaches zero (default: 10)
//	OPCON_MAX_EVENTS_PER_BUCKET - per-timestamp event quota, 0 disables (default: 10000)
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/opcon/internal/c4i"
	"github.com/roach88/opcon/internal/sim"
)

// Config holds every tunable the CLI reads.
type Config struct {
	// DB is the SQLite database path. Empty means no persistence.
	DB string `yaml:"db"`

	// Seed makes rolls reproducible. Nil uses the process-wide source.
	Seed *uint64 `yaml:"seed,omitempty"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	CommInRange        float64 `yaml:"comm_in_range"`
	HumanFactorCap     int     `yaml:"human_factor_cap"`
	MaxEventsPerBucket int     `yaml:"max_events_per_bucket"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:           "warn",
		LogFormat:          "text",
		CommInRange:        c4i.DefaultInRange,
		HumanFactorCap:     c4i.DefaultCap,
		MaxEventsPerBucket: sim.DefaultMaxEventsPerBucket,
	}
}

// Load reads path over the defaults, applies the environment and
// validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Fields the document omits keep their
// current values; unknown fields are rejected.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from OPCON_* variables read through getenv.
// Unset or empty variables are ignored; malformed ones are errors.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("OPCON_DB"); v != "" {
		c.DB = v
	}
	if v := getenv("OPCON_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("OPCON_SEED: %w", err)
		}
		c.Seed = &seed
	}
	if v := getenv("OPCON_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	if v := getenv("OPCON_LOG_FORMAT"); v != "" {
		c.LogFormat = strings.ToLower(strings.TrimSpace(v))
	}
	if v := getenv("OPCON_COMM_IN_RANGE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OPCON_COMM_IN_RANGE: %w", err)
		}
		c.CommInRange = f
	}
	if v := getenv("OPCON_HUMAN_FACTOR_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OPCON_HUMAN_FACTOR_CAP: %w", err)
		}
		c.HumanFactorCap = n
	}
	if v := getenv("OPCON_MAX_EVENTS_PER_BUCKET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OPCON_MAX_EVENTS_PER_BUCKET: %w", err)
		}
		c.MaxEventsPerBucket = n
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}
	if c.CommInRange < 0 || c.CommInRange > 1 {
		return fmt.Errorf("comm_in_range must be in [0, 1], got %g", c.CommInRange)
	}
	if c.HumanFactorCap <= 0 {
		return fmt.Errorf("human_factor_cap must be positive, got %d", c.HumanFactorCap)
	}
	if c.MaxEventsPerBucket < 0 {
		return fmt.Errorf("max_events_per_bucket must not be negative, got %d", c.MaxEventsPerBucket)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}

// NewLogger builds the configured slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Facade builds the C4I façade with the configured cap and comm level.
func (c *Config) Facade() (*c4i.Facade, error) {
	return c4i.New(c4i.WithCap(c.HumanFactorCap), c4i.WithInRange(c.CommInRange))
}
